package utility

import (
	"strconv"

	"github.com/google/uuid"
)

// ToInt converts a string to an integer, zero on failure
func ToInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

func NewUUID() string {
	return uuid.New().String()
}
