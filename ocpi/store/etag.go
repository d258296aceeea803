package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// canonicalize re-encodes a JSON document into its canonical form:
// object keys sorted, no insignificant whitespace. The ETag of an entity
// is a pure function of this form.
func canonicalize(raw json.RawMessage) ([]byte, error) {
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	return json.Marshal(value)
}

func etag(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
