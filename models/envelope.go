package models

import "time"

// OCPI status codes carried in the response envelope, distinct from the
// transport status.
const (
	StatusSuccess        = 1000
	StatusClientError    = 2000
	StatusInvalidParams  = 2001
	StatusUnknownObject  = 2003
	StatusServerError    = 3000
	StatusUnsupportedVer = 3002
)

type Envelope struct {
	Data          interface{} `json:"data,omitempty"`
	StatusCode    int         `json:"status_code"`
	StatusMessage string      `json:"status_message,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

func NewEnvelope(data interface{}) *Envelope {
	return &Envelope{
		Data:       data,
		StatusCode: StatusSuccess,
		Timestamp:  time.Now().UTC(),
	}
}

func NewErrorEnvelope(code int, message string) *Envelope {
	return &Envelope{
		StatusCode:    code,
		StatusMessage: message,
		Timestamp:     time.Now().UTC(),
	}
}
