package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"ocpinode/models"
	"strconv"
	"time"
)

func writeEnvelope(w http.ResponseWriter, httpStatus int, envelope *models.Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(envelope)
}

func sendSuccess(w http.ResponseWriter, data interface{}) {
	writeEnvelope(w, http.StatusOK, models.NewEnvelope(data))
}

func sendCreated(w http.ResponseWriter, data interface{}) {
	writeEnvelope(w, http.StatusCreated, models.NewEnvelope(data))
}

func sendError(w http.ResponseWriter, httpStatus, code int, message string) {
	writeEnvelope(w, httpStatus, models.NewErrorEnvelope(code, message))
}

// sendConflict returns the stored entity unchanged so the caller can
// inspect the state its write lost against.
func sendConflict(w http.ResponseWriter, stored *models.SyncObject) {
	envelope := models.NewErrorEnvelope(models.StatusClientError, "write is older than stored entity")
	envelope.Data = json.RawMessage(stored.Payload)
	setValidators(w, stored)
	writeEnvelope(w, http.StatusConflict, envelope)
}

func setValidators(w http.ResponseWriter, obj *models.SyncObject) {
	w.Header().Set("ETag", fmt.Sprintf("%q", obj.ETag))
	w.Header().Set("Last-Modified", obj.LastUpdated.UTC().Format(http.TimeFormat))
}

func setPaginationHeaders(w http.ResponseWriter, total, filtered, limit int) {
	w.Header().Set("X-Total-Count", strconv.Itoa(filtered))
	w.Header().Set("X-Full-Count", strconv.Itoa(total))
	if limit > 0 {
		w.Header().Set("X-Limit", strconv.Itoa(limit))
	}
}

// parseTimestamp accepts the RFC 3339 forms OCPI parties exchange.
func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", value)
}
