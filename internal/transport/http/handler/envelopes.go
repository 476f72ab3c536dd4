package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-carrier-billing/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// httpError maps domain sentinel errors onto HTTP status codes.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownOperator),
		errors.Is(err, domain.ErrNoPendingCode),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrReferenceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrCodeExpired),
		errors.Is(err, domain.ErrAttemptsExhausted):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, domain.ErrUnsupportedProtocol),
		errors.Is(err, domain.ErrDeleteUnsupported):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrMissingAmount),
		errors.Is(err, domain.ErrMissingFraudToken),
		errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
