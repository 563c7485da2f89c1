package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/hubspace-bridge/internal/bridge"
	"github.com/nerrad567/hubspace-bridge/internal/entity"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeInternal     = "internal_error"
	ErrCodeNotSupported = "not_supported"
	ErrCodeInvalidValue = "invalid_value"
	ErrCodeCloud        = "cloud_error"
	ErrCodeUnavailable  = "service_unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeBridgeError maps a bridge or entity error onto an HTTP response.
func writeBridgeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bridge.ErrEntityNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, entity.ErrNotSupported):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeNotSupported, err.Error())
	case errors.Is(err, entity.ErrInvalidValue):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeInvalidValue, err.Error())
	case errors.Is(err, entity.ErrInvalidAction), errors.Is(err, bridge.ErrInvalidCommand):
		writeBadRequest(w, err.Error())
	case errors.Is(err, bridge.ErrCommandFailed):
		writeError(w, http.StatusBadGateway, ErrCodeCloud, err.Error())
	case errors.Is(err, bridge.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
