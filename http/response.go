package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/h2kv/h2kv"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

// Order matters: the first sentinel found in the chain wins.
var errorMappings = []errorMapping{
	{h2kv.ErrInvalidPath, http.StatusBadRequest, "invalid_path", "Invalid path"},
	{h2kv.ErrInvalidInput, http.StatusBadRequest, "invalid_parameter", "Invalid parameter"},
	{h2kv.ErrNotFound, http.StatusNotFound, "not_found", "Object not found"},
	{h2kv.ErrNotAcceptable, http.StatusNotAcceptable, "not_acceptable", "No representation matches the Accept header"},
	{h2kv.ErrAmbiguousRepresentation, http.StatusConflict, "ambiguous_representation", "Several representations exist, name one with an extension or Content-Type"},
	{h2kv.ErrPreconditionFailed, http.StatusPreconditionFailed, "precondition_failed", "ETag mismatch"},
	{ErrBodyTooLarge, http.StatusRequestEntityTooLarge, "body_too_large", "Request body too large"},
	{h2kv.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType, "unsupported_media_type", "Unsupported media type"},
	{h2kv.ErrStorageUnavailable, http.StatusServiceUnavailable, "storage_unavailable", "Storage unavailable"},
}

// StatusFor returns the status code err maps to.
func StatusFor(err error) int {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// HandleError writes appropriate error response based on error type
func HandleError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				slog.Error("request error", "error", err)
			} else {
				slog.Debug("request rejected", "error", err, "status", m.status)
			}
			WriteError(w, m.status, m.code, m.message)
			return
		}
	}

	slog.Error("request error", "error", err)
	// Default internal error
	WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
