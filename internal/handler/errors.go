package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mpetrov/slotplan/internal/api"
)

// writeJSON serializes v as the response body with the given status.
// Encoding failures are ignored: by the time Encode fails the status line
// is already on the wire, so there is nothing useful left to do.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeNotFound responds 404 with a uniform error body. The caller supplies
// the human-readable message because the handler is the layer that knows
// what was being looked up.
func writeNotFound(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusNotFound, api.ErrorResponse{
		Error: api.ErrorDetail{Code: "not_found", Message: message},
	})
}

// writeValidation responds 422 with the message extracted from the wrapped
// domain.ErrValidation error.
func writeValidation(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusUnprocessableEntity, api.ErrorResponse{
		Error: api.ErrorDetail{Code: "validation_error", Message: unwrapMessage(err)},
	})
}

// writeBadRequest responds 422 for a request rejected before reaching the
// service layer (e.g. missing or malformed body).
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnprocessableEntity, api.ErrorResponse{
		Error: api.ErrorDetail{Code: "validation_error", Message: message},
	})
}

// writeInternal responds 500 without leaking the underlying error.
func writeInternal(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{
		Error: api.ErrorDetail{Code: "internal_error", Message: "internal server error"},
	})
}

// unwrapMessage extracts the human-readable part from a wrapped sentinel
// error, e.g. "service.TaskService.Create: validation error: slot is
// required" becomes "slot is required".
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.LastIndex(msg, "validation error: "); i >= 0 {
		return msg[i+len("validation error: "):]
	}
	return msg
}
