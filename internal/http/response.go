package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/middleware/trace"
)

// errorResponse is the JSON body for every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(r.Context(), "Response encoding failed",
			log.FieldError, err,
			log.FieldPath, r.URL.Path,
			log.FieldRequestID, trace.RequestID(r.Context()))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg})
}

// statusForError maps domain errors onto HTTP status codes. Validation
// failures are the client's fault (422), duplicate IDs are conflicts,
// anything else is a server-side failure.
func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrShortDescription),
		errors.Is(err, core.ErrLongDescription),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrFutureDate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrDuplicateID):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// methodNotAllowed writes a 405 with the Allow header set.
func methodNotAllowed(w http.ResponseWriter, r *http.Request, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
