package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/starford/mdnotebook/internal/apperr"
)

// maxBodyBytes bounds request bodies. Assets arrive as encoded strings, so
// the limit is generous.
const maxBodyBytes = 64 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrCancelled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err to the caller with its kind. I/O failures are
// logged with attrs.
func writeError(w http.ResponseWriter, op string, err error, attrs ...any) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		args := append([]any{slog.String("error", err.Error())}, attrs...)
		slog.Error(op+" failed", args...)
	}
	writeJSON(w, status, errResponse{Error: err.Error(), Kind: apperr.Kind(err)})
}

// decodeJSON reads a JSON body into v and runs its validation rules. The
// body must be declared as application/json; browsers cannot send that
// cross-origin without a preflight.
func decodeJSON(w http.ResponseWriter, r *http.Request, v validatable) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		writeJSON(w, http.StatusUnsupportedMediaType, errResponse{Error: "content type must be application/json", Kind: "validation"})
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid JSON body", Kind: "validation"})
		return false
	}
	if err := v.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: err.Error(), Kind: "validation"})
		return false
	}
	return true
}
