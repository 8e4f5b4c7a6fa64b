package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/matthewbaird/jigtrack/internal/form"
	"github.com/matthewbaird/jigtrack/internal/jig"
	"github.com/matthewbaird/jigtrack/internal/settings"
	"github.com/matthewbaird/jigtrack/internal/store"
	"github.com/matthewbaird/jigtrack/internal/table"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("writeJSON encode error", zap.Error(err))
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// parseKey extracts and validates an integer key path parameter.
func parseKey(w http.ResponseWriter, r *http.Request, paramName string) (int64, bool) {
	raw := chi.URLParam(r, paramName)
	key, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || key <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid jig id: "+raw)
		return 0, false
	}
	return key, true
}

// errorStatus maps operation errors to an HTTP status and code.
func errorStatus(err error) (int, string) {
	var fe form.FieldErrors
	switch {
	case errors.As(err, &fe):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR"
	case errors.Is(err, settings.ErrInvalid), errors.Is(err, jig.ErrInvalidDomain):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR"
	case errors.Is(err, store.ErrNotFound), errors.Is(err, form.ErrRowGone):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, jig.ErrStateConflict), errors.Is(err, table.ErrNotVisible):
		return http.StatusConflict, "STATE_CONFLICT"
	case errors.Is(err, store.ErrCommit):
		return http.StatusInternalServerError, "STORAGE_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
