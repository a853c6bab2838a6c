// Package api implements the public JSON REST handlers.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/concretoya/api/internal/pricing"
)

type errorJSON struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent; just log.
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// writeQuoteError maps engine errors onto HTTP responses: field-scoped
// validation failures are 422 with the field named, missing tier tables are
// a distinct "pricing not configured" 422, anything else is a 500.
func writeQuoteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var fieldErr *pricing.FieldError
	if errors.As(err, &fieldErr) {
		writeJSON(w, http.StatusUnprocessableEntity, errorJSON{
			Error: fieldErr.Message,
			Field: fieldErr.Field,
		})
		return
	}

	var notConfigured *pricing.NotConfiguredError
	if errors.As(err, &notConfigured) {
		writeJSON(w, http.StatusUnprocessableEntity, errorJSON{Error: notConfigured.Error()})
		return
	}

	logger.Error("quote calculation failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
}
