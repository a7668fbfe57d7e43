// Package shared centralizes JSON response writing so every handler emits
// the same envelopes. Error bodies are {"error": message} because the
// browser UI and the request service both key off that exact shape.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	derrors "vcrelay/pkg/domain-errors"
)

// WriteJSON writes v with the given status and a JSON content type.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error to its HTTP status and writes the
// message verbatim. Non-domain errors collapse to a 500 without leaking
// internals.
func WriteError(w http.ResponseWriter, err error) {
	var de *derrors.DomainError
	if errors.As(err, &de) {
		WriteJSON(w, derrors.ToHTTPStatus(de.Code), map[string]string{"error": de.Message})
		return
	}
	WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
