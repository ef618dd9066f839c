// Package httputil centralizes JSON response and error envelope writing so
// every handler emits the same shape.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "bankid/pkg/domain-errors"
)

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	RetryAfter       int    `json:"retry_after,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError translates a domain error into the JSON error envelope.
// Internal errors omit the description so infrastructure details never leak.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := errorBody{Error: string(code)}
	var de *dErrors.Error
	if code != dErrors.CodeInternal && errors.As(err, &de) {
		body.ErrorDescription = de.Message
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}

// WriteRetryAfter writes an error envelope carrying a Retry-After hint for
// lockout responses, so clients can render a countdown.
func WriteRetryAfter(w http.ResponseWriter, code dErrors.Code, description string, retryAfter int) {
	body := errorBody{
		Error:            string(code),
		ErrorDescription: description,
		RetryAfter:       retryAfter,
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}
