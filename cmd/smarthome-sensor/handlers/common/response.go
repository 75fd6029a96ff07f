// Package common holds response helpers shared by the HTTP handlers
package common

import (
	"encoding/json"
	"net/http"
)

// SetJSONHeaders sets the headers for JSON responses. Credentials must never be cached.
func SetJSONHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json")
}

// WriteJSON encodes v with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		WriteJSONError(w, err)
		return
	}

	SetJSONHeaders(w)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// WriteJSONError reports a response that could not be encoded
func WriteJSONError(w http.ResponseWriter, _ error) {
	SetJSONHeaders(w)
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"error":"server_error"}`))
}

// WriteText sends a plain-text body with the given status. The body is written
// exactly as given, without the trailing newline http.Error appends.
func WriteText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
