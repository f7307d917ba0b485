// Package common holds response helpers shared by the demo handlers
package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ErrorResponse is the JSON error body, shaped like an RFC 6749 error
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// SetJSONHeaders sets headers for JSON responses
func SetJSONHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
}

// WriteJSON encodes v with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		WriteJSONError(w, err)
		return
	}
	SetJSONHeaders(w)
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

// WriteError sends an error response with the given status
func WriteError(w http.ResponseWriter, status int, code string, description string) {
	WriteJSON(w, status, ErrorResponse{
		Error:            code,
		ErrorDescription: strings.TrimSpace(description),
	})
}

// WriteJSONError handles JSON encoding failures with a fixed response
func WriteJSONError(w http.ResponseWriter, err error) {
	SetJSONHeaders(w)
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"error":"server_error","error_description":"Failed to encode response"}`))
}

type protocolError interface {
	ProtocolErrorCode() string
}

// ErrorCode returns the OAuth error code carried anywhere in err's chain,
// or an empty string
func ErrorCode(err error) string {
	var pe protocolError
	if errors.As(err, &pe) {
		return pe.ProtocolErrorCode()
	}
	return ""
}
