package httpapi

import (
	"encoding/json"
	"net/http"
)

// Response is the envelope of every facade reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`

	// Errors maps request field names to validation messages.
	Errors map[string]string `json:"errors,omitempty"`

	// Source is set on reads: "remote" or "local".
	Source string `json:"source,omitempty"`
	// Status is set on writes: "synchronized", "local_only" or "remote_only".
	Status string `json:"status,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError replies with message. err is only echoed back for client errors;
// server-side failures are logged by the caller and never leave the process.
func writeError(w http.ResponseWriter, statusCode int, message string, err error) {
	body := Response{Message: message}
	if err != nil && statusCode < http.StatusInternalServerError {
		body.Error = err.Error()
	}
	writeJSON(w, statusCode, body)
}

func writeValidationError(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, Response{
		Message: "Validation failed",
		Errors:  fields,
	})
}

func writeNotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Resource not found"
	}
	writeError(w, http.StatusNotFound, message, nil)
}
