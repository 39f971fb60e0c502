package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// ResponseWriterImpl implements ResponseWriter interface
type ResponseWriterImpl struct{}

// NewResponseWriter creates a new response writer instance
func NewResponseWriter() *ResponseWriterImpl {
	return &ResponseWriterImpl{}
}

// WriteJSON writes payload as JSON with the given status code
func (r *ResponseWriterImpl) WriteJSON(w http.ResponseWriter, statusCode int, payload interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if payload == nil {
		return nil
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err, "status_code", statusCode)
		return err
	}
	return nil
}

// WriteError writes an error response with appropriate status code
func (r *ResponseWriterImpl) WriteError(w http.ResponseWriter, message string, statusCode int) error {
	return r.WriteJSON(w, statusCode, ErrorResponse{Error: message})
}
