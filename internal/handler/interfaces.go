package handler

import (
	"context"
	"net/http"
)

// ResponseWriter wraps HTTP response writing functionality
type ResponseWriter interface {
	// WriteJSON writes payload as JSON with the given status code
	WriteJSON(w http.ResponseWriter, statusCode int, payload interface{}) error

	// WriteError writes an error response with appropriate status code
	WriteError(w http.ResponseWriter, message string, statusCode int) error
}

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}
