// Package middleware provides the HTTP request interceptors composed in
// front of the API handlers.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Interceptor wraps a handler. Interceptors are composed at startup into an
// explicit ordered chain so each stays testable in isolation.
type Interceptor func(http.Handler) http.Handler

// Chain applies interceptors so the first one listed is the outermost.
func Chain(handler http.Handler, interceptors ...Interceptor) http.Handler {
	for i := len(interceptors) - 1; i >= 0; i-- {
		handler = interceptors[i](handler)
	}
	return handler
}

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestID tags each request with an identifier, honoring one supplied by
// the caller.
func RequestID() Interceptor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			ctx := context.WithValue(r.Context(), requestIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID returns the request identifier from the context, if any.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
