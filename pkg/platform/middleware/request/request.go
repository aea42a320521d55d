// Package request carries a per-request correlation ID through the context
// and response headers.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey struct{}

const headerName = "X-Request-ID"

// RequestID assigns every request a correlation ID, honoring one supplied
// by the caller, and echoes it back on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerName)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), contextKey{}, id)
		w.Header().Set(headerName, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the correlation ID set by RequestID, or "" when the
// middleware did not run.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
