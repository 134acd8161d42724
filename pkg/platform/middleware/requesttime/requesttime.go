// Package requesttime pins request-scoped time. Every operation within one
// HTTP request observes the same "now", so timestamps written by a single
// request never straddle a clock tick.
package requesttime

import (
	"net/http"
	"time"

	"docket/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and
// stores it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
