package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/folio/pkg/logger"
)

// RequestLogger stores a request-scoped logger in the context, enriched with
// the correlation ID and trace IDs. Mount it after RequestLogging and Tracing.
// Auth adds the caller's identity to the same logger once the token has been
// validated.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
