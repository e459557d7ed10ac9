package middleware

import (
	"log/slog"
	"net/http"

	"github.com/alakazam-audio/alakazam/pkg/tracing"
)

// Tracing opens a root span per request, keyed by the request id. The span
// tree is only logged when debug logging is enabled.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracing.StartSpan(r.Context(), r.Method+" "+r.URL.Path, GetRequestID(r.Context()))
		defer func() {
			span.End()
			if slog.Default().Enabled(r.Context(), slog.LevelDebug) {
				span.Log()
			}
		}()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
