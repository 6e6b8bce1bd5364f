package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// type for context keys
type loggerKeyType struct{}

var LoggerKey = loggerKeyType{}

// RequestLogger creates a middleware that logs requests and injects the logger.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

			// child logger with request details
			reqLog := log.With(
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)

			// inject this new logger into the context
			ctx := context.WithValue(r.Context(), LoggerKey, reqLog)

			// log the incoming request
			reqLog.Info("request started")

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			// call the next handler with the NEW context
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			// Websocket upgrades hijack the connection and never come back
			// through WriteHeader; the recorded 200 is still what we sent.
			reqLog.Info("request completed",
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
