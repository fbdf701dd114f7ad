package logging

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

// RequestLogger logs one line per request and stores a request-scoped
// entry in the context. Mount after middleware.RequestID.
func RequestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := logger.WithField("request_id", middleware.GetReqID(r.Context()))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), ctxKey{}, entry)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := logrus.Fields{
				"status":     status,
				"method":     r.Method,
				"path":       r.URL.Path,
				"latency_ms": time.Since(start).Milliseconds(),
				"bytes":      ww.BytesWritten(),
				"client_ip":  r.RemoteAddr,
			}
			switch {
			case status >= 500:
				entry.WithFields(fields).Error("HTTP request")
			case status >= 400:
				entry.WithFields(fields).Warn("HTTP request")
			default:
				entry.WithFields(fields).Info("HTTP request")
			}
		})
	}
}

// FromContext returns the request-scoped entry, or the standard logger
// outside a request.
func FromContext(ctx context.Context) logrus.FieldLogger {
	if entry, ok := ctx.Value(ctxKey{}).(logrus.FieldLogger); ok {
		return entry
	}
	return logrus.StandardLogger()
}
