package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"deploy-chat/internal/logging"
	"deploy-chat/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// Correlation assigns every request a correlation ID, echoes it in the
// response, and stores a request-scoped logger in the context.
func Correlation(base *slog.Logger, newID func() string) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(correlationHeader)
			if id == "" {
				id = newID()
			}
			w.Header().Set(correlationHeader, id)
			logger := base.With(
				"correlation_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			ctx := logging.WithLogger(r.Context(), logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Recoverer turns a panic into the JSON 500 every other failure uses.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logging.FromContext(r.Context()).ErrorContext(r.Context(), "http handler panicked", "panic", rec)
			status, body := usecase.ErrorBody(usecase.Internal("panic", nil))
			writeJSON(w, status, body)
		}()
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request. Successful health checks are
// skipped to keep health-check noise out of the logs.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if r.URL.Path == "/health" && status == http.StatusOK {
			return
		}
		logging.FromContext(r.Context()).InfoContext(r.Context(), "request completed",
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
