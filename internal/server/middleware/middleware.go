package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"daily-trivia/internal/telemetry"
	"daily-trivia/internal/telemetry/domain"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies mws so the first one is outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// statusRecorder captures the status code and body size written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// RequestID reuses a well-formed incoming X-Request-ID or assigns a new UUID, and echoes it on the response.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
		})
	}
}

// Recover turns a handler panic into a logged 500 with the standard error body.
func Recover(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}
				requestID, _ := GetRequestID(r.Context())
				logger.Error("http: handler panic",
					zap.Any("panic", v),
					zap.String("path", r.URL.Path),
					zap.String("request_id", requestID),
					zap.Stack("stack"),
				)
				if rec.status == 0 {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
				}
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

// AccessLog writes one structured log line per request.
func AccessLog(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			requestID, _ := GetRequestID(r.Context())
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.code()),
				zap.Int("bytes", rec.bytes),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", requestID),
				zap.String("client_ip", ClientIP(r)),
			)
		})
	}
}

// Telemetry emits an http_request event after each request. Best-effort: failures are logged and do not
// affect the response. If emitter is nil the middleware is a pass-through. skipPaths are not emitted
// (e.g. /healthz).
func Telemetry(emitter telemetry.EventEmitter, logger *zap.Logger, skipPaths map[string]bool) Middleware {
	return func(next http.Handler) http.Handler {
		if emitter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if skipPaths[r.URL.Path] {
				return
			}
			meta := domain.HTTPRequestMetadata{
				Method:     r.Method,
				Path:       r.URL.Path,
				Status:     rec.code(),
				DurationMs: time.Since(start).Milliseconds(),
				ClientIP:   ClientIP(r),
				Lang:       rec.Header().Get("Content-Language"),
			}
			metaJSON, _ := json.Marshal(meta)
			requestID, _ := GetRequestID(r.Context())
			telemetry.EmitAsync(r.Context(), emitter, &domain.Event{
				ID:        uuid.NewString(),
				RequestID: requestID,
				EventType: domain.EventTypeHTTPRequest,
				Source:    "http_middleware",
				Metadata:  metaJSON,
				CreatedAt: time.Now().UTC(),
			}, logger)
		})
	}
}
