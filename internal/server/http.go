// Package server assembles the HTTP API and the gRPC health endpoint.
package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	challengehandler "daily-trivia/internal/challenge/handler"
	healthhandler "daily-trivia/internal/health/handler"
	"daily-trivia/internal/server/middleware"
	"daily-trivia/internal/telemetry"
)

// Health route paths.
const (
	LivenessPath  = "/healthz"
	ReadinessPath = "/readyz"
)

// HTTP server timeouts. WriteTimeout leaves room above the store ceiling so a timed-out lookup
// still produces its 500 response.
const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
	writeSlack        = 5 * time.Second
)

// Deps holds the HTTP handlers and optional telemetry.
type Deps struct {
	// Challenge serves /api/daily-challenge. Required.
	Challenge *challengehandler.Handler
	// Health serves /healthz and /readyz. If nil, the routes are not registered.
	Health *healthhandler.Server
	// Emitter receives one event per request. If nil, no request telemetry is emitted.
	Emitter telemetry.EventEmitter
	// Logger is used for access logs and recovered panics.
	Logger *zap.Logger
}

// NewHTTPHandler registers all routes and wraps them in the middleware chain.
//
// Route → handler mapping:
//   - /api/daily-challenge → internal/challenge/handler
//   - /healthz, /readyz    → internal/health/handler
func NewHTTPHandler(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	deps.Challenge.Register(mux)
	if deps.Health != nil {
		mux.HandleFunc("GET "+LivenessPath, deps.Health.Liveness)
		mux.HandleFunc("GET "+ReadinessPath, deps.Health.Readiness)
	}
	skip := map[string]bool{LivenessPath: true, ReadinessPath: true}
	// Recover sits innermost so panics still reach the access log and telemetry as a 500.
	return middleware.Chain(mux,
		middleware.RequestID(),
		middleware.AccessLog(logger),
		middleware.Telemetry(deps.Emitter, logger, skip),
		middleware.Recover(logger),
	)
}

// NewHTTPServer returns an http.Server for handler on addr. storeTimeout sizes the write timeout.
func NewHTTPServer(addr string, handler http.Handler, storeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      storeTimeout + writeSlack,
		IdleTimeout:       idleTimeout,
	}
}
