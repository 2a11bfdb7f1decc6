// Package handler serves today's challenge over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"daily-trivia/internal/challenge/domain"
	"daily-trivia/internal/challenge/service"
)

// Path is the route of the daily challenge endpoint.
const Path = "/api/daily-challenge"

const (
	msgNotFound         = "No challenge found for today"
	msgInternal         = "Internal server error"
	msgMethodNotAllowed = "Method not allowed"
)

// ChallengeService returns today's challenge shaped for a language.
type ChallengeService interface {
	TodayPublic(ctx context.Context, lang string) (*domain.PublicChallenge, error)
}

// Handler serves GET /api/daily-challenge.
type Handler struct {
	svc       ChallengeService
	supported []string
	maxAge    time.Duration
	logger    *zap.Logger
}

// NewHandler returns a Handler. supported lists the accepted language codes; maxAge sets the
// Cache-Control max-age of successful responses (zero omits it).
func NewHandler(svc ChallengeService, supported []string, maxAge time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(supported) == 0 {
		supported = []string{domain.DefaultLanguage}
	}
	return &Handler{svc: svc, supported: supported, maxAge: maxAge, logger: logger}
}

// Register mounts the handler on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle(Path, h)
}

// ServeHTTP answers with today's public challenge, 404 when none exists and 500 for any failure.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	lang := domain.ResolveLanguage(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"), h.supported)
	w.Header().Set("Vary", "Accept-Language")
	w.Header().Set("Content-Language", lang)

	challenge, err := h.svc.TodayPublic(r.Context(), lang)
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	case err != nil:
		h.logger.Error("daily challenge request failed",
			zap.String("lang", lang),
			zap.Bool("timeout", errors.Is(err, service.ErrStoreTimeout)),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	body, err := json.Marshal(challenge)
	if err != nil {
		h.logger.Error("daily challenge encode failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if h.maxAge > 0 {
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(h.maxAge/time.Second)))
	}
	writeJSON(w, http.StatusOK, body)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	body, _ := json.Marshal(errorBody{Error: msg})
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
