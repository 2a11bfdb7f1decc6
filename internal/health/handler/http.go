package handler

import (
	"net/http"
)

// Liveness answers 200 "ok" while the process is up.
func (s *Server) Liveness(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

// Readiness pings the store and answers 200 "ok", or 503 when the store is unreachable.
func (s *Server) Readiness(w http.ResponseWriter, r *http.Request) {
	if err := s.Check(r.Context()); err != nil {
		writeText(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	writeText(w, http.StatusOK, "ok")
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
