package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alejandrodnm/betgpt/internal/domain"
)

type handlers struct {
	q Queries
}

// GET /api/markets
func (h *handlers) markets(w http.ResponseWriter, r *http.Request) {
	v, err := h.q.Markets()
	respond(w, r, v, err)
}

// GET /api/analytics
func (h *handlers) analytics(w http.ResponseWriter, r *http.Request) {
	v, err := h.q.Analytics(r.Context())
	respond(w, r, v, err)
}

// GET /api/arbitrage
func (h *handlers) arbitrage(w http.ResponseWriter, r *http.Request) {
	v, err := h.q.Arbitrage()
	respond(w, r, v, err)
}

// GET /api/backtest
func (h *handlers) backtest(w http.ResponseWriter, r *http.Request) {
	v, err := h.q.Backtest()
	respond(w, r, v, err)
}

// GET /api/portfolio
func (h *handlers) portfolio(w http.ResponseWriter, r *http.Request) {
	v, err := h.q.Portfolio()
	respond(w, r, v, err)
}

// GET /api/health
func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.q.Health())
}

func respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, v)
		return
	}
	if errors.Is(err, domain.ErrNotReady) {
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	slog.Error("handler failed", "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// writeJSON serializes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"success":false,"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
