package main

import (
	"context"
	"net/http"
	"time"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"coinpulse/internal/logger"
	"coinpulse/internal/metrics"
	"coinpulse/internal/provider"
	"coinpulse/internal/recommend"
	"coinpulse/internal/repository"
)

type assetsResponse struct {
	Provider string            `json:"provider"`
	Assets   provider.Snapshot `json:"assets"`
	Stale    bool              `json:"stale,omitempty"`
}

type recommendationResponse struct {
	Asset          provider.Asset   `json:"asset"`
	Recommendation recommend.Result `json:"recommendation"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type server struct {
	feed    repository.Feed
	log     *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	// quit closes open streams on shutdown.
	quit <-chan struct{}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/assets", s.handleAssets)
	mux.HandleFunc("GET /api/assets/{id}", s.handleAsset)
	mux.HandleFunc("GET /api/assets/{id}/recommendation", s.handleRecommendation)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/stream", s.handleStream)
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"provider": s.feed.Provider(),
		"assets":   len(s.feed.Current()),
	})
}

func (s *server) handleAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, assetsResponse{Provider: s.feed.Provider(), Assets: s.feed.Current()})
}

func (s *server) handleAsset(w http.ResponseWriter, r *http.Request) {
	a, ok := s.feed.Find(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "asset not found"})
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleRefresh runs one fetch outside the schedule. A failed fetch falls
// back to the held snapshot, flagged as stale.
func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	snap := s.feed.Refresh(ctx)
	if len(snap) > 0 {
		writeJSON(w, http.StatusOK, assetsResponse{Provider: s.feed.Provider(), Assets: snap})
		return
	}
	cur := s.feed.Current()
	if len(cur) == 0 {
		logger.FromContext(r.Context(), s.log).Warn("manual refresh returned nothing")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "provider returned no assets"})
		return
	}
	writeJSON(w, http.StatusOK, assetsResponse{Provider: s.feed.Provider(), Assets: cur, Stale: true})
}

func (s *server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	a, ok := s.feed.Find(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "asset not found"})
		return
	}
	res := s.feed.Recommend(r.Context(), a)
	logger.FromContext(r.Context(), s.log).Info("recommendation served",
		zap.String("asset", a.ID), zap.String("label", string(res.Label)))
	writeJSON(w, http.StatusOK, recommendationResponse{Asset: repository.Annotate(a, res), Recommendation: res})
}

func (s *server) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
