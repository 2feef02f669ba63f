// Package api declares the operational HTTP endpoints and shared middleware.
package api

import (
	"context"
	"net/http"

	"github.com/okian/homeview/internal/domain/view"
)

// Dependencies required by the operational handlers.
type Dependencies interface {
	// Views lists the view tokens the resolver can render.
	Views() []view.Token
}

// Server wires the operational routes.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	metricsHandler http.Handler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(deps),
		statsHandler:   NewStatsHandler(statsProvider),
		metricsHandler: NewMetricsHandler(),
	}
}

// Register attaches the operational routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.Handle("GET /metrics", s.metricsHandler)
}
