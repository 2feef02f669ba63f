package api

import (
	"net/http"

	"github.com/okian/homeview/internal/domain/view"
	"github.com/okian/homeview/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	deps Dependencies
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps Dependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

type healthResponse struct {
	Status string       `json:"status"`
	Views  []view.Token `json:"views"`
}

// HandleHealth handles GET /healthz. The service is healthy while the home
// view can be resolved.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	views := []view.Token{}
	if h.deps != nil {
		views = append(views, h.deps.Views()...)
	}
	for _, v := range views {
		if v == view.Home {
			writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Views: views})
			return
		}
	}
	writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Views: views})
}

// NewMetricsHandler serves the service registry in Prometheus exposition format.
func NewMetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
