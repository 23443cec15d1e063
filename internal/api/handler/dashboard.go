// Package handler provides HTTP handlers for the AIPulse API.
package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aipulse/aipulse/internal/api/response"
	"github.com/aipulse/aipulse/internal/dashboard"
	"github.com/aipulse/aipulse/internal/stats"
)

// DashboardHandler serves the aggregated dashboard and group views.
type DashboardHandler struct {
	aggregator *dashboard.Aggregator
	logger     zerolog.Logger
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(aggregator *dashboard.Aggregator, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{aggregator: aggregator, logger: logger}
}

func parseOptions(r *http.Request) dashboard.Options {
	q := r.URL.Query()
	return dashboard.Options{
		TrendPeriod:  stats.ParsePeriod(q.Get("trendPeriod")),
		ForceRefresh: q.Get("forceRefresh") == "1",
	}
}

// GetDashboard handles GET /api/dashboard.
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	opts := parseOptions(r)

	payload, etag, err := h.aggregator.Dashboard(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("dashboard composition failed")
		response.InternalError(w, r, "failed to compose dashboard")
		return
	}

	response.Conditional(w, r, etag, h.aggregator.PollInterval(), payload)
}

// GetGroup handles GET /api/group/{groupName}.
func (h *DashboardHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "groupName")
	if group == "" {
		response.BadRequest(w, r, "missing group name")
		return
	}
	opts := parseOptions(r)

	payload, etag, err := h.aggregator.Group(r.Context(), group, opts)
	if err != nil {
		if errors.Is(err, dashboard.ErrGroupNotFound) {
			response.NotFound(w, r, "unknown provider group: "+group)
			return
		}
		h.logger.Error().Err(err).Str("group", group).Msg("group composition failed")
		response.InternalError(w, r, "failed to compose group dashboard")
		return
	}

	response.Conditional(w, r, etag, h.aggregator.PollInterval(), payload)
}
