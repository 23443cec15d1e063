package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/aipulse/aipulse/internal/api/response"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler serves liveness and readiness probes.
type OpsHandler struct {
	version   string
	buildTime string
	db        Pinger
}

// NewOpsHandler creates an OpsHandler. db may be nil when no database is
// configured (in-memory mode).
func NewOpsHandler(version, buildTime string, db Pinger) *OpsHandler {
	return &OpsHandler{version: version, buildTime: buildTime, db: db}
}

type health struct {
	Status  string `json:"status"`
	Time    string `json:"time"`
	Version string `json:"version,omitempty"`
	Build   string `json:"buildTime,omitempty"`
}

// HealthCheck handles GET /api/ops/health.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, health{
		Status:  "ok",
		Time:    time.Now().UTC().Format(time.RFC3339),
		Version: h.version,
		Build:   h.buildTime,
	})
}

// ReadinessCheck handles GET /api/ops/ready.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			response.JSON(w, r, http.StatusServiceUnavailable, health{
				Status: "degraded",
				Time:   time.Now().UTC().Format(time.RFC3339),
			})
			return
		}
	}
	response.JSON(w, r, http.StatusOK, health{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
