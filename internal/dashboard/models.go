// Package dashboard composes snapshots, availability statistics, and group
// metadata into the cached, fingerprinted payloads served over HTTP.
package dashboard

import (
	"github.com/aipulse/aipulse/internal/snapshot"
	"github.com/aipulse/aipulse/internal/stats"
)

// GroupInfo summarizes one provider group.
type GroupInfo struct {
	Name        string `json:"name"`
	ConfigCount int    `json:"configCount"`
}

// Dashboard is the whole-dashboard response payload.
type Dashboard struct {
	GeneratedAt         string                        `json:"generatedAt"`
	LastUpdatedAt       string                        `json:"lastUpdatedAt,omitempty"`
	TrendPeriod         stats.Period                  `json:"trendPeriod"`
	PollIntervalSeconds int                           `json:"pollIntervalSeconds"`
	Timelines           []snapshot.Timeline           `json:"timelines"`
	Availability        map[string]stats.Availability `json:"availability"`
	Groups              []GroupInfo                   `json:"groups"`
}

func (d *Dashboard) withoutGeneratedAt() any {
	cp := *d
	cp.GeneratedAt = ""
	return &cp
}

// GroupDashboard is the per-group response payload.
type GroupDashboard struct {
	Group               string                        `json:"group"`
	GeneratedAt         string                        `json:"generatedAt"`
	LastUpdatedAt       string                        `json:"lastUpdatedAt,omitempty"`
	TrendPeriod         stats.Period                  `json:"trendPeriod"`
	PollIntervalSeconds int                           `json:"pollIntervalSeconds"`
	Timelines           []snapshot.Timeline           `json:"timelines"`
	Availability        map[string]stats.Availability `json:"availability"`
}

func (g *GroupDashboard) withoutGeneratedAt() any {
	cp := *g
	cp.GeneratedAt = ""
	return &cp
}
