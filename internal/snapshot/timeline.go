package snapshot

import (
	"sort"
	"strings"

	"github.com/aipulse/aipulse/internal/history"
	"github.com/aipulse/aipulse/internal/provider"
)

// Timeline is one config's derived history view: its full item sequence
// plus the status-enriched latest result.
type Timeline struct {
	ConfigID string                 `json:"configId"`
	Latest   provider.CheckResult   `json:"latest"`
	Items    []provider.CheckResult `json:"items"`
}

// OfficialStatusFunc looks up a provider's own status-page verdict by type.
// It returns "" when no official status is known.
type OfficialStatusFunc func(t provider.Type) string

// BuildTimelines derives the timeline list: one entry per config with
// history, plus a synthetic maintenance placeholder for each maintenance
// config without real probes. Output order is a pure function of the input
// (latest display name ascending, case-insensitive), so identical inputs
// yield identical API responses and ETags.
func BuildTimelines(snap history.Snapshot, maintenance []provider.Config, official OfficialStatusFunc) []Timeline {
	timelines := make([]Timeline, 0, len(snap)+len(maintenance))

	for configID, items := range snap {
		if len(items) == 0 {
			continue
		}
		latest := items[0]
		if official != nil {
			if status := official(latest.Type); status != "" {
				latest.OfficialStatus = status
			}
		}
		timelines = append(timelines, Timeline{
			ConfigID: configID,
			Latest:   latest,
			Items:    items,
		})
	}

	for _, cfg := range maintenance {
		if items, ok := snap[cfg.ID]; ok && len(items) > 0 {
			continue
		}
		// Placeholder, not a probe: no latency and no timestamp, so the
		// composed payload stays deterministic for identical inputs.
		timelines = append(timelines, Timeline{
			ConfigID: cfg.ID,
			Latest: provider.CheckResult{
				ConfigID:    cfg.ID,
				DisplayName: cfg.DisplayName,
				Type:        cfg.Type,
				Endpoint:    cfg.EffectiveEndpoint(),
				Model:       cfg.Model,
				Status:      provider.StatusMaintenance,
				Message:     "under maintenance",
				Group:       cfg.Group,
			},
			Items: []provider.CheckResult{},
		})
	}

	sort.SliceStable(timelines, func(i, j int) bool {
		a := strings.ToLower(timelines[i].Latest.DisplayName)
		b := strings.ToLower(timelines[j].Latest.DisplayName)
		if a != b {
			return a < b
		}
		if timelines[i].Latest.DisplayName != timelines[j].Latest.DisplayName {
			return timelines[i].Latest.DisplayName < timelines[j].Latest.DisplayName
		}
		return timelines[i].ConfigID < timelines[j].ConfigID
	})

	return timelines
}
