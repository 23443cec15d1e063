package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aipulse/aipulse/internal/history"
	"github.com/aipulse/aipulse/internal/provider"
)

func result(id, name string, t provider.Type, status provider.Status, checkedAt string) provider.CheckResult {
	return provider.CheckResult{
		ConfigID:    id,
		DisplayName: name,
		Type:        t,
		Status:      status,
		CheckedAt:   checkedAt,
	}
}

func TestBuildTimelinesSortsByDisplayNameCaseInsensitive(t *testing.T) {
	snap := history.Snapshot{
		"c-zeta":  {result("c-zeta", "zeta", provider.TypeOpenAI, provider.StatusOperational, "2026-08-26T10:00:00Z")},
		"c-alpha": {result("c-alpha", "Alpha", provider.TypeAnthropic, provider.StatusOperational, "2026-08-26T10:00:00Z")},
		"c-beta":  {result("c-beta", "beta", provider.TypeMistral, provider.StatusOperational, "2026-08-26T10:00:00Z")},
	}

	timelines := BuildTimelines(snap, nil, nil)

	require.Len(t, timelines, 3)
	assert.Equal(t, []string{"c-alpha", "c-beta", "c-zeta"}, []string{
		timelines[0].ConfigID, timelines[1].ConfigID, timelines[2].ConfigID,
	})
}

func TestBuildTimelinesTieBreaksDeterministically(t *testing.T) {
	// Same name modulo case: exact name decides, then config ID.
	snap := history.Snapshot{
		"c-2": {result("c-2", "claude", provider.TypeAnthropic, provider.StatusOperational, "")},
		"c-1": {result("c-1", "Claude", provider.TypeAnthropic, provider.StatusOperational, "")},
		"c-3": {result("c-3", "Claude", provider.TypeAnthropic, provider.StatusOperational, "")},
	}

	timelines := BuildTimelines(snap, nil, nil)

	require.Len(t, timelines, 3)
	assert.Equal(t, "c-1", timelines[0].ConfigID)
	assert.Equal(t, "c-3", timelines[1].ConfigID)
	assert.Equal(t, "c-2", timelines[2].ConfigID)
}

func TestBuildTimelinesLatestIsFirstItem(t *testing.T) {
	snap := history.Snapshot{
		"c-1": {
			result("c-1", "GPT-4o", provider.TypeOpenAI, provider.StatusFailed, "2026-08-26T10:05:00Z"),
			result("c-1", "GPT-4o", provider.TypeOpenAI, provider.StatusOperational, "2026-08-26T10:00:00Z"),
		},
	}

	timelines := BuildTimelines(snap, nil, nil)

	require.Len(t, timelines, 1)
	assert.Equal(t, provider.StatusFailed, timelines[0].Latest.Status)
	assert.Len(t, timelines[0].Items, 2)
}

func TestBuildTimelinesEnrichesLatestWithOfficialStatus(t *testing.T) {
	snap := history.Snapshot{
		"c-1": {result("c-1", "GPT-4o", provider.TypeOpenAI, provider.StatusOperational, "2026-08-26T10:00:00Z")},
		"c-2": {result("c-2", "Claude", provider.TypeAnthropic, provider.StatusOperational, "2026-08-26T10:00:00Z")},
	}
	official := func(t provider.Type) string {
		if t == provider.TypeOpenAI {
			return "All Systems Operational"
		}
		return ""
	}

	timelines := BuildTimelines(snap, nil, official)

	require.Len(t, timelines, 2)
	assert.Empty(t, timelines[0].Latest.OfficialStatus) // Claude sorts first
	assert.Equal(t, "All Systems Operational", timelines[1].Latest.OfficialStatus)

	// Only the latest result carries enrichment, items stay raw.
	assert.Empty(t, timelines[1].Items[0].OfficialStatus)
}

func TestBuildTimelinesMaintenancePlaceholder(t *testing.T) {
	maintenance := []provider.Config{
		{ID: "c-maint", DisplayName: "Down For Work", Type: provider.TypeGroq, Model: "llama-3.3-70b", Maintenance: true},
	}

	timelines := BuildTimelines(history.Snapshot{}, maintenance, nil)

	require.Len(t, timelines, 1)
	tl := timelines[0]
	assert.Equal(t, provider.StatusMaintenance, tl.Latest.Status)
	assert.Equal(t, "under maintenance", tl.Latest.Message)
	assert.Empty(t, tl.Latest.CheckedAt, "placeholders carry no timestamp")
	assert.Nil(t, tl.Latest.LatencyMS)
	assert.Empty(t, tl.Items)
}

func TestBuildTimelinesMaintenanceWithHistoryKeepsRealTimeline(t *testing.T) {
	snap := history.Snapshot{
		"c-maint": {result("c-maint", "Flaky", provider.TypeGroq, provider.StatusOperational, "2026-08-26T10:00:00Z")},
	}
	maintenance := []provider.Config{
		{ID: "c-maint", DisplayName: "Flaky", Type: provider.TypeGroq, Maintenance: true},
	}

	timelines := BuildTimelines(snap, maintenance, nil)

	require.Len(t, timelines, 1, "no duplicate placeholder for configs with history")
	assert.Equal(t, provider.StatusOperational, timelines[0].Latest.Status)
}

func TestBuildTimelinesSkipsEmptyHistorySlices(t *testing.T) {
	snap := history.Snapshot{
		"c-empty": {},
		"c-1":     {result("c-1", "GPT-4o", provider.TypeOpenAI, provider.StatusOperational, "")},
	}

	timelines := BuildTimelines(snap, nil, nil)

	require.Len(t, timelines, 1)
	assert.Equal(t, "c-1", timelines[0].ConfigID)
}
