package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aipulse/aipulse/internal/provider"
	"github.com/aipulse/aipulse/internal/snapshot"
	"github.com/aipulse/aipulse/internal/stats"
)

func TestFingerprintBytesSeed(t *testing.T) {
	// Empty input leaves the seed untouched.
	assert.Equal(t, "00001505", fingerprintBytes(nil))
}

func TestFingerprintBytesDeterministic(t *testing.T) {
	data := []byte(`{"timelines":[]}`)

	assert.Equal(t, fingerprintBytes(data), fingerprintBytes(data))
	assert.NotEqual(t, fingerprintBytes(data), fingerprintBytes([]byte(`{"timelines":[{}]}`)))
	assert.Len(t, fingerprintBytes(data), 8)
}

func TestFingerprintIgnoresGeneratedAt(t *testing.T) {
	base := &Dashboard{
		GeneratedAt:         "2026-08-26T10:00:00Z",
		LastUpdatedAt:       "2026-08-26T09:59:30Z",
		TrendPeriod:         stats.Period7d,
		PollIntervalSeconds: 60,
		Timelines: []snapshot.Timeline{
			{ConfigID: "c-1", Latest: provider.CheckResult{ConfigID: "c-1", Status: provider.StatusOperational}},
		},
		Availability: map[string]stats.Availability{
			"c-1": {Percentage: 99.5, Total: 200, Operational: 199},
		},
		Groups: []GroupInfo{{Name: "OpenAI", ConfigCount: 1}},
	}

	recomposed := *base
	recomposed.GeneratedAt = time.Now().UTC().Format(time.RFC3339)

	assert.Equal(t, Fingerprint(base), Fingerprint(&recomposed),
		"identical data must fingerprint identically regardless of compose time")
}

func TestFingerprintChangesWithData(t *testing.T) {
	base := &Dashboard{TrendPeriod: stats.Period7d, PollIntervalSeconds: 60}
	changed := *base
	changed.LastUpdatedAt = "2026-08-26T10:00:00Z"

	assert.NotEqual(t, Fingerprint(base), Fingerprint(&changed))
}

func TestFingerprintGroupDashboard(t *testing.T) {
	a := &GroupDashboard{Group: "OpenAI", GeneratedAt: "2026-08-26T10:00:00Z", TrendPeriod: stats.Period30d}
	b := &GroupDashboard{Group: "OpenAI", GeneratedAt: "2026-08-26T11:30:00Z", TrendPeriod: stats.Period30d}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}
