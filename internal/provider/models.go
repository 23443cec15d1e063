// Package provider defines the monitored AI endpoint configurations and
// the probe results recorded against them.
package provider

import "time"

// Type identifies the upstream AI provider family. The set is closed:
// the prober switches exhaustively over it when building probe requests.
type Type string

// Supported provider types.
const (
	TypeOpenAI     Type = "openai"
	TypeAnthropic  Type = "anthropic"
	TypeGemini     Type = "gemini"
	TypeMistral    Type = "mistral"
	TypeGroq       Type = "groq"
	TypeOpenRouter Type = "openrouter"
)

// AllTypes lists every supported provider type.
func AllTypes() []Type {
	return []Type{TypeOpenAI, TypeAnthropic, TypeGemini, TypeMistral, TypeGroq, TypeOpenRouter}
}

// Valid reports whether t is a known provider type.
func (t Type) Valid() bool {
	switch t {
	case TypeOpenAI, TypeAnthropic, TypeGemini, TypeMistral, TypeGroq, TypeOpenRouter:
		return true
	}
	return false
}

// defaultEndpoints maps a provider type to its canonical chat-completion URL,
// used when a config does not pin an explicit endpoint.
var defaultEndpoints = map[Type]string{
	TypeOpenAI:     "https://api.openai.com/v1/chat/completions",
	TypeAnthropic:  "https://api.anthropic.com/v1/messages",
	TypeGemini:     "https://generativelanguage.googleapis.com/v1beta/models",
	TypeMistral:    "https://api.mistral.ai/v1/chat/completions",
	TypeGroq:       "https://api.groq.com/openai/v1/chat/completions",
	TypeOpenRouter: "https://openrouter.ai/api/v1/chat/completions",
}

// Status classifies a single probe outcome.
type Status string

// Probe statuses.
const (
	StatusOperational      Status = "operational"
	StatusDegraded         Status = "degraded"
	StatusValidationFailed Status = "validation_failed"
	StatusFailed           Status = "failed"
	StatusError            Status = "error"
	StatusMaintenance      Status = "maintenance"
)

// Config describes one monitored endpoint. Configs are immutable per load
// cycle; the Loader returns a fresh slice on each reload.
type Config struct {
	ID          string `yaml:"id" json:"id"`
	DisplayName string `yaml:"displayName" json:"displayName"`
	Type        Type   `yaml:"type" json:"type"`
	Model       string `yaml:"model" json:"model"`
	Endpoint    string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Group       string `yaml:"group,omitempty" json:"group,omitempty"`
	Maintenance bool   `yaml:"maintenance,omitempty" json:"maintenance,omitempty"`
}

// EffectiveEndpoint returns the configured endpoint, falling back to the
// type's default URL.
func (c Config) EffectiveEndpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return defaultEndpoints[c.Type]
}

// CheckResult is one probe outcome. Results are append-only: once written
// they are never mutated, except for the non-persisted OfficialStatus
// enrichment attached at read time.
type CheckResult struct {
	ConfigID    string `json:"configId"`
	DisplayName string `json:"displayName"`
	Type        Type   `json:"type"`
	Endpoint    string `json:"endpoint"`
	Model       string `json:"model"`
	Status      Status `json:"status"`
	// LatencyMS is the application-level probe latency. Nil on failure.
	LatencyMS *int64 `json:"latencyMs"`
	// PingMS is network-only latency, measured independently of the probe.
	PingMS    *int64 `json:"pingMs"`
	CheckedAt string `json:"checkedAt"`
	Message   string `json:"message"`
	Group     string `json:"group,omitempty"`
	// OfficialStatus is attached at read time from the provider's own
	// status page feed. Never persisted.
	OfficialStatus string `json:"officialStatus,omitempty"`
}

// NewCheckResult builds a result skeleton for a config, stamped now.
func NewCheckResult(cfg Config, status Status, message string) CheckResult {
	return CheckResult{
		ConfigID:    cfg.ID,
		DisplayName: cfg.DisplayName,
		Type:        cfg.Type,
		Endpoint:    cfg.EffectiveEndpoint(),
		Model:       cfg.Model,
		Status:      status,
		CheckedAt:   time.Now().UTC().Format(time.RFC3339),
		Message:     message,
		Group:       cfg.Group,
	}
}

// ActiveConfigs filters out maintenance-flagged configs.
func ActiveConfigs(configs []Config) []Config {
	active := make([]Config, 0, len(configs))
	for _, c := range configs {
		if !c.Maintenance {
			active = append(active, c)
		}
	}
	return active
}

// MaintenanceConfigs returns only maintenance-flagged configs.
func MaintenanceConfigs(configs []Config) []Config {
	var out []Config
	for _, c := range configs {
		if c.Maintenance {
			out = append(out, c)
		}
	}
	return out
}

// IDs extracts the config identifiers, preserving order.
func IDs(configs []Config) []string {
	ids := make([]string, len(configs))
	for i, c := range configs {
		ids[i] = c.ID
	}
	return ids
}
