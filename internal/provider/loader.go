package provider

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// configFile is the YAML document shape for provider definitions.
type configFile struct {
	Providers []Config `yaml:"providers"`
}

// ParseConfigs decodes and validates a YAML provider definition document.
func ParseConfigs(data []byte) ([]Config, error) {
	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse provider config: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Providers))
	for i, c := range file.Providers {
		if c.ID == "" {
			return nil, fmt.Errorf("provider %d: missing id", i)
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("provider %q: duplicate id", c.ID)
		}
		seen[c.ID] = struct{}{}
		if !c.Type.Valid() {
			return nil, fmt.Errorf("provider %q: unknown type %q", c.ID, c.Type)
		}
		if c.DisplayName == "" {
			return nil, fmt.Errorf("provider %q: missing displayName", c.ID)
		}
	}
	return file.Providers, nil
}

// Loader reads provider configs from a YAML file, caching the parsed result
// for a short TTL so the API can reload definitions without a restart while
// keeping per-request cost flat.
type Loader struct {
	path string
	ttl  time.Duration

	mu       sync.Mutex
	cached   []Config
	loadedAt time.Time
}

// NewLoader creates a Loader for the given file path. ttl <= 0 disables
// caching and re-reads the file on every call.
func NewLoader(path string, ttl time.Duration) *Loader {
	return &Loader{path: path, ttl: ttl}
}

// Load returns the current provider configs. The returned slice is a copy;
// callers may not mutate loader state through it.
func (l *Loader) Load() ([]Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil && l.ttl > 0 && time.Since(l.loadedAt) < l.ttl {
		return append([]Config(nil), l.cached...), nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		// Serve the last good set if the file becomes unreadable mid-run.
		if l.cached != nil {
			return append([]Config(nil), l.cached...), nil
		}
		return nil, fmt.Errorf("read provider config: %w", err)
	}

	configs, err := ParseConfigs(data)
	if err != nil {
		if l.cached != nil {
			return append([]Config(nil), l.cached...), nil
		}
		return nil, err
	}

	l.cached = configs
	l.loadedAt = time.Now()
	return append([]Config(nil), configs...), nil
}
