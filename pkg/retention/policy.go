package retention

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultRetentionDays is the age limit for base paths without an override.
const DefaultRetentionDays = 30

// Policy resolves the maximum age of day directories for a base path.
//
// Overrides come from an optional JSON object mapping absolute base paths
// to a number of days:
//
//	{
//	    "/pix/anro/edi/dat_connexion/log/": 90,
//	    "/var/log/batch": 7
//	}
//
// The file is read on first use and cached until Invalidate is called.
// A missing or malformed file is never an error for callers: every lookup
// then yields the default.
type Policy struct {
	path        string
	defaultDays int
	logger      *slog.Logger

	mu        sync.Mutex
	loaded    bool
	overrides map[string]int
	loadErr   error
}

// NewPolicy creates a Policy reading overrides from path. An empty path
// disables overrides; a non-positive defaultDays means DefaultRetentionDays.
func NewPolicy(path string, defaultDays int) *Policy {
	if defaultDays <= 0 {
		defaultDays = DefaultRetentionDays
	}
	return &Policy{
		path:        path,
		defaultDays: defaultDays,
		logger:      slog.Default().With("component", "retention.policy"),
	}
}

// Path returns the override file location.
func (p *Policy) Path() string {
	return p.path
}

// DefaultDays returns the fallback retention age.
func (p *Policy) DefaultDays() int {
	if p == nil {
		return DefaultRetentionDays
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.defaultDays
}

// SetDefaultDays replaces the fallback retention age. A non-positive value
// means DefaultRetentionDays.
func (p *Policy) SetDefaultDays(days int) {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	p.mu.Lock()
	p.defaultDays = days
	p.mu.Unlock()
}

// ResolveMaxAgeDays returns the retention age for basePath. The exact key is
// tried first, then the same path with its trailing separator added or
// removed.
func (p *Policy) ResolveMaxAgeDays(basePath string) int {
	if p == nil {
		return DefaultRetentionDays
	}

	overrides := p.load()
	for _, key := range lookupKeys(basePath) {
		if days, ok := overrides[key]; ok {
			p.logger.Debug("retention override applied",
				"base_path", basePath,
				"key", key,
				"days", days,
			)
			return days
		}
	}
	return p.DefaultDays()
}

// LoadError returns the error from the most recent read of the override
// file, if any.
func (p *Policy) LoadError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadErr
}

// Invalidate drops the cached overrides so the next lookup re-reads the file.
func (p *Policy) Invalidate() {
	p.mu.Lock()
	p.loaded = false
	p.overrides = nil
	p.loadErr = nil
	p.mu.Unlock()
}

func (p *Policy) load() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded {
		return p.overrides
	}
	p.loaded = true

	if p.path == "" {
		return nil
	}

	overrides, err := LoadOverrides(p.path)
	if err != nil {
		p.loadErr = err
		if !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("ignoring retention overrides", "path", p.path, "error", err)
		}
		return nil
	}

	p.overrides = overrides
	p.logger.Debug("retention overrides loaded", "path", p.path, "entries", len(overrides))
	return overrides
}

// LoadOverrides reads the override file. Entries whose value is not a
// positive integer are skipped.
func LoadOverrides(path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewConfigReadError(path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, NewConfigReadError(path, fmt.Errorf("parse overrides: %w", err))
	}

	overrides := make(map[string]int, len(raw))
	for key, value := range raw {
		var days int
		if err := json.Unmarshal(value, &days); err != nil || days <= 0 {
			continue
		}
		overrides[key] = days
	}
	return overrides, nil
}

func lookupKeys(basePath string) []string {
	sep := string(filepath.Separator)
	keys := []string{basePath}
	if trimmed := strings.TrimRight(basePath, sep); trimmed != basePath && trimmed != "" {
		keys = append(keys, trimmed)
	} else if basePath != "" && !strings.HasSuffix(basePath, sep) {
		keys = append(keys, basePath+sep)
	}
	return keys
}
