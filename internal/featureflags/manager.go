// Package featureflags evaluates flags from a comma separated key=value list.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"maps"
	"strconv"
	"strings"
)

// FlagRankedFeed switches a viewer between the ranked and the chronological feed.
const FlagRankedFeed = "ranked_feed"

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "ranked_feed=on,explain_scores=25%"
type Manager struct {
	flags map[string]string
}

// NewManager creates a feature-flag manager from a comma-separated config string.
// Malformed pairs are skipped.
func NewManager(raw string) *Manager {
	out := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled returns whether a flag is enabled for a given viewer. Unknown flags
// are off. Supported values:
// - on/true/1
// - off/false/0
// - N% (deterministic per-viewer rollout; anonymous viewers are excluded)
func (m *Manager) Enabled(name string, viewerID uint) bool {
	return m.EnabledOr(name, viewerID, false)
}

// EnabledOr is Enabled with fallback returned for flags that are not configured
// or carry an unrecognised value.
func (m *Manager) EnabledOr(name string, viewerID uint, fallback bool) bool {
	if m == nil {
		return fallback
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return fallback
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return fallback
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil {
		return fallback
	}
	switch {
	case pct <= 0:
		return false
	case pct >= 100:
		return true
	case viewerID == 0:
		return false
	}
	return rolloutBucket(name, viewerID) < pct
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return maps.Clone(m.flags)
}

// Snapshot returns evaluated flag status for one viewer.
func (m *Manager) Snapshot(viewerID uint) map[string]bool {
	if m == nil {
		return map[string]bool{}
	}
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, viewerID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, viewerID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), viewerID)
	return int(h.Sum32() % 100)
}
