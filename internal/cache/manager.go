// Package cache materializes independent, named, TTL-scoped caches for the
// chain's cache stage and for the policy store's read-through layer.
package cache

import (
	"strconv"
	"strings"
	"sync"
	"time"

	go_cache "github.com/patrickmn/go-cache"
)

const (
	minTTLSeconds = 1
	maxTTLSeconds = 86400

	cleanupInterval = 10 * time.Minute
)

// Manager lazily materializes named caches. The same name always resolves
// to the same *go_cache.Cache instance for the manager's lifetime; names
// differing only by their `:ttl=<seconds>` suffix are distinct caches
// (§4.7).
type Manager struct {
	mu      sync.Mutex
	caches  map[string]*go_cache.Cache
	baseTTL time.Duration
}

// NewManager creates a Manager. baseTTL is used for names that carry no
// `:ttl=` suffix.
func NewManager(baseTTL time.Duration) *Manager {
	return &Manager{
		caches:  make(map[string]*go_cache.Cache),
		baseTTL: baseTTL,
	}
}

// GetCache returns the cache registered under name, constructing it on
// first use. The TTL suffix, if present and valid, is clamped to
// [1, 86400] seconds and used as the cache's expireAfterWrite duration;
// otherwise the manager's base TTL applies.
func (m *Manager) GetCache(name string) *go_cache.Cache {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.caches[name]; ok {
		return c
	}

	ttl := m.baseTTL
	if parsed, ok := parseTTLSuffix(name); ok {
		ttl = clampTTL(parsed)
	}

	c := go_cache.New(ttl, cleanupInterval)
	m.caches[name] = c
	return c
}

// parseTTLSuffix extracts the integer seconds from a `<base>:ttl=<n>` name.
func parseTTLSuffix(name string) (time.Duration, bool) {
	idx := strings.LastIndex(name, ":ttl=")
	if idx < 0 {
		return 0, false
	}
	seconds, err := strconv.Atoi(name[idx+len(":ttl="):])
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

func clampTTL(d time.Duration) time.Duration {
	if d < minTTLSeconds*time.Second {
		return minTTLSeconds * time.Second
	}
	if d > maxTTLSeconds*time.Second {
		return maxTTLSeconds * time.Second
	}
	return d
}

// CacheName builds the `<base>:ttl=<seconds>` name the cache stage passes
// to GetCache, given an already-clamped effective TTL in seconds.
func CacheName(base string, effectiveTTLSeconds int) string {
	return base + ":ttl=" + strconv.Itoa(effectiveTTLSeconds)
}
