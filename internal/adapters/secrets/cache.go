// Package secrets resolves credentials from the environment, AWS Secrets
// Manager or HashiCorp Vault.
package secrets

import (
	"sync"
	"time"
)

type cacheEntry struct {
	expiresAt time.Time
	value     string
}

// secretCache is a TTL cache keyed by secret name; a zero ttl disables it
type secretCache struct {
	entries map[string]cacheEntry
	ttl     time.Duration
	mu      sync.Mutex
}

func newSecretCache(ttl time.Duration) *secretCache {
	return &secretCache{entries: make(map[string]cacheEntry), ttl: ttl}
}

func (c *secretCache) get(name string, now time.Time) (string, bool) {
	if c.ttl <= 0 {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[name]
	if !ok || now.After(e.expiresAt) {
		delete(c.entries, name)
		return "", false
	}
	return e.value, true
}

func (c *secretCache) set(name, value string, now time.Time) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = cacheEntry{value: value, expiresAt: now.Add(c.ttl)}
}
