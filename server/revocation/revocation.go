// Package revocation remembers access tokens ended by logout until they would
// have expired anyway.
package revocation

import (
	"sync"
	"time"
)

// Cache holds revoked token ids (jti) with the expiry of their token
type Cache interface {
	Add(jti string, exp time.Time) error
	IsRevoked(jti string) bool
	Cleanup() int // Drops entries whose token has expired, returns how many
}

var _ Cache = (*MemoryCache)(nil)

type MemoryCache struct {
	revoked map[string]time.Time
	lock    sync.RWMutex
	nowFunc func() time.Time
}

// NewMemoryCache creates a cache that ages entries out against nowFunc, so
// the backend's clock decides when a revoked token can be forgotten
func NewMemoryCache(nowFunc func() time.Time) *MemoryCache {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &MemoryCache{
		revoked: make(map[string]time.Time),
		nowFunc: nowFunc,
	}
}

func (c *MemoryCache) Add(jti string, exp time.Time) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if current, ok := c.revoked[jti]; ok && current.After(exp) {
		return nil
	}
	c.revoked[jti] = exp
	return nil
}

func (c *MemoryCache) IsRevoked(jti string) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	_, ok := c.revoked[jti]
	return ok
}

func (c *MemoryCache) Cleanup() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	now := c.nowFunc()
	removed := 0
	for jti, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, jti)
			removed++
		}
	}
	return removed
}
