package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is an in-process Cache. Values are stored encoded so callers
// never share state with the cache.
type MemoryCache[T any] struct {
	entries map[string]memoryEntry
	ttl     time.Duration
	lock    sync.RWMutex
	nowFunc func() time.Time
}

var _ Cache[struct{}] = (*MemoryCache[struct{}])(nil)

type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	nowFunc func() time.Time
}

// WithNowTime overrides the clock used to expire entries
func WithNowTime(now func() time.Time) MemoryOption {
	return func(o *memoryOptions) {
		o.nowFunc = now
	}
}

// NewMemoryCache creates a cache whose entries live for ttl. A zero ttl never expires.
func NewMemoryCache[T any](ttl time.Duration, opts ...MemoryOption) *MemoryCache[T] {
	o := memoryOptions{nowFunc: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryCache[T]{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		nowFunc: o.nowFunc,
	}
}

func (m *MemoryCache[T]) Get(_ context.Context, key string) (T, error) {
	var value T

	m.lock.RLock()
	entry, ok := m.entries[key]
	m.lock.RUnlock()

	if !ok {
		return value, ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && !m.nowFunc().Before(entry.expiresAt) {
		m.lock.Lock()
		delete(m.entries, key)
		m.lock.Unlock()
		return value, ErrCacheMiss
	}
	if err := json.Unmarshal(entry.data, &value); err != nil {
		return value, fmt.Errorf("unmarshal cached value failed: %w", err)
	}
	return value, nil
}

func (m *MemoryCache[T]) Set(_ context.Context, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value failed: %w", err)
	}
	entry := memoryEntry{data: data}
	if m.ttl > 0 {
		entry.expiresAt = m.nowFunc().Add(m.ttl)
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.entries[key] = entry
	return nil
}

func (m *MemoryCache[T]) Delete(_ context.Context, key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryCache[T]) Flush(_ context.Context) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.entries = make(map[string]memoryEntry)
	return nil
}
