package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryCache is a process local Backend.
type MemoryCache struct {
	data    *xsync.MapOf[string, memoryEntry]
	maxSize int
	now     func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache starts a memory cache that sweeps expired entries every
// cleanupInterval and keeps at most maxSize of them (0 = no bound).
func NewMemoryCache(maxSize int, cleanupInterval time.Duration) *MemoryCache {
	m := &MemoryCache{
		data:    xsync.NewMapOf[string, memoryEntry](),
		maxSize: maxSize,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go m.cleanupLoop(cleanupInterval)
	}
	return m
}

// SetClock replaces the time source used for expiry.
func (m *MemoryCache) SetClock(now func() time.Time) {
	m.now = now
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	entry, ok := m.data.Load(key)
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(entry.expiresAt) {
		m.data.Delete(key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data.Store(key, memoryEntry{value: value, expiresAt: m.now().Add(ttl)})
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.data.Delete(key)
	return nil
}

// Len reports the number of entries, expired or not.
func (m *MemoryCache) Len() int {
	return m.data.Size()
}

func (m *MemoryCache) Close() error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	return nil
}

func (m *MemoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

// cleanup drops expired entries, then the soonest to expire while the
// cache is over its bound.
func (m *MemoryCache) cleanup() {
	now := m.now()

	type live struct {
		key       string
		expiresAt time.Time
	}
	var entries []live

	m.data.Range(func(key string, entry memoryEntry) bool {
		if !now.Before(entry.expiresAt) {
			m.data.Delete(key)
		} else {
			entries = append(entries, live{key, entry.expiresAt})
		}
		return true
	})

	if m.maxSize > 0 && len(entries) > m.maxSize {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].expiresAt.Before(entries[j].expiresAt)
		})
		for _, e := range entries[:len(entries)-m.maxSize] {
			m.data.Delete(e.key)
		}
	}
}
