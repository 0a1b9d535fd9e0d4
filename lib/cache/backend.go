// Package cache holds the dedupe cache that remembers recently seen event
// ids, over a pluggable key/value backend.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Backend is a byte key/value store with per key expiry.
type Backend interface {
	// Get returns (value, found, error).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend  string // memory, redis
	RedisURL string
	Prefix   string
	// MaxEntries bounds the memory backend, 0 means unbounded.
	MaxEntries int
}

// NewBackend builds the backend named in opts.
func NewBackend(opts Options) (Backend, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemoryCache(opts.MaxEntries, time.Minute), nil
	case "redis":
		return NewRedisCache(opts.RedisURL, opts.Prefix)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
