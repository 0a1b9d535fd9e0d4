// Package badger is the event store backed by raw BadgerDB keys with CBOR
// encoded values.
package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/multierr"

	"github.com/HORNET-Storage/hornet-gatekeeper/lib/logging"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/stores"
)

const gcInterval = 5 * time.Minute

// Options configures the store.
type Options struct {
	Path     string
	InMemory bool
	// MaxLimit caps the number of events a single filter may return.
	MaxLimit int
}

// Store implements stores.EventStore.
type Store struct {
	db       *badger.DB
	maxLimit int
	inMemory bool

	cancel context.CancelFunc
	done   chan struct{}

	closed bool
	mu     sync.RWMutex
}

var _ stores.EventStore = (*Store)(nil)

type badgerLogger struct {
	*logging.Logger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}

// Open opens (or creates) the store.
func Open(opts Options) (*Store, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, fmt.Errorf("store path is required unless running in memory")
		}
		bopts = badger.DefaultOptions(opts.Path).
			WithNumVersionsToKeep(1).
			WithCompactL0OnClose(true).
			WithValueThreshold(32 << 10)
	}
	bopts = bopts.WithLogger(badgerLogger{logging.GetLogger()}).WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open event database: %w", err)
	}

	if err := checkSchemaVersion(db); err != nil {
		return nil, multierr.Append(err, db.Close())
	}

	maxLimit := opts.MaxLimit
	if maxLimit <= 0 {
		maxLimit = defaultMaxLimit
	}

	ctx, cancel := context.WithCancel(context.Background())
	store := &Store{
		db:       db,
		maxLimit: maxLimit,
		inMemory: opts.InMemory,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	if opts.InMemory {
		close(store.done)
	} else {
		go store.runGC(ctx)
	}

	return store, nil
}

// Close stops the GC loop and closes the database. Calling it twice is fine.
func (store *Store) Close() error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.closed {
		return nil
	}
	store.closed = true

	store.cancel()
	<-store.done

	return store.db.Close()
}

func (store *Store) isClosed() bool {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.closed
}

// guard rejects calls on a closed store or with a finished context.
func (store *Store) guard(ctx context.Context) error {
	if store.isClosed() {
		return stores.ErrClosed
	}
	return ctx.Err()
}

// runGC reclaims value log space until the store is closed.
func (store *Store) runGC(ctx context.Context) {
	defer close(store.done)

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runs := 0
			for runs < 20 {
				if err := store.db.RunValueLogGC(0.5); err != nil {
					if err != badger.ErrNoRewrite {
						logging.Warnf("event store gc: %v", err)
					}
					break
				}
				runs++
			}
			if runs > 0 {
				logging.Debugf("event store gc rewrote %d value log files", runs)
			}
		}
	}
}
