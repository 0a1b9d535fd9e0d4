package stores

import (
	"context"
	"errors"

	"github.com/nbd-wtf/go-nostr"
)

// ErrClosed is returned by every store call made after Close.
var ErrClosed = errors.New("database is closed")

// EventStore is the persistent event store the relay core talks to.
type EventStore interface {
	// SaveEvent writes the event keyed by its id. Saving an id that is
	// already stored is a no-op that still reports true.
	SaveEvent(ctx context.Context, ev *nostr.Event) (bool, error)

	// SelectByID returns nil, nil when the id is unknown.
	SelectByID(ctx context.Context, id string) (*nostr.Event, error)

	// FilterList returns the events matching f, newest first.
	FilterList(ctx context.Context, f nostr.Filter) ([]*nostr.Event, error)

	// DeleteEvent removes the event and its indexes. Unknown ids are ignored.
	DeleteEvent(ctx context.Context, id string) error

	Close() error
}
