// Package relay is the core of the gatekeeper: it decides what happens to
// every incoming event and replays stored events for subscriptions.
package relay

import (
	"context"

	"github.com/nbd-wtf/go-nostr"

	"github.com/HORNET-Storage/hornet-gatekeeper/lib/cache"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/logging"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/metrics"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/nip09"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/nip13"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/passlist"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/policy"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/stores"
)

// PassListResolver yields the owner plus the owner's follows.
type PassListResolver interface {
	Resolve(ctx context.Context, owner string) passlist.List
}

// EventDeleter applies a deletion request.
type EventDeleter interface {
	DeleteEvent(ctx context.Context, ev *nostr.Event) (bool, string, error)
}

// Options wires an Engine. Store and Dedupe are required; PassList and
// Deleter default to the store backed implementations.
type Options struct {
	Policy   policy.Config
	Store    stores.EventStore
	Dedupe   *cache.Dedupe
	PassList PassListResolver
	Deleter  EventDeleter
	Metrics  *metrics.Metrics
	Logger   *logging.Logger
}

// Engine is shared by every session; it holds no per session state.
type Engine struct {
	policy   policy.Config
	store    stores.EventStore
	dedupe   *cache.Dedupe
	passList PassListResolver
	deleter  EventDeleter
	work     nip13.Verifier
	metrics  *metrics.Metrics
	log      *logging.Logger
}

func New(opts Options) *Engine {
	e := &Engine{
		policy:   opts.Policy,
		store:    opts.Store,
		dedupe:   opts.Dedupe,
		passList: opts.PassList,
		deleter:  opts.Deleter,
		work:     nip13.Verifier{MinDifficulty: opts.Policy.ProofOfWorkDifficulty},
		metrics:  opts.Metrics,
		log:      opts.Logger,
	}
	if e.passList == nil {
		e.passList = passlist.NewResolver(opts.Store)
	}
	if e.deleter == nil {
		deleter := nip09.NewDeleter(opts.Store)
		deleter.OnDeleted = e.forget
		e.deleter = deleter
	}
	if e.log == nil {
		e.log = logging.GetLogger()
	}
	return e
}

// forget drops the dedupe marker of a deleted event so a later resubmission
// is judged against the store alone.
func (e *Engine) forget(ctx context.Context, id string) {
	if err := e.dedupe.Forget(ctx, id); err != nil {
		e.log.Warn("Failed to forget deleted event in dedupe cache", logging.Fields{"event": id, "error": err})
	}
}

// Policy returns the write policy the engine was built with.
func (e *Engine) Policy() policy.Config {
	return e.policy
}
