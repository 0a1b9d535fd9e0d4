// Package passlist works out which public keys may write to the relay:
// the owner plus everyone on the owner's newest contact list.
package passlist

import (
	"context"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/sync/singleflight"

	"github.com/HORNET-Storage/hornet-gatekeeper/lib/logging"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/stores"
)

const (
	KindContactList = 3

	// LookupTimeout bounds the shared contact list query.
	LookupTimeout = 10 * time.Second
)

// List is a set of hex public keys. It must not be modified once returned.
type List map[string]struct{}

func (l List) Contains(pubkey string) bool {
	_, ok := l[pubkey]
	return ok
}

func (l List) Len() int {
	return len(l)
}

// Resolver builds the pass list from the store on every call. Concurrent
// calls for the same owner share one store query; nothing is kept after
// the query returns.
type Resolver struct {
	store stores.EventStore
	group singleflight.Group
}

func NewResolver(store stores.EventStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve never fails. When the store cannot answer the list is just the
// owner.
//
// The shared query runs detached from every caller, so a caller that goes
// away does not cut the lookup short for the others; each caller only stops
// waiting on its own context.
func (r *Resolver) Resolve(ctx context.Context, owner string) List {
	if owner == "" {
		return List{}
	}

	ch := r.group.DoChan(owner, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LookupTimeout)
		defer cancel()
		return r.resolve(lookupCtx, owner), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			logging.Debug("Pass list lookup shared", logging.Fields{"owner": owner})
		}
		return res.Val.(List)
	case <-ctx.Done():
		return List{owner: {}}
	}
}

func (r *Resolver) resolve(ctx context.Context, owner string) List {
	list := List{owner: {}}

	events, err := r.store.FilterList(ctx, nostr.Filter{
		Authors: []string{owner},
		Kinds:   []int{KindContactList},
	})
	if err != nil {
		logging.Warn("Failed to load owner contact list, using owner only", logging.Fields{
			"owner": owner,
			"error": err,
		})
		return list
	}

	newest := Newest(events)
	if newest == nil {
		return list
	}

	for _, tag := range newest.Tags {
		if len(tag) >= 2 && tag[0] == "p" {
			list[tag[1]] = struct{}{}
		}
	}
	return list
}

// Newest picks the event with the greatest created_at regardless of the
// order the store returned them in. Ties keep the first seen.
func Newest(events []*nostr.Event) *nostr.Event {
	var newest *nostr.Event
	for _, ev := range events {
		if ev == nil {
			continue
		}
		if newest == nil || ev.CreatedAt > newest.CreatedAt {
			newest = ev
		}
	}
	return newest
}
