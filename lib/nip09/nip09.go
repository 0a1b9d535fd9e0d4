// Package nip09 applies deletion requests (kind 5) to the event store.
package nip09

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nbd-wtf/go-nostr"

	"github.com/HORNET-Storage/hornet-gatekeeper/lib/logging"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/stores"
)

const (
	KindDeletion = 5

	msgNotAuthor  = "blocked: you are not the author of this event"
	msgBadAddress = "invalid: malformed a tag"
)

// IsDeletable reports whether the event is a deletion request.
func IsDeletable(ev *nostr.Event) bool {
	return ev.Kind == KindDeletion
}

// Deleter removes the events a deletion request points at.
type Deleter struct {
	store stores.EventStore

	// OnDeleted, when set, is called with the id of every removed event.
	OnDeleted func(ctx context.Context, id string)
}

func NewDeleter(store stores.EventStore) *Deleter {
	return &Deleter{store: store}
}

type address struct {
	kind   int
	pubkey string
	d      string
}

func parseAddress(value string) (address, bool) {
	parts := strings.SplitN(value, ":", 3)
	if len(parts) != 3 {
		return address{}, false
	}
	kind, err := strconv.Atoi(parts[0])
	if err != nil || kind < 0 {
		return address{}, false
	}
	return address{kind: kind, pubkey: parts[1], d: parts[2]}, true
}

func dTag(ev *nostr.Event) string {
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == "d" {
			return tag[1]
		}
	}
	return ""
}

// DeleteEvent checks every e and a tag of the request and, only when all of
// them belong to the requester, removes the targets. The returned message
// is empty on success and the rejection reason otherwise. Store faults are
// returned as errors.
func (d *Deleter) DeleteEvent(ctx context.Context, ev *nostr.Event) (bool, string, error) {
	var targets []string

	for _, tag := range ev.Tags {
		if len(tag) < 2 {
			continue
		}

		switch tag[0] {
		case "e":
			target, err := d.store.SelectByID(ctx, tag[1])
			if err != nil {
				return false, "", fmt.Errorf("failed to look up deletion target %s: %w", tag[1], err)
			}
			if target == nil {
				continue
			}
			if target.PubKey != ev.PubKey {
				return false, msgNotAuthor, nil
			}
			if target.Kind == KindDeletion {
				continue
			}
			targets = append(targets, target.ID)

		case "a":
			addr, ok := parseAddress(tag[1])
			if !ok {
				return false, msgBadAddress, nil
			}
			if addr.pubkey != ev.PubKey {
				return false, msgNotAuthor, nil
			}

			until := ev.CreatedAt
			filter := nostr.Filter{
				Authors: []string{addr.pubkey},
				Kinds:   []int{addr.kind},
				Until:   &until,
			}
			if addr.d != "" {
				filter.Tags = nostr.TagMap{"d": []string{addr.d}}
			}

			found, err := d.store.FilterList(ctx, filter)
			if err != nil {
				return false, "", fmt.Errorf("failed to look up address %s: %w", tag[1], err)
			}
			for _, target := range found {
				if dTag(target) == addr.d {
					targets = append(targets, target.ID)
				}
			}
		}
	}

	for _, id := range targets {
		if err := d.store.DeleteEvent(ctx, id); err != nil {
			return false, "", fmt.Errorf("failed to delete %s: %w", id, err)
		}
		if d.OnDeleted != nil {
			d.OnDeleted(ctx, id)
		}
	}

	logging.Debug("Deletion request applied", logging.Fields{
		"event":   ev.ID,
		"removed": len(targets),
	})

	return true, "", nil
}
