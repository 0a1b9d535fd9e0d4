// Package validation produces the (status, warning) pair the relay core
// expects for every EVENT and REQ before they are handled.
package validation

import (
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/HORNET-Storage/hornet-gatekeeper/lib/signing"
)

const (
	MaxFutureDrift        = 15 * time.Minute
	MaxSubscriptionIDSize = 64
)

// isHex accepts exactly size lower case hex characters. Keys and ids are
// compared as strings everywhere else, so upper case must not get through.
func isHex(s string, size int) bool {
	if len(s) != size {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}

// TimeCheck rejects events dated too far in the future or before the epoch.
// Old events are fine.
func TimeCheck(createdAt nostr.Timestamp, now time.Time) (bool, string) {
	if createdAt < 0 {
		return false, "invalid: created_at must not be negative"
	}
	if createdAt.Time().Sub(now) > MaxFutureDrift {
		return false, "invalid: event creation date is too far off from the current time"
	}
	return true, ""
}

// Event checks shape, id and signature of an incoming event.
func Event(ev *nostr.Event) (bool, string) {
	return EventAt(ev, time.Now())
}

func EventAt(ev *nostr.Event, now time.Time) (bool, string) {
	if ev == nil {
		return false, "invalid: missing event"
	}
	if !isHex(ev.ID, 64) {
		return false, "invalid: event id must be 64 lower case hex characters"
	}
	if !isHex(ev.PubKey, 64) {
		return false, "invalid: pubkey must be 64 lower case hex characters"
	}
	if !isHex(ev.Sig, 128) {
		return false, "invalid: sig must be 128 lower case hex characters"
	}
	if ev.Kind < 0 || ev.Kind > 65535 {
		return false, "invalid: kind out of range"
	}
	if ev.GetID() != ev.ID {
		return false, "invalid: event id does not match"
	}
	if err := signing.VerifySignature(ev.Sig, ev.ID, ev.PubKey); err != nil {
		return false, "invalid: signature verification failed"
	}
	return TimeCheck(ev.CreatedAt, now)
}

// Request checks a REQ subscription id and its filters.
func Request(subscriptionID string, filters nostr.Filters) (bool, string) {
	if len(subscriptionID) == 0 || len(subscriptionID) > MaxSubscriptionIDSize {
		return false, fmt.Sprintf("error: subscription id must be 1 to %d characters", MaxSubscriptionIDSize)
	}
	if len(filters) == 0 {
		return false, "error: at least one filter is required"
	}
	for i, f := range filters {
		if f.Limit < 0 {
			return false, fmt.Sprintf("error: filter %d has a negative limit", i)
		}
		for _, id := range f.IDs {
			if !isHex(id, 64) {
				return false, fmt.Sprintf("error: filter %d has an invalid id %q", i, id)
			}
		}
		for _, author := range f.Authors {
			if !isHex(author, 64) {
				return false, fmt.Sprintf("error: filter %d has an invalid author %q", i, author)
			}
		}
		if f.Since != nil && f.Until != nil && *f.Since > *f.Until {
			return false, fmt.Sprintf("error: filter %d has since after until", i)
		}
	}
	return true, ""
}
