package relay

import (
	"context"

	"github.com/nbd-wtf/go-nostr"

	lib_nostr "github.com/HORNET-Storage/hornet-gatekeeper/lib/handlers/nostr"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/logging"
)

// Dispatch answers one REQ with the stored events of every filter, in
// filter order and store order, followed by a single EOSE. A filter that
// matches nothing, or whose query fails, adds no frames and the rest still
// run. Once ctx is done nothing more is sent, EOSE included.
func (e *Engine) Dispatch(ctx context.Context, sess lib_nostr.Session, subscriptionID string, filters nostr.Filters, status bool, warning string) error {
	if !status {
		e.metrics.Notice()
		return lib_nostr.SendNotice(sess, warning)
	}

	e.metrics.Request()
	sent := 0

	for i, filter := range filters {
		if err := ctx.Err(); err != nil {
			return err
		}

		events, err := e.store.FilterList(ctx, filter)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.log.Warn("Filter query failed", logging.Fields{
				"subscription": subscriptionID,
				"filter":       i,
				"error":        err,
			})
			continue
		}

		for _, ev := range events {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := lib_nostr.SendEvent(sess, subscriptionID, ev); err != nil {
				return err
			}
			e.metrics.EventSent()
			sent++
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	e.log.Debug("Subscription replay finished", logging.Fields{
		"subscription": subscriptionID,
		"filters":      len(filters),
		"events":       sent,
	})
	return lib_nostr.SendEOSE(sess, subscriptionID)
}
