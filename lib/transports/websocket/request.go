package websocket

import (
	"context"

	"github.com/nbd-wtf/go-nostr"

	"github.com/HORNET-Storage/hornet-gatekeeper/lib/validation"
)

// Only stored events are replayed; the subscription ends with EOSE.
func (s *Server) handleReqMessage(ctx context.Context, sess *session, env *nostr.ReqEnvelope) error {
	status, warning := validation.Request(env.SubscriptionID, env.Filters)
	return s.engine.Dispatch(ctx, sess, env.SubscriptionID, env.Filters, status, warning)
}
