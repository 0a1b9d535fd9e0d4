package websocket

import (
	"context"

	"github.com/nbd-wtf/go-nostr"

	"github.com/HORNET-Storage/hornet-gatekeeper/lib/validation"
)

func (s *Server) handleEventMessage(ctx context.Context, sess *session, env *nostr.EventEnvelope) error {
	ev := &env.Event
	status, warning := validation.Event(ev)
	return s.engine.Admit(ctx, sess, ev, status, warning)
}
