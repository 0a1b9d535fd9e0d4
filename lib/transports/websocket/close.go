package websocket

import (
	"github.com/nbd-wtf/go-nostr"
)

func (s *Server) handleCloseMessage(sess *session, env *nostr.CloseEnvelope) error {
	return s.engine.OnClose(sess, string(*env))
}
