package websocket

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofiber/contrib/websocket"
	"github.com/nbd-wtf/go-nostr"

	lib_nostr "github.com/HORNET-Storage/hornet-gatekeeper/lib/handlers/nostr"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/logging"
)

var errSessionClosed = errors.New("session closed")

// session is one client connection. Frames are written under mu so a
// shutdown never interleaves with a reply.
type session struct {
	id   string
	conn *websocket.Conn
	log  *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed atomic.Bool
}

var _ lib_nostr.Session = (*session)(nil)

func newSession(id string, conn *websocket.Conn, log *logging.Logger) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{id: id, conn: conn, log: log, ctx: ctx, cancel: cancel}
}

func (s *session) Send(envelope nostr.Envelope) error {
	data, err := lib_nostr.Encode(envelope)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return errSessionClosed
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.cancel()
		if !isConnectionClosedError(err) {
			s.log.Warnf("Error sending message over WebSocket: %v", err)
		}
		return err
	}

	s.log.Debugf("Websocket message: %s", data)
	return nil
}

// Close cancels every pending store call of the session and drops the
// connection. Later calls do nothing.
func (s *session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.Close(); err != nil && !isConnectionClosedError(err) {
		return err
	}
	return nil
}

func isConnectionClosedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errSessionClosed) || errors.Is(err, context.Canceled) {
		return true
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer")
}
