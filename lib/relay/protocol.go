package relay

import (
	lib_nostr "github.com/HORNET-Storage/hornet-gatekeeper/lib/handlers/nostr"
)

const MsgUnknownCommand = "Unknown command"

// OnClose acknowledges a CLOSE. Nothing is kept per subscription, so there
// is nothing to tear down.
func (e *Engine) OnClose(sess lib_nostr.Session, subscriptionID string) error {
	return lib_nostr.SendClosed(sess, subscriptionID, "")
}

// OnUnknown answers a frame the relay does not understand and ends the
// session.
func (e *Engine) OnUnknown(sess lib_nostr.Session) error {
	e.metrics.Notice()
	if err := lib_nostr.SendNotice(sess, MsgUnknownCommand); err != nil {
		sess.Close()
		return err
	}
	return sess.Close()
}
