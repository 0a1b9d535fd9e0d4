package nostr

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/nbd-wtf/go-nostr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Session is the write side of one client connection.
type Session interface {
	Send(envelope nostr.Envelope) error
	Close() error
}

func SendOK(s Session, eventID string, ok bool, reason string) error {
	return s.Send(&nostr.OKEnvelope{EventID: eventID, OK: ok, Reason: reason})
}

func SendEvent(s Session, subscriptionID string, ev *nostr.Event) error {
	id := subscriptionID
	return s.Send(&nostr.EventEnvelope{SubscriptionID: &id, Event: *ev})
}

func SendEOSE(s Session, subscriptionID string) error {
	env := nostr.EOSEEnvelope(subscriptionID)
	return s.Send(&env)
}

func SendNotice(s Session, message string) error {
	env := nostr.NoticeEnvelope(message)
	return s.Send(&env)
}

func SendClosed(s Session, subscriptionID string, reason string) error {
	return s.Send(&nostr.ClosedEnvelope{SubscriptionID: subscriptionID, Reason: reason})
}

// BuildResponse encodes a relay message as a JSON array.
func BuildResponse(messageType string, params ...interface{}) ([]byte, error) {
	message := make([]interface{}, 0, len(params)+1)
	message = append(message, messageType)
	message = append(message, params...)
	return json.Marshal(message)
}

// Encode turns one of the five relay to client envelopes into wire bytes.
func Encode(env nostr.Envelope) ([]byte, error) {
	switch e := env.(type) {
	case *nostr.OKEnvelope:
		return BuildResponse("OK", e.EventID, e.OK, e.Reason)
	case *nostr.EventEnvelope:
		if e.SubscriptionID == nil {
			return BuildResponse("EVENT", e.Event)
		}
		return BuildResponse("EVENT", *e.SubscriptionID, e.Event)
	case *nostr.EOSEEnvelope:
		return BuildResponse("EOSE", string(*e))
	case *nostr.NoticeEnvelope:
		return BuildResponse("NOTICE", string(*e))
	case *nostr.ClosedEnvelope:
		return BuildResponse("CLOSED", e.SubscriptionID, e.Reason)
	default:
		return nil, fmt.Errorf("unsupported envelope %s", env.Label())
	}
}
