package helpers

import (
	"errors"
	"sync"

	"github.com/nbd-wtf/go-nostr"
)

var ErrSessionClosed = errors.New("session closed")

// Recorder is an in-memory session that keeps every envelope sent to it.
type Recorder struct {
	mu     sync.Mutex
	sent   []nostr.Envelope
	closed bool

	// FailAfter makes Send fail once this many envelopes were recorded
	// (0 disables it).
	FailAfter int
}

func (r *Recorder) Send(env nostr.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrSessionClosed
	}
	if r.FailAfter > 0 && len(r.sent) >= r.FailAfter {
		return ErrSessionClosed
	}
	r.sent = append(r.sent, env)
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Sent returns a copy of everything recorded so far.
func (r *Recorder) Sent() []nostr.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]nostr.Envelope, len(r.sent))
	copy(out, r.sent)
	return out
}

// Reset forgets the recorded envelopes.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

// OKs returns only the OK envelopes.
func (r *Recorder) OKs() []*nostr.OKEnvelope {
	var out []*nostr.OKEnvelope
	for _, env := range r.Sent() {
		if ok, is := env.(*nostr.OKEnvelope); is {
			out = append(out, ok)
		}
	}
	return out
}

// Notices returns only the NOTICE envelopes.
func (r *Recorder) Notices() []*nostr.NoticeEnvelope {
	var out []*nostr.NoticeEnvelope
	for _, env := range r.Sent() {
		if n, is := env.(*nostr.NoticeEnvelope); is {
			out = append(out, n)
		}
	}
	return out
}
