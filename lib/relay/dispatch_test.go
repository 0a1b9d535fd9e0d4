package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HORNET-Storage/hornet-gatekeeper/testing/helpers"
)

func seed(t *testing.T, f *fixture, kind int, n int) []*nostr.Event {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	var out []*nostr.Event
	for i := 0; i < n; i++ {
		ev, err := helpers.SignedEvent(f.owner, kind, base.Add(time.Duration(i)*time.Second), "seed", nil)
		require.NoError(t, err)
		_, err = f.store.SaveEvent(context.Background(), ev)
		require.NoError(t, err)
		out = append(out, ev)
	}
	return out
}

func eventIDs(t *testing.T, sent []nostr.Envelope, subID string) []string {
	t.Helper()
	var ids []string
	for _, env := range sent {
		if ev, ok := env.(*nostr.EventEnvelope); ok {
			require.NotNil(t, ev.SubscriptionID)
			assert.Equal(t, subID, *ev.SubscriptionID)
			ids = append(ids, ev.Event.ID)
		}
	}
	return ids
}

func TestDispatchInFilterOrderThenEOSE(t *testing.T) {
	f := newFixture(t, privateRelay())
	notes := seed(t, f, 1, 3)
	reactions := seed(t, f, 7, 2)

	rec := &helpers.Recorder{}
	filters := nostr.Filters{
		{Kinds: []int{7}},
		{Kinds: []int{1}, Limit: 2},
	}
	require.NoError(t, f.engine.Dispatch(context.Background(), rec, "sub1", filters, true, ""))

	sent := rec.Sent()
	require.Len(t, sent, 5)
	assert.Equal(t, []string{reactions[1].ID, reactions[0].ID, notes[2].ID, notes[1].ID}, eventIDs(t, sent, "sub1"))

	eose, ok := sent[4].(*nostr.EOSEEnvelope)
	require.True(t, ok)
	assert.Equal(t, "sub1", string(*eose))
}

func TestDispatchContinuesPastEmptyFilter(t *testing.T) {
	f := newFixture(t, privateRelay())
	notes := seed(t, f, 1, 1)

	rec := &helpers.Recorder{}
	filters := nostr.Filters{
		{Kinds: []int{30023}},
		{Authors: []string{helpers.MustKeyPair().PublicKey}},
		{Kinds: []int{1}},
	}
	require.NoError(t, f.engine.Dispatch(context.Background(), rec, "s", filters, true, ""))

	sent := rec.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, []string{notes[0].ID}, eventIDs(t, sent, "s"))
	_, ok := sent[1].(*nostr.EOSEEnvelope)
	assert.True(t, ok)
}

func TestDispatchNothingMatchesStillEOSE(t *testing.T) {
	f := newFixture(t, privateRelay())

	rec := &helpers.Recorder{}
	require.NoError(t, f.engine.Dispatch(context.Background(), rec, "empty", nostr.Filters{{Kinds: []int{1}}}, true, ""))

	sent := rec.Sent()
	require.Len(t, sent, 1)
	eose, ok := sent[0].(*nostr.EOSEEnvelope)
	require.True(t, ok)
	assert.Equal(t, "empty", string(*eose))
}

func TestDispatchFailedValidation(t *testing.T) {
	f := newFixture(t, privateRelay())
	seed(t, f, 1, 2)

	rec := &helpers.Recorder{}
	require.NoError(t, f.engine.Dispatch(context.Background(), rec, "s", nostr.Filters{{Kinds: []int{1}}}, false, "error: no filters"))

	sent := rec.Sent()
	require.Len(t, sent, 1)
	notice, ok := sent[0].(*nostr.NoticeEnvelope)
	require.True(t, ok)
	assert.Equal(t, "error: no filters", string(*notice))
}

func TestDispatchSkipsFailingFilter(t *testing.T) {
	f, flaky := newFlakyFixture(t, privateRelay())
	flaky.listErr = errors.New("index corrupt")
	notes := seed(t, f, 1, 1)

	rec := &helpers.Recorder{}
	filters := nostr.Filters{{Kinds: []int{7}}, {Kinds: []int{1}}}
	require.NoError(t, f.engine.Dispatch(context.Background(), rec, "s", filters, true, ""))

	sent := rec.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, []string{notes[0].ID}, eventIDs(t, sent, "s"))
	assert.Empty(t, rec.Notices())
}

func TestDispatchCancelledSendsNothing(t *testing.T) {
	f := newFixture(t, privateRelay())
	seed(t, f, 1, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &helpers.Recorder{}
	err := f.engine.Dispatch(ctx, rec, "gone", nostr.Filters{{Kinds: []int{1}}}, true, "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.Sent())
}

func TestDispatchStopsWhenSessionFails(t *testing.T) {
	f := newFixture(t, privateRelay())
	seed(t, f, 1, 5)

	rec := &helpers.Recorder{FailAfter: 2}
	err := f.engine.Dispatch(context.Background(), rec, "s", nostr.Filters{{Kinds: []int{1}}}, true, "")
	assert.ErrorIs(t, err, helpers.ErrSessionClosed)

	sent := rec.Sent()
	assert.Len(t, sent, 2)
	for _, env := range sent {
		_, isEOSE := env.(*nostr.EOSEEnvelope)
		assert.False(t, isEOSE)
	}
}

func TestOnClose(t *testing.T) {
	f := newFixture(t, privateRelay())

	rec := &helpers.Recorder{}
	require.NoError(t, f.engine.OnClose(rec, "sub1"))

	sent := rec.Sent()
	require.Len(t, sent, 1)
	closed, ok := sent[0].(*nostr.ClosedEnvelope)
	require.True(t, ok)
	assert.Equal(t, "sub1", closed.SubscriptionID)
	assert.Equal(t, "", closed.Reason)
	assert.False(t, rec.Closed())
}

func TestOnUnknownClosesSession(t *testing.T) {
	f := newFixture(t, privateRelay())

	rec := &helpers.Recorder{}
	require.NoError(t, f.engine.OnUnknown(rec))

	notices := rec.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, MsgUnknownCommand, string(*notices[0]))
	assert.True(t, rec.Closed())
}
