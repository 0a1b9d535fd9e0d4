package passlist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HORNET-Storage/hornet-gatekeeper/lib/stores/badger"
	"github.com/HORNET-Storage/hornet-gatekeeper/testing/helpers"
)

type failingStore struct {
	*badger.Store
}

func (failingStore) FilterList(context.Context, nostr.Filter) ([]*nostr.Event, error) {
	return nil, errors.New("disk on fire")
}

// heldStore blocks contact list queries until release is closed.
type heldStore struct {
	*badger.Store
	entered     chan struct{}
	enteredOnce sync.Once
	release     chan struct{}
}

func (s *heldStore) FilterList(ctx context.Context, f nostr.Filter) ([]*nostr.Event, error) {
	s.enteredOnce.Do(func() { close(s.entered) })
	<-s.release
	return s.Store.FilterList(ctx, f)
}

func openStore(t *testing.T) *badger.Store {
	t.Helper()
	store, err := badger.Open(badger.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestResolveWithoutContactList(t *testing.T) {
	owner := helpers.MustKeyPair()
	r := NewResolver(openStore(t))

	list := r.Resolve(context.Background(), owner.PublicKey)
	assert.Equal(t, 1, list.Len())
	assert.True(t, list.Contains(owner.PublicKey))
}

func TestResolveUsesNewestContactList(t *testing.T) {
	store := openStore(t)
	owner := helpers.MustKeyPair()
	friend := helpers.MustKeyPair()
	exFriend := helpers.MustKeyPair()
	now := time.Now()

	old, err := helpers.CreateContactList(owner, now.Add(-time.Hour), []string{exFriend.PublicKey})
	require.NoError(t, err)
	current, err := helpers.CreateContactList(owner, now, []string{friend.PublicKey})
	require.NoError(t, err)

	for _, ev := range []*nostr.Event{current, old} {
		_, err := store.SaveEvent(context.Background(), ev)
		require.NoError(t, err)
	}

	list := NewResolver(store).Resolve(context.Background(), owner.PublicKey)
	assert.True(t, list.Contains(owner.PublicKey))
	assert.True(t, list.Contains(friend.PublicKey))
	assert.False(t, list.Contains(exFriend.PublicKey))
	assert.Equal(t, 2, list.Len())
}

func TestResolveIgnoresShortTags(t *testing.T) {
	store := openStore(t)
	owner := helpers.MustKeyPair()

	ev, err := helpers.SignedEvent(owner, 3, time.Now(), "", nostr.Tags{{"p"}, {"e", "x"}, {"p", "abc", "wss://relay"}})
	require.NoError(t, err)
	_, err = store.SaveEvent(context.Background(), ev)
	require.NoError(t, err)

	list := NewResolver(store).Resolve(context.Background(), owner.PublicKey)
	assert.Equal(t, 2, list.Len())
	assert.True(t, list.Contains("abc"))
}

func TestResolveStoreFailureFallsBackToOwner(t *testing.T) {
	owner := helpers.MustKeyPair()
	r := NewResolver(failingStore{openStore(t)})

	list := r.Resolve(context.Background(), owner.PublicKey)
	assert.Equal(t, 1, list.Len())
	assert.True(t, list.Contains(owner.PublicKey))
}

func TestResolveSurvivesFirstCallerLeaving(t *testing.T) {
	backing := openStore(t)
	owner := helpers.MustKeyPair()
	friend := helpers.MustKeyPair()

	contacts, err := helpers.CreateContactList(owner, time.Now(), []string{friend.PublicKey})
	require.NoError(t, err)
	_, err = backing.SaveEvent(context.Background(), contacts)
	require.NoError(t, err)

	held := &heldStore{Store: backing, entered: make(chan struct{}), release: make(chan struct{})}
	r := NewResolver(held)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderDone := make(chan List, 1)
	go func() { leaderDone <- r.Resolve(leaderCtx, owner.PublicKey) }()

	select {
	case <-held.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("lookup never reached the store")
	}

	joinedDone := make(chan List, 1)
	go func() { joinedDone <- r.Resolve(context.Background(), owner.PublicKey) }()
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	select {
	case list := <-leaderDone:
		assert.True(t, list.Contains(owner.PublicKey))
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(held.release)
	select {
	case list := <-joinedDone:
		assert.True(t, list.Contains(friend.PublicKey))
		assert.Equal(t, 2, list.Len())
	case <-time.After(5 * time.Second):
		t.Fatal("live caller never got an answer")
	}
}

func TestResolveEmptyOwner(t *testing.T) {
	list := NewResolver(openStore(t)).Resolve(context.Background(), "")
	assert.Equal(t, 0, list.Len())
}

func TestNewestDoesNotTrustOrder(t *testing.T) {
	a := &nostr.Event{ID: "a", CreatedAt: 10}
	b := &nostr.Event{ID: "b", CreatedAt: 30}
	c := &nostr.Event{ID: "c", CreatedAt: 20}

	assert.Equal(t, "b", Newest([]*nostr.Event{a, b, c}).ID)
	assert.Equal(t, "b", Newest([]*nostr.Event{c, nil, b, a}).ID)
	assert.Nil(t, Newest(nil))
}
