package nip09

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HORNET-Storage/hornet-gatekeeper/lib/stores/badger"
	"github.com/HORNET-Storage/hornet-gatekeeper/testing/helpers"
)

func setup(t *testing.T) (*badger.Store, *Deleter) {
	t.Helper()
	store, err := badger.Open(badger.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, NewDeleter(store)
}

func save(t *testing.T, store *badger.Store, ev *nostr.Event) {
	t.Helper()
	ok, err := store.SaveEvent(context.Background(), ev)
	require.NoError(t, err)
	require.True(t, ok)
}

func exists(t *testing.T, store *badger.Store, id string) bool {
	t.Helper()
	ev, err := store.SelectByID(context.Background(), id)
	require.NoError(t, err)
	return ev != nil
}

func TestIsDeletable(t *testing.T) {
	assert.True(t, IsDeletable(&nostr.Event{Kind: 5}))
	assert.False(t, IsDeletable(&nostr.Event{Kind: 1}))
}

func TestDeleteOwnEvents(t *testing.T) {
	store, d := setup(t)
	kp := helpers.MustKeyPair()

	a, err := helpers.CreateTextNote(kp, "one")
	require.NoError(t, err)
	b, err := helpers.CreateTextNote(kp, "two")
	require.NoError(t, err)
	save(t, store, a)
	save(t, store, b)

	del, err := helpers.CreateDeletionEvent(kp, []string{a.ID, "ff" + a.ID[2:]}, "oops")
	require.NoError(t, err)

	ok, msg, err := d.DeleteEvent(context.Background(), del)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, msg)
	assert.False(t, exists(t, store, a.ID))
	assert.True(t, exists(t, store, b.ID))
}

func TestOnDeletedReportsRemovedTargets(t *testing.T) {
	store, d := setup(t)
	kp := helpers.MustKeyPair()

	a, err := helpers.CreateTextNote(kp, "gone")
	require.NoError(t, err)
	save(t, store, a)

	var removed []string
	d.OnDeleted = func(_ context.Context, id string) { removed = append(removed, id) }

	del, err := helpers.CreateDeletionEvent(kp, []string{a.ID, "ff" + a.ID[2:]}, "")
	require.NoError(t, err)
	ok, _, err := d.DeleteEvent(context.Background(), del)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{a.ID}, removed)
}

func TestDeleteOthersEventIsBlocked(t *testing.T) {
	store, d := setup(t)
	alice := helpers.MustKeyPair()
	mallory := helpers.MustKeyPair()

	mine, err := helpers.CreateTextNote(mallory, "mine")
	require.NoError(t, err)
	theirs, err := helpers.CreateTextNote(alice, "theirs")
	require.NoError(t, err)
	save(t, store, mine)
	save(t, store, theirs)

	del, err := helpers.CreateDeletionEvent(mallory, []string{mine.ID, theirs.ID}, "")
	require.NoError(t, err)

	ok, msg, err := d.DeleteEvent(context.Background(), del)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "blocked: you are not the author of this event", msg)
	assert.True(t, exists(t, store, mine.ID))
	assert.True(t, exists(t, store, theirs.ID))
}

func TestDeleteByAddress(t *testing.T) {
	store, d := setup(t)
	kp := helpers.MustKeyPair()
	past := time.Now().Add(-time.Hour)

	article, err := helpers.CreateParameterizedReplaceableEvent(kp, 30023, past, "post-1", "v1")
	require.NoError(t, err)
	other, err := helpers.CreateParameterizedReplaceableEvent(kp, 30023, past, "post-2", "v1")
	require.NoError(t, err)
	future, err := helpers.CreateParameterizedReplaceableEvent(kp, 30023, time.Now().Add(time.Hour), "post-1", "v2")
	require.NoError(t, err)
	save(t, store, article)
	save(t, store, other)
	save(t, store, future)

	del, err := helpers.CreateAddressDeletion(kp, fmt.Sprintf("30023:%s:post-1", kp.PublicKey))
	require.NoError(t, err)

	ok, msg, err := d.DeleteEvent(context.Background(), del)
	require.NoError(t, err)
	assert.True(t, ok, msg)
	assert.False(t, exists(t, store, article.ID))
	assert.True(t, exists(t, store, other.ID))
	assert.True(t, exists(t, store, future.ID))
}

func TestDeleteByAddressOfOtherAuthor(t *testing.T) {
	_, d := setup(t)
	kp := helpers.MustKeyPair()
	other := helpers.MustKeyPair()

	del, err := helpers.CreateAddressDeletion(kp, fmt.Sprintf("30023:%s:x", other.PublicKey))
	require.NoError(t, err)

	ok, msg, err := d.DeleteEvent(context.Background(), del)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "blocked: you are not the author of this event", msg)
}

func TestDeleteMalformedAddress(t *testing.T) {
	_, d := setup(t)
	kp := helpers.MustKeyPair()

	del, err := helpers.CreateAddressDeletion(kp, "nope")
	require.NoError(t, err)

	ok, msg, err := d.DeleteEvent(context.Background(), del)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "invalid: malformed a tag", msg)
}

func TestDeleteStoreFault(t *testing.T) {
	store, d := setup(t)
	kp := helpers.MustKeyPair()
	require.NoError(t, store.Close())

	del, err := helpers.CreateDeletionEvent(kp, []string{kp.PublicKey}, "")
	require.NoError(t, err)

	_, _, err = d.DeleteEvent(context.Background(), del)
	assert.Error(t, err)
}
