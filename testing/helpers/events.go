// Package helpers provides keys, signed events and a recording session for
// the gatekeeper tests.
package helpers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip13"
)

// TestKeyPair represents a key pair for testing
type TestKeyPair struct {
	PrivateKey string
	PublicKey  string
}

// GenerateKeyPair generates a new key pair for testing
func GenerateKeyPair() (*TestKeyPair, error) {
	sk := nostr.GeneratePrivateKey()
	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}
	return &TestKeyPair{
		PrivateKey: sk,
		PublicKey:  pk,
	}, nil
}

// MustKeyPair is GenerateKeyPair for test setup code
func MustKeyPair() *TestKeyPair {
	kp, err := GenerateKeyPair()
	if err != nil {
		panic(err)
	}
	return kp
}

// SignedEvent signs an event of any kind created at the given time
func SignedEvent(kp *TestKeyPair, kind int, createdAt time.Time, content string, tags nostr.Tags) (*nostr.Event, error) {
	event := &nostr.Event{
		PubKey:    kp.PublicKey,
		CreatedAt: nostr.Timestamp(createdAt.Unix()),
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
	if err := event.Sign(kp.PrivateKey); err != nil {
		return nil, fmt.Errorf("failed to sign event: %w", err)
	}
	return event, nil
}

// CreateTextNote creates a kind 1 text note event
func CreateTextNote(kp *TestKeyPair, content string, tags ...nostr.Tag) (*nostr.Event, error) {
	return SignedEvent(kp, 1, time.Now(), content, tags)
}

// CreateContactList creates a kind 3 contact list event
func CreateContactList(kp *TestKeyPair, createdAt time.Time, contacts []string) (*nostr.Event, error) {
	var tags nostr.Tags
	for _, contact := range contacts {
		tags = append(tags, nostr.Tag{"p", contact})
	}
	return SignedEvent(kp, 3, createdAt, "", tags)
}

// CreateDeletionEvent creates a kind 5 deletion event for event ids
func CreateDeletionEvent(kp *TestKeyPair, eventIDs []string, reason string) (*nostr.Event, error) {
	var tags nostr.Tags
	for _, id := range eventIDs {
		tags = append(tags, nostr.Tag{"e", id})
	}
	return SignedEvent(kp, 5, time.Now(), reason, tags)
}

// CreateAddressDeletion creates a kind 5 deletion event for an address
// ("kind:pubkey:d")
func CreateAddressDeletion(kp *TestKeyPair, address string) (*nostr.Event, error) {
	return SignedEvent(kp, 5, time.Now(), "", nostr.Tags{{"a", address}})
}

// CreateParameterizedReplaceableEvent creates an addressable event with a d tag
func CreateParameterizedReplaceableEvent(kp *TestKeyPair, kind int, createdAt time.Time, dTag, content string) (*nostr.Event, error) {
	return SignedEvent(kp, kind, createdAt, content, nostr.Tags{{"d", dTag}})
}

// MineProofOfWork creates a text note whose id has at least target leading
// zero bits and carries a ["nonce", n, committed] tag.
func MineProofOfWork(kp *TestKeyPair, content string, target, committed int) (*nostr.Event, error) {
	event := &nostr.Event{
		PubKey:    kp.PublicKey,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      1,
		Content:   content,
		Tags:      nostr.Tags{{"nonce", "0", strconv.Itoa(committed)}},
	}

	for nonce := 0; nonce < 1<<26; nonce++ {
		event.Tags[0][1] = strconv.Itoa(nonce)
		if nip13.Difficulty(event.GetID()) >= target {
			if err := event.Sign(kp.PrivateKey); err != nil {
				return nil, fmt.Errorf("failed to sign event: %w", err)
			}
			return event, nil
		}
	}
	return nil, fmt.Errorf("no nonce found for difficulty %d", target)
}
