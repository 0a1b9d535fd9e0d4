package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultDuplicateTTL = 24 * time.Hour
	DefaultAcceptedTTL  = 7 * 24 * time.Hour
)

var marker = []byte("1")

// Dedupe remembers event ids the relay has already handled. A hit is only a
// hint; the event store decides whether an event is a duplicate.
type Dedupe struct {
	backend      Backend
	duplicateTTL time.Duration
	acceptedTTL  time.Duration
}

// NewDedupe wraps backend. Zero TTLs fall back to one day for duplicates and
// seven days for accepted events.
func NewDedupe(backend Backend, duplicateTTL, acceptedTTL time.Duration) *Dedupe {
	if duplicateTTL <= 0 {
		duplicateTTL = DefaultDuplicateTTL
	}
	if acceptedTTL <= 0 {
		acceptedTTL = DefaultAcceptedTTL
	}
	return &Dedupe{backend: backend, duplicateTTL: duplicateTTL, acceptedTTL: acceptedTTL}
}

func eventKey(id string) string {
	return "event:" + id
}

// Seen reports whether id has a live marker.
func (d *Dedupe) Seen(ctx context.Context, id string) (bool, error) {
	_, found, err := d.backend.Get(ctx, eventKey(id))
	if err != nil {
		return false, fmt.Errorf("dedupe lookup %s: %w", id, err)
	}
	return found, nil
}

// MarkDuplicate refreshes the marker of an id that was confirmed as stored.
func (d *Dedupe) MarkDuplicate(ctx context.Context, id string) error {
	if err := d.backend.Set(ctx, eventKey(id), marker, d.duplicateTTL); err != nil {
		return fmt.Errorf("dedupe refresh %s: %w", id, err)
	}
	return nil
}

// MarkAccepted records an id that was just stored.
func (d *Dedupe) MarkAccepted(ctx context.Context, id string) error {
	if err := d.backend.Set(ctx, eventKey(id), marker, d.acceptedTTL); err != nil {
		return fmt.Errorf("dedupe record %s: %w", id, err)
	}
	return nil
}

// Forget drops the marker of an event that was removed from the store.
func (d *Dedupe) Forget(ctx context.Context, id string) error {
	return d.backend.Delete(ctx, eventKey(id))
}

func (d *Dedupe) Close() error {
	return d.backend.Close()
}
