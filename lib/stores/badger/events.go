package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/nbd-wtf/go-nostr"
)

// Key schema
//
//	evt:{eventID}                                      CBOR(storedEvent)
//	eti:{kind}:{hexTime16}:{eventID}                   kind index
//	eai:{pubkey}:{hexTime16}:{eventID}                 author index
//	ets:{hexTime16}:{eventID}                          time index
//	tag:{name}:{value}\x00{hexTime16}:{eventID}        single letter tag index
//	_schema:version                                    CBOR(int)
//
// hexTime16 is the zero padded created_at so keys sort by time.
const (
	prefixEvent      = "evt:"
	prefixKindTime   = "eti:"
	prefixAuthorTime = "eai:"
	prefixEventTime  = "ets:"
	prefixTag        = "tag:"

	schemaVersionKey     = "_schema:version"
	currentSchemaVersion = 1

	defaultMaxLimit = 500
)

// storedEvent is the value at evt:{id}; the id lives in the key.
type storedEvent struct {
	PubKey    string     `cbor:"p"`
	CreatedAt int64      `cbor:"c"`
	Kind      int        `cbor:"k"`
	Tags      nostr.Tags `cbor:"t"`
	Content   string     `cbor:"n"`
	Sig       string     `cbor:"s"`
}

func eventKey(id string) []byte {
	return []byte(prefixEvent + id)
}

func kindTimeKey(kind int, ts int64, id string) []byte {
	return []byte(fmt.Sprintf("%s%d:%016x:%s", prefixKindTime, kind, uint64(ts), id))
}

func authorTimeKey(pub string, ts int64, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%016x:%s", prefixAuthorTime, pub, uint64(ts), id))
}

func eventTimeKey(ts int64, id string) []byte {
	return []byte(fmt.Sprintf("%s%016x:%s", prefixEventTime, uint64(ts), id))
}

func tagIndexKey(name, value string, ts int64, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s\x00%016x:%s", prefixTag, name, value, uint64(ts), id))
}

func tagPrefix(name, value string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s\x00", prefixTag, name, value))
}

// indexKeys lists every index entry written for ev.
func indexKeys(ev *nostr.Event) [][]byte {
	ts := int64(ev.CreatedAt)
	keys := [][]byte{
		kindTimeKey(ev.Kind, ts, ev.ID),
		authorTimeKey(ev.PubKey, ts, ev.ID),
		eventTimeKey(ts, ev.ID),
	}
	for _, tag := range ev.Tags {
		if len(tag) < 2 || len(tag[0]) != 1 {
			continue
		}
		keys = append(keys, tagIndexKey(tag[0], tag[1], ts, ev.ID))
	}
	return keys
}

// Event ids are always the last 64 characters of an index key.
func extractEventIDFromKey(key []byte) string {
	if len(key) < 64 {
		return ""
	}
	return string(key[len(key)-64:])
}

// Layout: ...:{16hex}:{64id}
func extractTimestampFromKey(key []byte) int64 {
	if len(key) < 64+1+16 {
		return 0
	}
	ts, _ := strconv.ParseUint(string(key[len(key)-64-1-16:len(key)-64-1]), 16, 64)
	return int64(ts)
}

// seekEnd places a reverse iterator past every key under prefix.
func seekEnd(prefix []byte) []byte {
	out := make([]byte, 0, len(prefix)+82)
	out = append(out, prefix...)
	for i := 0; i < 82; i++ {
		out = append(out, 0xFF)
	}
	return out
}

// seekBefore places a reverse iterator at the newest key not after until.
func seekBefore(prefix []byte, until int64) []byte {
	out := make([]byte, 0, len(prefix)+17+64)
	out = append(out, prefix...)
	out = append(out, fmt.Sprintf("%016x:", uint64(until))...)
	for i := 0; i < 64; i++ {
		out = append(out, 0xFF)
	}
	return out
}

func getEvent(tx *badger.Txn, id string) (*nostr.Event, error) {
	item, err := tx.Get(eventKey(id))
	if err != nil {
		return nil, err
	}
	var se storedEvent
	err = item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, &se)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode event %s: %w", id, err)
	}
	return &nostr.Event{
		ID:        id,
		PubKey:    se.PubKey,
		CreatedAt: nostr.Timestamp(se.CreatedAt),
		Kind:      se.Kind,
		Tags:      se.Tags,
		Content:   se.Content,
		Sig:       se.Sig,
	}, nil
}

// SaveEvent stores the event and its indexes in one transaction. An id that
// is already present is left untouched so there is never a second copy.
func (store *Store) SaveEvent(ctx context.Context, ev *nostr.Event) (bool, error) {
	if err := store.guard(ctx); err != nil {
		return false, err
	}

	val, err := cbor.Marshal(storedEvent{
		PubKey:    ev.PubKey,
		CreatedAt: int64(ev.CreatedAt),
		Kind:      ev.Kind,
		Tags:      ev.Tags,
		Content:   ev.Content,
		Sig:       ev.Sig,
	})
	if err != nil {
		return false, fmt.Errorf("failed to encode event: %w", err)
	}

	err = store.db.Update(func(tx *badger.Txn) error {
		if _, err := tx.Get(eventKey(ev.ID)); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := tx.Set(eventKey(ev.ID), val); err != nil {
			return err
		}
		for _, key := range indexKeys(ev) {
			if err := tx.Set(key, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to save event %s: %w", ev.ID, err)
	}

	return true, nil
}

// SelectByID returns the stored event or nil when the id is unknown.
func (store *Store) SelectByID(ctx context.Context, id string) (*nostr.Event, error) {
	if err := store.guard(ctx); err != nil {
		return nil, err
	}

	var ev *nostr.Event
	err := store.db.View(func(tx *badger.Txn) error {
		var e error
		ev, e = getEvent(tx, id)
		return e
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// DeleteEvent removes the event with every index entry it created.
func (store *Store) DeleteEvent(ctx context.Context, id string) error {
	if err := store.guard(ctx); err != nil {
		return err
	}

	err := store.db.Update(func(tx *badger.Txn) error {
		ev, err := getEvent(tx, id)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Delete(eventKey(id)); err != nil {
			return err
		}
		for _, key := range indexKeys(ev) {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete event %s: %w", id, err)
	}
	return nil
}

// FilterList answers a single filter, newest first. The limit defaults to
// and is capped by the store's max limit.
func (store *Store) FilterList(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error) {
	if err := store.guard(ctx); err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > store.maxLimit {
		limit = store.maxLimit
	}

	var events []*nostr.Event
	err := store.db.View(func(tx *badger.Txn) error {
		var e error
		switch {
		case len(filter.IDs) > 0:
			events, e = queryByIDs(ctx, tx, filter, limit)
		case len(filter.Tags) > 0:
			events, e = collectFromPrefixes(ctx, tx, tagPrefixes(filter), filter, limit)
		case len(filter.Authors) > 0:
			prefixes := make([][]byte, len(filter.Authors))
			for i, a := range filter.Authors {
				prefixes[i] = []byte(prefixAuthorTime + a + ":")
			}
			events, e = collectFromPrefixes(ctx, tx, prefixes, filter, limit)
		case len(filter.Kinds) > 0:
			prefixes := make([][]byte, len(filter.Kinds))
			for i, k := range filter.Kinds {
				prefixes[i] = []byte(fmt.Sprintf("%s%d:", prefixKindTime, k))
			}
			events, e = collectFromPrefixes(ctx, tx, prefixes, filter, limit)
		default:
			events, e = collectFromPrefixes(ctx, tx, [][]byte{[]byte(prefixEventTime)}, filter, limit)
		}
		return e
	})
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*nostr.Event{}
	}
	return events, nil
}

func queryByIDs(ctx context.Context, tx *badger.Txn, filter nostr.Filter, limit int) ([]*nostr.Event, error) {
	var results []*nostr.Event
	for _, id := range filter.IDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ev, err := getEvent(tx, id)
		if errors.Is(err, badger.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if matchesFilter(ev, filter) {
			results = append(results, ev)
		}
	}
	sortEventsByCreatedAtDesc(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// tagPrefixes indexes on the tag name with the fewest values; the other tag
// constraints are applied by matchesFilter.
func tagPrefixes(filter nostr.Filter) [][]byte {
	names := make([]string, 0, len(filter.Tags))
	for name := range filter.Tags {
		names = append(names, name)
	}
	sort.Strings(names)

	primary := names[0]
	for _, name := range names[1:] {
		if len(filter.Tags[name]) < len(filter.Tags[primary]) {
			primary = name
		}
	}

	values := filter.Tags[primary]
	prefixes := make([][]byte, len(values))
	for i, v := range values {
		prefixes[i] = tagPrefix(strings.TrimPrefix(primary, "#"), v)
	}
	return prefixes
}

// collectFromPrefixes walks each prefix newest first, applies the whole
// filter and keeps at most limit events.
func collectFromPrefixes(ctx context.Context, tx *badger.Txn, prefixes [][]byte, filter nostr.Filter, limit int) ([]*nostr.Event, error) {
	seen := make(map[string]struct{})
	var results []*nostr.Event

	for _, prefix := range prefixes {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		opts.Prefix = prefix

		it := tx.NewIterator(opts)

		var sk []byte
		if filter.Until != nil {
			sk = seekBefore(prefix, int64(*filter.Until))
		} else {
			sk = seekEnd(prefix)
		}

		// Per prefix at most limit matches are needed, the merge below
		// trims the union.
		found := 0
		for it.Seek(sk); it.ValidForPrefix(prefix) && found < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				it.Close()
				return nil, err
			}

			key := it.Item().KeyCopy(nil)
			if filter.Since != nil && extractTimestampFromKey(key) < int64(*filter.Since) {
				break
			}

			eid := extractEventIDFromKey(key)
			if _, dup := seen[eid]; dup {
				continue
			}
			seen[eid] = struct{}{}

			ev, err := getEvent(tx, eid)
			if err != nil {
				continue
			}
			if matchesFilter(ev, filter) {
				results = append(results, ev)
				found++
			}
		}
		it.Close()
	}

	if len(prefixes) > 1 {
		sortEventsByCreatedAtDesc(results)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func matchesFilter(ev *nostr.Event, f nostr.Filter) bool {
	if len(f.IDs) > 0 && !containsStr(f.IDs, ev.ID) {
		return false
	}
	if len(f.Kinds) > 0 && !containsInt(f.Kinds, ev.Kind) {
		return false
	}
	if len(f.Authors) > 0 && !containsStr(f.Authors, ev.PubKey) {
		return false
	}
	if f.Since != nil && ev.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && ev.CreatedAt > *f.Until {
		return false
	}
	// AND across tag names, OR within values
	for tagKey, want := range f.Tags {
		name := strings.TrimPrefix(tagKey, "#")
		found := false
		for _, tag := range ev.Tags {
			if len(tag) >= 2 && tag[0] == name && containsStr(want, tag[1]) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(ev.Content), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

func sortEventsByCreatedAtDesc(events []*nostr.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].CreatedAt != events[j].CreatedAt {
			return events[i].CreatedAt > events[j].CreatedAt
		}
		return events[i].ID > events[j].ID
	})
}

func containsStr(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func containsInt(ii []int, v int) bool {
	for _, x := range ii {
		if x == v {
			return true
		}
	}
	return false
}

// checkSchemaVersion stamps a fresh database and refuses one written with a
// different key layout.
func checkSchemaVersion(db *badger.DB) error {
	var version int
	found := false

	err := db.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(schemaVersionKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &version)
		})
	})
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if found {
		if version != currentSchemaVersion {
			return fmt.Errorf("event database schema version %d is not supported (expected %d)", version, currentSchemaVersion)
		}
		return nil
	}

	return db.Update(func(tx *badger.Txn) error {
		val, err := cbor.Marshal(currentSchemaVersion)
		if err != nil {
			return err
		}
		return tx.Set([]byte(schemaVersionKey), val)
	})
}
