// Package cache provides the entity cache that mirrors gateway state, with
// interchangeable in-memory, LRU, Redis and Firestore backings.
package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/illmade-knight/go-gatewaycache/pkg/snowflake"
)

var (
	// ErrCacheUnavailable wraps every failure to reach a backing store.
	ErrCacheUnavailable = errors.New("cache: backing store unavailable")
	// ErrCorruptEntry wraps a stored entry that no longer decodes. Reading it
	// again returns the same error until the entry is overwritten or deleted.
	ErrCorruptEntry = errors.New("cache: corrupt entry")
)

// Kind partitions the cache into independent tables. The set is open; the
// constants below are the kinds the gateway handlers use.
type Kind string

const (
	KindMessages Kind = "messages"
	KindChannels Kind = "channels"
	KindGuilds   Kind = "guilds"
	KindMembers  Kind = "members"
	KindUsers    Kind = "users"
)

// Key addresses one entry.
type Key struct {
	Kind Kind
	ID   snowflake.ID
}

// String renders the key as "<kind>:<id>".
func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Kind, k.ID)
}

// Cache is an asynchronous key-value store of entities of type V.
//
// Implementations must tolerate arbitrary concurrent callers. A missing key is
// not an error: Get reports it with found == false. Set is an upsert where the
// last write wins. Delete is idempotent.
type Cache[V any] interface {
	// Get returns the cached value for (kind, id).
	Get(ctx context.Context, kind Kind, id snowflake.ID) (value V, found bool, err error)
	// Set stores value under (kind, id), replacing any previous value.
	Set(ctx context.Context, kind Kind, id snowflake.ID, value V) error
	// Delete removes (kind, id). Deleting an absent key succeeds.
	Delete(ctx context.Context, kind Kind, id snowflake.ID) error
	// Close releases resources owned by the implementation.
	Close() error
}

// unavailable tags a backing-store failure for errors.Is(err, ErrCacheUnavailable).
func unavailable(op string, key Key, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, key, ErrCacheUnavailable, err)
}

// corrupt tags an entry that was read but could not be decoded.
func corrupt(op string, key Key, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, key, ErrCorruptEntry, err)
}
