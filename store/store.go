package store

import (
	"context"

	ds "github.com/ipfs/go-datastore"
)

// ErrNotFound is the sentinel returned by the optional error-returning
// accessors callers may layer over Get's (value, bool, error) shape —
// reused from go-datastore rather than declaring a new one, matching
// the teacher's own `ds.ErrNotFound` usage (net/server.go).
var ErrNotFound = ds.ErrNotFound

// Op is one operation in an atomic batch write (spec §6:
// "batch_write([ops])"). A nil Value means delete.
type Op struct {
	Key   []byte
	Value []byte
}

// Store is the key-value store contract every backend satisfies (spec
// §6). Keys passed in already carry their namespace prefix (see
// EntryKey/IndexKey/DeltaKey/MetaKey) — Store itself is namespace-blind.
type Store interface {
	Get(ctx context.Context, key []byte) ([]byte, bool, error)
	Put(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
	Iter(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error
	BatchWrite(ctx context.Context, ops []Op) error
}

// GetRequired wraps Get for call sites where a missing key is a hard
// failure rather than an expected absence — e.g. looking up a delta
// by id during DAG replay, where the id came from an applied head and
// must exist.
func GetRequired(ctx context.Context, s Store, key []byte) ([]byte, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}
