package store

import (
	"context"
	"errors"

	badger "github.com/dgraph-io/badger/v3"

	syncerrors "github.com/sourcenetwork/syncore/errors"
)

// maxTxnRetries bounds the retry loop on a transaction conflict,
// mirroring the teacher's PushLog retry pattern in net/server.go.
const maxTxnRetries = 10

// Badger is a durable Store backed by dgraph-io/badger/v3 (spec §6).
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (creating if absent) a badger database at path.
func OpenBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, syncerrors.WrapWithKind(syncerrors.KindStoreWriteFailure, "open badger store", err)
	}
	return &Badger{db: db}, nil
}

// Close releases the underlying database handle.
func (b *Badger) Close() error { return b.db.Close() }

func (b *Badger) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (b *Badger) Put(_ context.Context, key, value []byte) error {
	return b.withRetry(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (b *Badger) Delete(_ context.Context, key []byte) error {
	return b.withRetry(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (b *Badger) Iter(_ context.Context, prefix []byte, fn func(key, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := append([]byte(nil), item.KeyCopy(nil)...)
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Badger) BatchWrite(_ context.Context, ops []Op) error {
	return b.withRetry(func(txn *badger.Txn) error {
		for _, op := range ops {
			if op.Value == nil {
				if err := txn.Delete(op.Key); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set(op.Key, op.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

// withRetry runs fn inside a fresh transaction, retrying on
// ErrConflict up to maxTxnRetries times before surfacing a
// StoreWriteFailure (spec §7).
func (b *Badger) withRetry(fn func(txn *badger.Txn) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		err := b.db.Update(fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	return syncerrors.WrapWithKind(syncerrors.KindStoreWriteFailure, "badger transaction failed", lastErr)
}
