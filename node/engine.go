// Package node wires the sync core's packages into a single running
// node: the causal delta DAG, the key-value store, the merge registry,
// the Merkle sync engine, peer finding/dialing, and the network event
// bridge (spec §3 Ownership). It plays the role the teacher's net.Peer
// plays for DefraDB — the object owning the database, the DAG service,
// and the server, exposed as one unit to the rest of the process — but
// composed from this repo's own narrower packages rather than one
// monolithic struct.
package node

import (
	"bytes"
	"context"

	"github.com/ugorji/go/codec"

	"github.com/sourcenetwork/syncore/core"
	"github.com/sourcenetwork/syncore/errors"
	"github.com/sourcenetwork/syncore/merkle"
	"github.com/sourcenetwork/syncore/store"
)

var cborHandle = &codec.CborHandle{}

func encodeCBOR(v any) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	enc := codec.NewEncoder(buf, cborHandle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCBOR(data []byte, v any) error {
	dec := codec.NewDecoderBytes(data, cborHandle)
	return dec.Decode(v)
}

// Engine adapts store.Store into the shapes the sync core consumes:
// merkle.LocalStore for tree comparison, session.RootHashReader for
// concurrent-branch detection, and entity-index persistence for the
// normal (non-sync) write path.
type Engine struct {
	kv store.Store
}

// NewEngine wraps a Store as an Engine.
func NewEngine(kv store.Store) *Engine {
	return &Engine{kv: kv}
}

// RootHash implements session.RootHashReader by reading the
// well-known Meta("root_hash") entry (spec §6).
func (e *Engine) RootHash() core.ID {
	raw, ok, err := e.kv.Get(context.Background(), store.MetaKey(store.MetaRootHash))
	if err != nil || !ok {
		return core.Zero
	}
	var id core.ID
	copy(id[:], raw)
	return id
}

// SetRootHash persists the current root hash under Meta("root_hash").
func (e *Engine) SetRootHash(ctx context.Context, id core.ID) error {
	return e.kv.Put(ctx, store.MetaKey(store.MetaRootHash), id[:])
}

// Heads reads the persisted DAG heads under Meta("heads").
func (e *Engine) Heads(ctx context.Context) ([]core.ID, error) {
	raw, ok, err := e.kv.Get(ctx, store.MetaKey(store.MetaHeads))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var heads []core.ID
	if err := decodeCBOR(raw, &heads); err != nil {
		return nil, errors.Wrap("decode persisted dag heads", err)
	}
	return heads, nil
}

// SetHeads persists the DAG's current heads under Meta("heads").
func (e *Engine) SetHeads(ctx context.Context, heads []core.ID) error {
	encoded, err := encodeCBOR(heads)
	if err != nil {
		return errors.Wrap("encode dag heads", err)
	}
	return e.kv.Put(ctx, store.MetaKey(store.MetaHeads), encoded)
}

// GetEntity implements merkle.LocalStore/RemoteIndex by reading the
// Index(id) sidecar (spec §6).
func (e *Engine) GetEntity(id core.ID) (core.Entity, bool, error) {
	raw, ok, err := e.kv.Get(context.Background(), store.IndexKey(id))
	if err != nil {
		return core.Entity{}, false, err
	}
	if !ok {
		return core.Entity{}, false, nil
	}
	var idx store.EntityIndex
	if err := decodeCBOR(raw, &idx); err != nil {
		return core.Entity{}, false, errors.Wrap("decode entity index", err)
	}
	return core.Entity{
		ID:       id,
		Children: idx.Children,
		OwnHash:  idx.OwnHash,
		FullHash: idx.FullHash,
		Metadata: idx.Metadata,
	}, true, nil
}

// GetPayload implements merkle.LocalStore/RemoteIndex by reading the
// Entry(id) raw payload.
func (e *Engine) GetPayload(id core.ID) ([]byte, error) {
	return store.GetRequired(context.Background(), e.kv, store.EntryKey(id))
}

// ApplyLeaf implements merkle.LocalStore: persists a leaf's payload and
// metadata atomically. Metadata must be written explicitly here since
// the normal execution write path never fires for tree-protocol leaves
// (spec §4.3).
func (e *Engine) ApplyLeaf(leaf merkle.TreeLeafData) error {
	existing, has, err := e.GetEntity(leaf.ID)
	if err != nil {
		return err
	}
	idx := store.EntityIndex{
		OwnHash:  core.ComputeOwnHash(leaf.Value),
		Metadata: leaf.Metadata,
	}
	if has {
		idx.Children = existing.Children
	}
	idx.FullHash = core.ComputeFullHash(idx.OwnHash, idx.Children)

	encodedIdx, err := encodeCBOR(idx)
	if err != nil {
		return errors.Wrap("encode entity index", err)
	}

	ctx := context.Background()
	return e.kv.BatchWrite(ctx, []store.Op{
		{Key: store.EntryKey(leaf.ID), Value: leaf.Value},
		{Key: store.IndexKey(leaf.ID), Value: encodedIdx},
	})
}

// LocalEntityIDs lists every entity id in the Index namespace, used to
// build the BloomFilter protocol's sender-side filter (spec §4.3). The
// rootID argument is not consulted: ids outside rootID's subtree are
// listed too.
func (e *Engine) LocalEntityIDs(_ core.ID) ([]core.ID, error) {
	var ids []core.ID
	err := e.kv.Iter(context.Background(), store.NamespacePrefix(store.NamespaceIndex), func(key, _ []byte) error {
		if len(key) < 1+len(core.ID{}) {
			return nil
		}
		var id core.ID
		copy(id[:], key[1:])
		ids = append(ids, id)
		return nil
	})
	return ids, err
}

// PutDelta persists a CausalDelta for DAG replay on restart.
func (e *Engine) PutDelta(ctx context.Context, id core.ID, encoded []byte) error {
	return e.kv.Put(ctx, store.DeltaKey(id), encoded)
}

// GetDelta reads back a persisted CausalDelta by id.
func (e *Engine) GetDelta(ctx context.Context, id core.ID) ([]byte, bool, error) {
	return e.kv.Get(ctx, store.DeltaKey(id))
}
