package node

import (
	"bytes"
	"context"
	"sort"

	"github.com/sourcenetwork/syncore/core"
	"github.com/sourcenetwork/syncore/errors"
	"github.com/sourcenetwork/syncore/merkle"
	"github.com/sourcenetwork/syncore/runtime"
	"github.com/sourcenetwork/syncore/store"
	"github.com/sourcenetwork/syncore/wire"
)

// mergeRootSeed anchors the own_hash half of the root hash executeMerge
// records, fixed rather than derived from a delta's own payload: two
// concurrent branches touching the same entities must compute the same
// post-merge root hash regardless of which delta each side applied last
// (P2 commutativity).
var mergeRootSeed = core.ComputeOwnHash([]byte("merge-root"))

// contextID scopes every Execute call; the sync core is single-context
// per process in this repo (multi-context fan-out belongs to whatever
// process embeds it, per spec §6's context_id parameter).
const contextID = "default"

// Executor adapts a runtime.Runtime into session.DeltaExecutor (spec
// §4.8, §6). Sequential deltas dispatch their payload to the runtime's
// entry_point and commit the resulting storage batch; concurrent-branch
// deltas never reach the runtime at all — the core resolves them itself
// through the registered merge callback (spec §4.8 step 4). Checkpoint
// deltas (D3) are a pure root-hash install with no execution.
type Executor struct {
	rt     runtime.Runtime
	engine *Engine
	merge  merkle.MergeCallback
}

// NewExecutor builds an Executor over rt and engine. merge is the same
// callback the tree sync engine uses for the BloomFilter/HashComparison/
// LevelWise protocols (spec §4.2 "registered merge callback"), so a
// concurrent-branch delta merges through identical CRDT dispatch
// whether it arrived over the wire as individual leaves or bundled into
// a delta's payload.
func NewExecutor(rt runtime.Runtime, engine *Engine, merge merkle.MergeCallback) *Executor {
	return &Executor{rt: rt, engine: engine, merge: merge}
}

// Execute implements session.DeltaExecutor.
func (x *Executor) Execute(delta *core.CausalDelta, mergeScenario bool) (core.ID, error) {
	ctx := context.Background()

	if delta.Kind == core.DeltaCheckpoint {
		if err := x.engine.SetRootHash(ctx, delta.ExpectedRootHash); err != nil {
			return core.Zero, errors.Wrap("install checkpoint root hash", err)
		}
		return delta.ExpectedRootHash, nil
	}

	if mergeScenario {
		return x.executeMerge(delta)
	}

	result, err := x.rt.Execute(ctx, contextID, delta.AuthorID, "apply", delta.Payload, core.Metadata{})
	if err != nil {
		return core.Zero, errors.WrapWithKind(errors.KindPayloadDeserialization, "runtime execute", err,
			errors.NewKV("DeltaID", delta.ID().String()))
	}

	ops := make([]store.Op, 0, len(result.StorageBatch))
	for _, op := range result.StorageBatch {
		ops = append(ops, store.Op{Key: op.Key, Value: op.Value})
	}
	if err := x.engine.kv.BatchWrite(ctx, ops); err != nil {
		return core.Zero, errors.WrapWithKind(errors.KindStoreWriteFailure, "commit execution storage batch", err)
	}

	if err := x.engine.SetRootHash(ctx, result.NewRootHash); err != nil {
		return core.Zero, errors.Wrap("persist new root hash", err)
	}

	return result.NewRootHash, nil
}

// executeMerge implements spec §4.8 step 4: the delta's payload is a
// CBOR-encoded batch of remote actions (merkle.TreeLeafData, the same
// unit every tree protocol transmits); each resolves against whatever
// local entity already exists through the merge callback, exactly as
// CompareTrees/RunLevelWise/runBloomFilter do for a live sync session.
// The resulting root hash is recorded via SetRootHash so a later delta's
// concurrent-branch classification sees it, same as the sequential path.
func (x *Executor) executeMerge(delta *core.CausalDelta) (core.ID, error) {
	if x.merge == nil {
		return core.Zero, errors.NewWithKind(errors.KindMergeCallbackMissing, "merge scenario delta with no merge callback configured",
			errors.NewKV("DeltaID", delta.ID().String()))
	}

	var actions []merkle.TreeLeafData
	if err := wire.DecodeBody(delta.Payload, &actions); err != nil {
		return core.Zero, errors.WrapWithKind(errors.KindPayloadDeserialization, "decode merge delta remote actions", err,
			errors.NewKV("DeltaID", delta.ID().String()))
	}

	touched := make([]core.Child, 0, len(actions))
	for _, action := range actions {
		merged := action.Value

		localEntity, hasLocal, err := x.engine.GetEntity(action.ID)
		if err != nil {
			return core.Zero, err
		}
		if hasLocal {
			localPayload, err := x.engine.GetPayload(action.ID)
			if err != nil {
				return core.Zero, err
			}

			crdtType := core.Builtin(core.CRDTLwwRegister)
			switch {
			case action.Metadata.CRDTType.HasValue():
				crdtType = action.Metadata.CRDTType.Value()
			case localEntity.Metadata.CRDTType.HasValue():
				crdtType = localEntity.Metadata.CRDTType.Value()
			}

			merged, err = x.merge(crdtType, localPayload, action.Value, localEntity.Metadata.UpdatedAt, action.Metadata.UpdatedAt)
			if err != nil {
				return core.Zero, errors.WrapWithKind(errors.KindPayloadDeserialization, "merge remote action", err,
					errors.NewKV("EntityID", action.ID.String()))
			}
		}

		if err := x.engine.ApplyLeaf(merkle.TreeLeafData{ID: action.ID, Value: merged, Metadata: action.Metadata}); err != nil {
			return core.Zero, errors.WrapWithKind(errors.KindStoreWriteFailure, "apply merged remote action", err)
		}

		mergedEntity, _, err := x.engine.GetEntity(action.ID)
		if err != nil {
			return core.Zero, err
		}
		touched = append(touched, core.Child{ID: action.ID, FullHash: mergedEntity.FullHash})
	}

	sort.Slice(touched, func(i, j int) bool { return bytes.Compare(touched[i].ID[:], touched[j].ID[:]) < 0 })
	newRoot := core.ComputeFullHash(mergeRootSeed, touched)
	if err := x.engine.SetRootHash(context.Background(), newRoot); err != nil {
		return core.Zero, errors.Wrap("persist merged root hash", err)
	}

	return newRoot, nil
}
