package session

import (
	"context"

	"github.com/sourcenetwork/syncore/core"
	"github.com/sourcenetwork/syncore/errors"
	"github.com/sourcenetwork/syncore/logging"
)

// RootHashReader exposes the current root hash of local state (spec
// §4.8).
type RootHashReader interface {
	RootHash() core.ID
}

// ParentHashLookup is core.DAG's ParentHash method, consumed here for
// concurrent-branch detection.
type ParentHashLookup interface {
	ParentHash(id core.ID) (core.ID, bool)
}

// DeltaExecutor runs a delta's payload against the application runtime
// (spec §6: "execute(context_id, identity, entry_point, payload,
// metadata) -> {new_root_hash, ...}"). mergeScenario tells the executor
// whether to dispatch through CRDT merge (concurrent branch) or apply
// the payload directly (sequential).
type DeltaExecutor interface {
	Execute(delta *core.CausalDelta, mergeScenario bool) (newRootHash core.ID, err error)
}

// Applier implements core.StorageApplier (spec §4.8): it classifies
// each admitted delta as sequential (its parent was our last applied
// delta on this branch) or concurrent (its parent is some earlier
// state), and never rejects on a post-apply hash mismatch (I9).
type Applier struct {
	store    RootHashReader
	parents  ParentHashLookup
	executor DeltaExecutor
	log      *logging.Logger
}

// NewApplier builds an Applier. parents is bound later via
// BindParentHashes, since the DAG that owns the parent-hash table is
// constructed with this Applier and so cannot exist yet.
func NewApplier(store RootHashReader, executor DeltaExecutor, log *logging.Logger) *Applier {
	if log == nil {
		log = logging.Nop()
	}
	return &Applier{store: store, executor: executor, log: log}
}

// BindParentHashes wires in the DAG's parent-hash table after
// construction, breaking the Applier/DAG circular dependency.
func (a *Applier) BindParentHashes(parents ParentHashLookup) {
	a.parents = parents
}

// Apply implements core.StorageApplier (spec §4.8 steps 1-6).
func (a *Applier) Apply(delta *core.CausalDelta) (core.ID, error) {
	currentRoot := a.store.RootHash()

	var parentRoot core.ID
	var hasParentRoot bool
	if len(delta.Parents) == 1 && !core.IsGenesisParent(delta.Parents[0]) && a.parents != nil {
		parentRoot, hasParentRoot = a.parents.ParentHash(delta.Parents[0])
	}

	isMergeScenario := currentRoot != delta.ExpectedRootHash && !(hasParentRoot && parentRoot == currentRoot)

	if a.executor == nil {
		return core.Zero, errors.New("no delta executor configured", errors.NewKV("DeltaID", delta.ID().String()))
	}
	newRoot, err := a.executor.Execute(delta, isMergeScenario)
	if err != nil {
		return core.Zero, errors.WrapWithKind(errors.KindPayloadDeserialization, "execute delta payload", err,
			errors.NewKV("DeltaID", delta.ID().String()), errors.NewKV("MergeScenario", isMergeScenario))
	}

	if !isMergeScenario && newRoot != delta.ExpectedRootHash {
		// I9: not an error. The peer and we had diverging branches and
		// the merged result legitimately has a new hash.
		a.log.Warn(context.Background(), "post-apply root hash differs from delta's expected root hash",
			logging.NewKV("DeltaID", delta.ID().String()), logging.NewKV("Expected", delta.ExpectedRootHash.String()), logging.NewKV("Got", newRoot.String()))
	}

	return newRoot, nil
}
