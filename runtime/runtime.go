// Package runtime declares the narrow execution contract the sync
// core consumes to apply deltas and resolve custom merges (spec §6,
// "Runtime contract"). Concrete execution — dispatching to whatever
// module or contract owns entry_point — lives outside this package,
// the way the teacher's merkle/clock.MerkleClock calls out to a
// registered crdt.MergeCrdt rather than implementing merges itself.
package runtime

import (
	"context"

	"github.com/sourcenetwork/syncore/core"
)

// ExecutionResult is what Execute returns on a successful run: the
// new root hash after the entry point ran, any events it emitted for
// the network event bridge, and the storage mutations to commit
// atomically alongside it.
type ExecutionResult struct {
	NewRootHash    core.ID
	EmittedEvents  []any
	StorageBatch   []StorageOp
}

// StorageOp is a single keyed mutation produced by an execution, left
// untyped here (see store.Op) so this package never needs to import
// store and create a cycle between the two external-collaborator seams.
type StorageOp struct {
	Key   []byte
	Value []byte // nil means delete
}

// Runtime is the seam between the sync core and whatever module
// system executes entry points and owns merge-function registration.
type Runtime interface {
	// Execute runs entry_point against payload under identity, scoped
	// to contextID, returning the new root hash, emitted events, and
	// the storage batch to commit.
	Execute(ctx context.Context, contextID, identity, entryPoint string, payload []byte, metadata core.Metadata) (ExecutionResult, error)

	// RegisterMergeFunctions is called once on module load to
	// populate the merge registry (spec §6).
	RegisterMergeFunctions() error

	// MergeRootState is the optional callback for Custom root-state
	// merges; implementations that don't support Custom merges should
	// return an error classified as errors.KindMergeCallbackMissing.
	MergeRootState(ctx context.Context, local, remote []byte) ([]byte, error)
}
