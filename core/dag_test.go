package core_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/syncore/core"
	"github.com/sourcenetwork/syncore/errors"
	"github.com/sourcenetwork/syncore/hlc"
)

type fakeApplier struct {
	root core.ID
}

func (f *fakeApplier) Apply(delta *core.CausalDelta) (core.ID, error) {
	f.root[0]++
	return f.root, nil
}

func ts(ms int64) hlc.Timestamp {
	return hlc.Timestamp{PhysicalMS: ms, NodeID: "n1"}
}

func TestAdmitSequential(t *testing.T) {
	dag := core.NewDAG(&fakeApplier{})

	d1 := core.NewDelta([]core.ID{core.Zero}, []byte("a"), ts(1), core.Zero, core.DeltaRegular, nil, "n1", nil)
	outcome, err := dag.Admit(d1)
	require.NoError(t, err)
	require.Equal(t, core.Applied, outcome)
	require.ElementsMatch(t, []core.ID{d1.ID()}, dag.Heads())

	d2 := core.NewDelta([]core.ID{d1.ID()}, []byte("b"), ts(2), core.Zero, core.DeltaRegular, nil, "n1", nil)
	outcome, err = dag.Admit(d2)
	require.NoError(t, err)
	require.Equal(t, core.Applied, outcome)
	require.ElementsMatch(t, []core.ID{d2.ID()}, dag.Heads())
}

func TestAdmitPendingThenCascade(t *testing.T) {
	dag := core.NewDAG(&fakeApplier{})

	d1 := core.NewDelta([]core.ID{core.Zero}, []byte("a"), ts(1), core.Zero, core.DeltaRegular, nil, "n1", nil)
	d2 := core.NewDelta([]core.ID{d1.ID()}, []byte("b"), ts(2), core.Zero, core.DeltaRegular, nil, "n1", nil)

	outcome, err := dag.Admit(d2)
	require.NoError(t, err)
	require.Equal(t, core.Pending, outcome)
	require.ElementsMatch(t, []core.ID{d1.ID()}, dag.MissingParents())

	outcome, err = dag.Admit(d1)
	require.NoError(t, err)
	require.Equal(t, core.Applied, outcome)

	// d2 should have cascaded to Applied.
	require.True(t, dag.Has(d2.ID()))
	require.Empty(t, dag.MissingParents())
	require.ElementsMatch(t, []core.ID{d2.ID()}, dag.Heads())
}

func TestAdmitAlreadyKnown(t *testing.T) {
	dag := core.NewDAG(&fakeApplier{})
	d1 := core.NewDelta([]core.ID{core.Zero}, []byte("a"), ts(1), core.Zero, core.DeltaRegular, nil, "n1", nil)

	outcome, err := dag.Admit(d1)
	require.NoError(t, err)
	require.Equal(t, core.Applied, outcome)

	outcome, err = dag.Admit(d1)
	require.NoError(t, err)
	require.Equal(t, core.AlreadyKnown, outcome)
}

func TestRejectSelfReferential(t *testing.T) {
	dag := core.NewDAG(&fakeApplier{})
	// NewCheckpoint fixes id to headID rather than deriving it from
	// content, so core.Zero as the head produces id == Parents[0] == Zero:
	// a genuinely self-referential delta.
	self := core.NewCheckpoint(core.Zero, core.ID{1})

	outcome, err := dag.Admit(self)
	require.Error(t, err)
	require.Equal(t, errors.KindCyclicDelta, errors.GetKind(err))
	require.Equal(t, core.AlreadyKnown, outcome)
	require.False(t, dag.Has(self.ID()))
}

func TestRestoreAppliedDoesNotVerify(t *testing.T) {
	dag := core.NewDAG(&fakeApplier{})
	ckpt := core.NewCheckpoint(core.ID{1, 2, 3}, core.ID{9})
	dag.RestoreApplied(ckpt)
	require.True(t, dag.Has(ckpt.ID()))
	require.Contains(t, dag.Heads(), ckpt.ID())
}

func TestPendingParentResolvedByCheckpoint(t *testing.T) {
	// P9: a delta whose parent is a checkpoint id (installed via
	// RestoreApplied) is admitted rather than orphaned.
	dag := core.NewDAG(&fakeApplier{})
	headID := core.ID{7, 7, 7}
	ckpt := core.NewCheckpoint(headID, core.ID{1})
	dag.RestoreApplied(ckpt)

	child := core.NewDelta([]core.ID{headID}, []byte("x"), ts(10), core.ID{1}, core.DeltaRegular, nil, "n1", nil)
	outcome, err := dag.Admit(child)
	require.NoError(t, err)
	require.Equal(t, core.Applied, outcome)
}

func TestDeterministicEntityIDs(t *testing.T) {
	// P7: two independent derivations of the same field path match.
	parent := core.ID{1}
	id1 := core.EntityIDFromField(parent, "items")
	id2 := core.EntityIDFromField(parent, "items")
	require.Equal(t, id1, id2)

	other := core.EntityIDFromField(parent, "count")
	require.NotEqual(t, id1, other)
}

func TestFullHashIsMerkleCommitment(t *testing.T) {
	own := core.ComputeOwnHash([]byte("payload"))
	child := core.Child{ID: core.ID{1}, FullHash: core.ID{2}}
	h1 := core.ComputeFullHash(own, []core.Child{child})
	h2 := core.ComputeFullHash(own, []core.Child{child})
	require.Equal(t, h1, h2)

	h3 := core.ComputeFullHash(own, nil)
	require.NotEqual(t, h1, h3)
}
