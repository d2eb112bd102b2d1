package node_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/syncore/core"
	"github.com/sourcenetwork/syncore/merkle"
	"github.com/sourcenetwork/syncore/node"
	"github.com/sourcenetwork/syncore/store"
)

func TestEngine_RootHashDefaultsToZero(t *testing.T) {
	e := node.NewEngine(store.NewMemory())
	require.Equal(t, core.Zero, e.RootHash())
}

func TestEngine_SetRootHashRoundTrips(t *testing.T) {
	e := node.NewEngine(store.NewMemory())
	id := core.ID{9, 9, 9}
	require.NoError(t, e.SetRootHash(context.Background(), id))
	require.Equal(t, id, e.RootHash())
}

func TestEngine_ApplyLeafThenGetEntityAndPayload(t *testing.T) {
	e := node.NewEngine(store.NewMemory())
	id := core.ID{1, 2, 3}
	leaf := merkle.TreeLeafData{ID: id, Value: []byte("payload"), Metadata: core.Metadata{}}

	require.NoError(t, e.ApplyLeaf(leaf))

	entity, ok, err := e.GetEntity(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, core.ComputeOwnHash(leaf.Value), entity.OwnHash)

	payload, err := e.GetPayload(id)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), payload)
}

func TestEngine_LocalEntityIDsListsAppliedLeaves(t *testing.T) {
	e := node.NewEngine(store.NewMemory())
	a, b := core.ID{1}, core.ID{2}
	require.NoError(t, e.ApplyLeaf(merkle.TreeLeafData{ID: a, Value: []byte("a")}))
	require.NoError(t, e.ApplyLeaf(merkle.TreeLeafData{ID: b, Value: []byte("b")}))

	ids, err := e.LocalEntityIDs(core.Zero)
	require.NoError(t, err)
	require.ElementsMatch(t, []core.ID{a, b}, ids)
}

func TestEngine_HeadsRoundTrip(t *testing.T) {
	e := node.NewEngine(store.NewMemory())
	ctx := context.Background()

	heads, err := e.Heads(ctx)
	require.NoError(t, err)
	require.Nil(t, heads)

	want := []core.ID{{1}, {2}}
	require.NoError(t, e.SetHeads(ctx, want))

	got, err := e.Heads(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
