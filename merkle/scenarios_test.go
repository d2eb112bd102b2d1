package merkle_test

import (
	"bytes"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/syncore/core"
	"github.com/sourcenetwork/syncore/crdt"
	"github.com/sourcenetwork/syncore/hlc"
	"github.com/sourcenetwork/syncore/merkle"
	"github.com/sourcenetwork/syncore/wire"
)

// seedParent builds a container entity whose children are the already
// seeded entities in ids, so CompareTrees's child-diffing walk actually
// has something to traverse instead of comparing a single bare leaf.
func seedParent(store *memStore, parent core.ID, ids []core.ID) {
	e := core.Entity{ID: parent, OwnHash: core.ComputeOwnHash([]byte("parent"))}
	for _, id := range ids {
		e.Children = append(e.Children, core.Child{ID: id, FullHash: store.entities[id].FullHash})
	}
	e.Refresh()
	store.entities[parent] = e
	store.payloads[parent] = []byte("parent")
}

// convergedRootHash recomputes the same parent full_hash both sides
// should reach once every id in keys has converged to the same per-key
// full_hash; neither memStore nor the production Engine auto-propagates
// a container's full_hash after a child changes, so the test computes it
// directly from the converged leaves instead of relying on stored
// Children bookkeeping.
func convergedRootHash(entities map[core.ID]core.Entity, keys []core.ID) core.ID {
	children := make([]core.Child, 0, len(keys))
	for _, k := range keys {
		children = append(children, core.Child{ID: k, FullHash: entities[k].FullHash})
	}
	return core.ComputeFullHash(core.ComputeOwnHash([]byte("parent")), children)
}

func TestScenario_DisjointMapMerge(t *testing.T) {
	local := newMemStore()
	remote := newMemStore()
	parent := core.ID{0xAA}

	keys := make([]core.ID, 30)
	for i := 0; i < 30; i++ {
		keys[i] = core.ID{byte(i + 1)}
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })

	for i, k := range keys {
		payload := []byte(fmt.Sprintf("v%02d", i))
		if i < 15 {
			local.put(k, payload, core.Builtin(core.CRDTLwwRegister), hlc.Timestamp{PhysicalMS: int64(i)})
		} else {
			remote.put(k, payload, core.Builtin(core.CRDTLwwRegister), hlc.Timestamp{PhysicalMS: int64(i)})
		}
	}
	seedParent(local, parent, keys[:15])
	seedParent(remote, parent, keys[15:])

	actions, stats, err := merkle.CompareTrees(local, remote, lwwMerge, parent)
	require.NoError(t, err)
	require.NotZero(t, stats.EntitiesSynced)

	for _, a := range actions {
		require.NoError(t, remote.ApplyLeaf(a))
	}

	for i, k := range keys {
		want := []byte(fmt.Sprintf("v%02d", i))
		lp, err := local.GetPayload(k)
		require.NoError(t, err)
		require.Equal(t, want, lp)

		rp, err := remote.GetPayload(k)
		require.NoError(t, err)
		require.Equal(t, want, rp)
	}

	require.Equal(t, convergedRootHash(local.entities, keys), convergedRootHash(remote.entities, keys))
}

func TestScenario_LWWConflictResolvesToLatestWrite(t *testing.T) {
	local := newMemStore()
	remote := newMemStore()
	key := core.ID{1}
	local.put(key, []byte("alpha"), core.Builtin(core.CRDTLwwRegister), hlc.Timestamp{PhysicalMS: 1})
	remote.put(key, []byte("beta"), core.Builtin(core.CRDTLwwRegister), hlc.Timestamp{PhysicalMS: 2})

	actions, stats, err := merkle.CompareTrees(local, remote, lwwMerge, key)
	require.NoError(t, err)
	require.Equal(t, 1, stats.EntitiesSynced)
	require.Empty(t, actions) // remote already holds the winning value

	lp, err := local.GetPayload(key)
	require.NoError(t, err)
	require.Equal(t, []byte("beta"), lp)

	rp, err := remote.GetPayload(key)
	require.NoError(t, err)
	require.Equal(t, []byte("beta"), rp)
}

func TestScenario_CounterMergeSumsIndependentContributions(t *testing.T) {
	local := newMemStore()
	remote := newMemStore()
	key := core.ID{1}

	localState := crdt.CounterState{"n1": {Positive: 3}}
	remoteState := crdt.CounterState{"n2": {Positive: 5}}
	localBytes, err := wire.EncodeBody(localState)
	require.NoError(t, err)
	remoteBytes, err := wire.EncodeBody(remoteState)
	require.NoError(t, err)

	local.put(key, localBytes, core.Builtin(core.CRDTCounter), hlc.Timestamp{PhysicalMS: 1})
	remote.put(key, remoteBytes, core.Builtin(core.CRDTCounter), hlc.Timestamp{PhysicalMS: 2})

	counterMerge := func(t core.CRDTType, l, r []byte, lt, rt hlc.Timestamp) ([]byte, error) {
		return crdt.MergeByCRDTType(nil, t, l, r, lt, rt)
	}

	_, stats, err := merkle.CompareTrees(local, remote, counterMerge, key)
	require.NoError(t, err)
	require.Equal(t, 1, stats.EntitiesSynced)

	merged, err := local.GetPayload(key)
	require.NoError(t, err)
	var state crdt.CounterState
	require.NoError(t, wire.DecodeBody(merged, &state))
	require.Equal(t, int64(8), state.Value())
}

func TestScenario_PartitionHealConvergesBothSides(t *testing.T) {
	local := newMemStore()
	remote := newMemStore()
	parent := core.ID{0xBB}
	shared := core.ID{1}
	localOnly := core.ID{2}
	remoteOnly := core.ID{3}

	local.put(shared, []byte("pre-partition"), core.Builtin(core.CRDTLwwRegister), hlc.Timestamp{PhysicalMS: 1})
	remote.put(shared, []byte("pre-partition"), core.Builtin(core.CRDTLwwRegister), hlc.Timestamp{PhysicalMS: 1})

	// The partition: local writes to the shared key and gains a key of
	// its own; remote independently gains a different key.
	local.put(shared, []byte("local-write"), core.Builtin(core.CRDTLwwRegister), hlc.Timestamp{PhysicalMS: 2})
	local.put(localOnly, []byte("local-new"), core.Builtin(core.CRDTLwwRegister), hlc.Timestamp{PhysicalMS: 2})
	remote.put(remoteOnly, []byte("remote-new"), core.Builtin(core.CRDTLwwRegister), hlc.Timestamp{PhysicalMS: 3})

	seedParent(local, parent, []core.ID{shared, localOnly})
	seedParent(remote, parent, []core.ID{shared, remoteOnly})

	// Heal: one HashComparison run fetches remote-only children directly
	// and returns local-only leaves for the caller to push back, exactly
	// as a real wire round trip (EntitiesResponse) would.
	pushback, _, err := merkle.CompareTrees(local, remote, lwwMerge, parent)
	require.NoError(t, err)
	for _, a := range pushback {
		require.NoError(t, remote.ApplyLeaf(a))
	}

	keys := []core.ID{shared, localOnly, remoteOnly}
	for _, k := range keys {
		lp, err := local.GetPayload(k)
		require.NoError(t, err)
		rp, err := remote.GetPayload(k)
		require.NoError(t, err)
		require.Equal(t, lp, rp)
	}

	lp, _ := local.GetPayload(shared)
	require.Equal(t, []byte("local-write"), lp)
	require.Equal(t, convergedRootHash(local.entities, keys), convergedRootHash(remote.entities, keys))
}
