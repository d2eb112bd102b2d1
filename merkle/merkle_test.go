package merkle_test

import (
	"testing"

	"github.com/sourcenetwork/immutable"
	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/syncore/core"
	"github.com/sourcenetwork/syncore/hlc"
	"github.com/sourcenetwork/syncore/merkle"
)

// memStore is a minimal in-memory LocalStore/RemoteIndex used by both
// sides of these tests; the two roles are structurally identical.
type memStore struct {
	entities map[core.ID]core.Entity
	payloads map[core.ID][]byte
}

func newMemStore() *memStore {
	return &memStore{entities: map[core.ID]core.Entity{}, payloads: map[core.ID][]byte{}}
}

func (m *memStore) GetEntity(id core.ID) (core.Entity, bool, error) {
	e, ok := m.entities[id]
	return e, ok, nil
}

func (m *memStore) GetPayload(id core.ID) ([]byte, error) {
	return m.payloads[id], nil
}

func (m *memStore) ApplyLeaf(leaf merkle.TreeLeafData) error {
	e := m.entities[leaf.ID]
	e.ID = leaf.ID
	e.OwnHash = core.ComputeOwnHash(leaf.Value)
	e.Metadata = leaf.Metadata
	e.Refresh()
	m.entities[leaf.ID] = e
	m.payloads[leaf.ID] = leaf.Value
	m.propagateHash(leaf.ID)
	return nil
}

// propagateHash is a no-op: memStore never recomputes a parent's
// full_hash after a child changes (see convergedRootHash in
// scenarios_test.go).
func (m *memStore) propagateHash(core.ID) {}

func (m *memStore) put(id core.ID, payload []byte, crdtType core.CRDTType, ts hlc.Timestamp) {
	e := core.Entity{ID: id, OwnHash: core.ComputeOwnHash(payload)}
	e.Metadata.CRDTType = immutable.Some(crdtType)
	e.Metadata.UpdatedAt = ts
	e.Refresh()
	m.entities[id] = e
	m.payloads[id] = payload
}

func lwwMerge(t core.CRDTType, localBytes, remoteBytes []byte, localTS, remoteTS hlc.Timestamp) ([]byte, error) {
	if remoteTS.After(localTS) {
		return remoteBytes, nil
	}
	return localBytes, nil
}

func TestCompareTreesSkipsEqualFullHash(t *testing.T) {
	local := newMemStore()
	remote := newMemStore()
	id := core.ID{1}
	local.put(id, []byte("same"), core.Builtin(core.CRDTLwwRegister), hlc.Timestamp{PhysicalMS: 1})
	remote.put(id, []byte("same"), core.Builtin(core.CRDTLwwRegister), hlc.Timestamp{PhysicalMS: 1})

	actions, stats, err := merkle.CompareTrees(local, remote, lwwMerge, id)
	require.NoError(t, err)
	require.Empty(t, actions)
	require.Equal(t, 1, stats.EntitiesSkipped)
}

func TestCompareTreesMergesOnOwnHashDivergence(t *testing.T) {
	local := newMemStore()
	remote := newMemStore()
	id := core.ID{1}
	local.put(id, []byte("old"), core.Builtin(core.CRDTLwwRegister), hlc.Timestamp{PhysicalMS: 1})
	remote.put(id, []byte("new"), core.Builtin(core.CRDTLwwRegister), hlc.Timestamp{PhysicalMS: 2})

	actions, stats, err := merkle.CompareTrees(local, remote, lwwMerge, id)
	require.NoError(t, err)
	require.Equal(t, 1, stats.EntitiesSynced)

	localEntity, _, _ := local.GetEntity(id)
	require.Equal(t, core.ComputeOwnHash([]byte("new")), localEntity.OwnHash)

	// remote already holds the winning value, so no action is needed for it.
	require.Empty(t, actions)
}

func TestCompareTreesFetchesMissingLocalEntity(t *testing.T) {
	local := newMemStore()
	remote := newMemStore()
	id := core.ID{2}
	remote.put(id, []byte("remote-only"), core.Builtin(core.CRDTCounter), hlc.Timestamp{})

	counterMerge := func(t core.CRDTType, localBytes, remoteBytes []byte, _, _ hlc.Timestamp) ([]byte, error) {
		return remoteBytes, nil
	}

	_, stats, err := merkle.CompareTrees(local, remote, counterMerge, id)
	require.NoError(t, err)
	require.Equal(t, 1, stats.EntitiesSynced)

	payload, err := local.GetPayload(id)
	require.NoError(t, err)
	require.Equal(t, []byte("remote-only"), payload)
}

func TestSelectProtocolInSync(t *testing.T) {
	root := core.ID{9}
	local := merkle.PeerSummary{RootHash: root, HasState: true}
	remote := merkle.PeerSummary{RootHash: root}
	require.Equal(t, merkle.ProtocolNone, merkle.SelectProtocol(local, remote))
}

func TestSelectProtocolFreshNodeBootstraps(t *testing.T) {
	local := merkle.PeerSummary{HasState: false}
	remote := merkle.PeerSummary{
		RootHash:           core.ID{1},
		EntityCount:        200,
		SupportedProtocols: []merkle.Protocol{merkle.ProtocolSnapshot, merkle.ProtocolCompressedSnapshot},
	}
	require.Equal(t, merkle.ProtocolCompressedSnapshot, merkle.SelectProtocol(local, remote))
}

func TestSelectProtocolNeverSnapshotsAnInitializedPeer(t *testing.T) {
	local := merkle.PeerSummary{RootHash: core.ID{1}, HasState: true, MaxDepth: 1}
	remote := merkle.PeerSummary{
		RootHash:           core.ID{2},
		EntityCount:        500,
		SupportedProtocols: []merkle.Protocol{merkle.ProtocolSnapshot, merkle.ProtocolCompressedSnapshot, merkle.ProtocolLevelWise},
	}
	p := merkle.SelectProtocol(local, remote)
	require.NotEqual(t, merkle.ProtocolSnapshot, p)
	require.NotEqual(t, merkle.ProtocolCompressedSnapshot, p)
}

func TestGuardSnapshotSafetyDowngrades(t *testing.T) {
	local := merkle.PeerSummary{HasState: true}
	require.Equal(t, merkle.ProtocolHashComparison, merkle.GuardSnapshotSafety(merkle.ProtocolSnapshot, local))
	require.Equal(t, merkle.ProtocolLevelWise, merkle.GuardSnapshotSafety(merkle.ProtocolLevelWise, local))
}

func TestBloomFilterNoFalseNegatives(t *testing.T) {
	ids := make([]core.ID, 200)
	for i := range ids {
		ids[i] = core.ID{byte(i), byte(i >> 8)}
	}
	f := merkle.BuildBloomFilter(ids, 0.01)
	for _, id := range ids {
		require.True(t, f.Has(id))
	}
}

func TestBloomFilterWireRoundTrip(t *testing.T) {
	ids := []core.ID{{1}, {2}, {3}}
	f := merkle.BuildBloomFilter(ids, 0.05)
	rebuilt := merkle.NewBloomFilterFromWire(f.Bits(), f.M(), f.K(), f.N())
	for _, id := range ids {
		require.True(t, rebuilt.Has(id))
	}
}

func TestMissingFromFilterFindsAbsentIDs(t *testing.T) {
	senderIDs := []core.ID{{1}, {2}, {3}}
	f := merkle.BuildBloomFilter(senderIDs, 0.01)
	responderIDs := []core.ID{{1}, {2}, {3}, {4}, {5}}
	missing := merkle.MissingFromFilter(f, responderIDs)
	require.Contains(t, missing, core.ID{4})
	require.Contains(t, missing, core.ID{5})
}

func TestSnapshotRoundTrip(t *testing.T) {
	src := newMemStore()
	root := core.ID{1}
	child := core.ID{2}
	src.put(child, []byte("leaf"), core.Builtin(core.CRDTLwwRegister), hlc.Timestamp{})
	rootEntity := core.Entity{ID: root, OwnHash: core.ComputeOwnHash([]byte("root"))}
	rootEntity.Children = []core.Child{{ID: child, FullHash: src.entities[child].FullHash}}
	rootEntity.Refresh()
	src.entities[root] = rootEntity
	src.payloads[root] = []byte("root")

	pages, boundaryHash, err := merkle.GenerateSnapshot(src, root, 10)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	dst := newMemStore()
	err = merkle.ApplySnapshot(dst, root, pages, boundaryHash)
	require.NoError(t, err)

	rootPayload, err := dst.GetPayload(root)
	require.NoError(t, err)
	require.Equal(t, []byte("root"), rootPayload)
}

func TestApplySnapshotRejectsHashMismatch(t *testing.T) {
	entries := []merkle.SnapshotEntry{{ID: core.ID{1}, Payload: []byte("a")}}
	pages := []merkle.SnapshotPage{{Entries: entries, TotalPages: 1}}

	dst := newMemStore()
	err := merkle.ApplySnapshot(dst, core.ID{1}, pages, core.ID{0xFF})
	require.Error(t, err)
}

func TestCompressDecompressPage(t *testing.T) {
	raw := []byte("some snapshot page bytes, repeated repeated repeated")
	compressed, err := merkle.CompressPage(raw)
	require.NoError(t, err)

	out, err := merkle.DecompressPage(compressed)
	require.NoError(t, err)
	require.Equal(t, raw, out)
}
