package node_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/syncore/core"
	"github.com/sourcenetwork/syncore/hlc"
	"github.com/sourcenetwork/syncore/node"
	"github.com/sourcenetwork/syncore/store"
)

func newTestManager(t *testing.T) *node.Manager {
	t.Helper()
	m, err := node.New(node.DefaultConfig(), store.NewMemory(), nil, nil, nil)
	require.NoError(t, err)
	return m
}

func TestManager_New_WithoutRuntimeOrTransport(t *testing.T) {
	m := newTestManager(t)
	require.NotNil(t, m.DAG())
	require.NotNil(t, m.Engine())
	require.NotNil(t, m.Events())
	require.NotNil(t, m.Metrics())
}

func TestManager_AdmitGenesisDelta(t *testing.T) {
	m := newTestManager(t)
	delta := core.NewDelta([]core.ID{core.Zero}, []byte("payload"), hlc.Timestamp{PhysicalMS: 1, NodeID: "n1"}, core.Zero, core.DeltaRegular, nil, "n1", nil)

	outcome, err := m.Admit("peer-a", delta)
	require.NoError(t, err)
	require.Equal(t, core.Applied, outcome)
}

func TestManager_MergeCallbackDispatchesBuiltinLWW(t *testing.T) {
	m := newTestManager(t)
	merge := m.MergeCallback()

	older := hlc.Timestamp{PhysicalMS: 1}
	newer := hlc.Timestamp{PhysicalMS: 2}
	merged, err := merge(core.Builtin(core.CRDTLwwRegister), []byte("old"), []byte("new"), older, newer)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), merged)
}

func TestManager_FindPeersWithoutTransportReturnsRecentOnly(t *testing.T) {
	m := newTestManager(t)
	peers := m.FindPeers(context.Background(), "ctx-a", nil)
	require.Empty(t, peers)
}

func TestManager_DialWithoutTransportFails(t *testing.T) {
	m := newTestManager(t)
	_, _, err := m.Dial(context.Background(), nil)
	require.Error(t, err)
}

func TestManager_SealMergeRegistryRejectsLateRegistration(t *testing.T) {
	m := newTestManager(t)
	m.SealMergeRegistry()
	err := m.Registry().Register("custom-type", func(a, b []byte, ta, tb hlc.Timestamp) ([]byte, error) {
		return nil, nil
	})
	require.Error(t, err)
}
