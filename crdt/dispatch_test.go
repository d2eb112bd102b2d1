package crdt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/syncore/core"
	"github.com/sourcenetwork/syncore/hlc"
)

func TestDispatchCounter(t *testing.T) {
	reg := NewRegistry()
	local, err := encodeCBOR(CounterState{"n1": {Positive: 5}})
	require.NoError(t, err)
	remote, err := encodeCBOR(CounterState{"n1": {Positive: 7}})
	require.NoError(t, err)

	out, err := MergeByCRDTType(reg, core.Builtin(core.CRDTCounter), local, remote, hlc.Timestamp{}, hlc.Timestamp{})
	require.NoError(t, err)

	var state CounterState
	require.NoError(t, decodeCBOR(out, &state))
	require.Equal(t, int64(7), state.Value())
}

func TestDispatchVectorElementWise(t *testing.T) {
	reg := NewRegistry()

	localCounter, err := encodeCBOR(CounterState{"n1": {Positive: 1}})
	require.NoError(t, err)
	remoteCounter, err := encodeCBOR(CounterState{"n1": {Positive: 9}})
	require.NoError(t, err)

	local := VectorState{Elements: []VectorElement{
		{CRDTTypeName: core.CRDTCounter.String(), Payload: localCounter},
	}}
	remote := VectorState{Elements: []VectorElement{
		{CRDTTypeName: core.CRDTCounter.String(), Payload: remoteCounter},
		{CRDTTypeName: core.CRDTLwwRegister.String(), Payload: []byte("tail")},
	}}

	localBytes, err := encodeCBOR(local)
	require.NoError(t, err)
	remoteBytes, err := encodeCBOR(remote)
	require.NoError(t, err)

	out, err := MergeByCRDTType(reg, core.Builtin(core.CRDTVector), localBytes, remoteBytes, hlc.Timestamp{}, hlc.Timestamp{})
	require.NoError(t, err)

	var merged VectorState
	require.NoError(t, decodeCBOR(out, &merged))
	require.Len(t, merged.Elements, 2)

	var counter CounterState
	require.NoError(t, decodeCBOR(merged.Elements[0].Payload, &counter))
	require.Equal(t, int64(9), counter.Value())
	require.Equal(t, []byte("tail"), merged.Elements[1].Payload)
}

func TestDispatchCustomUsesRegisteredFunc(t *testing.T) {
	reg := NewRegistry()
	called := false
	require.NoError(t, reg.Register("widget", func(localBytes, remoteBytes []byte, _, _ hlc.Timestamp) ([]byte, error) {
		called = true
		return append(localBytes, remoteBytes...), nil
	}))

	out, err := MergeByCRDTType(reg, core.Custom("widget"), []byte("a"), []byte("b"), hlc.Timestamp{}, hlc.Timestamp{})
	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, []byte("ab"), out)
}

func TestDispatchCustomFallsBackToLWWWhenUnregistered(t *testing.T) {
	reg := NewRegistry()
	localTS := hlc.Timestamp{PhysicalMS: 1, NodeID: "a"}
	remoteTS := hlc.Timestamp{PhysicalMS: 2, NodeID: "b"}

	out, err := MergeByCRDTType(reg, core.Custom("mystery"), []byte("old"), []byte("new"), localTS, remoteTS)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), out)
}

func TestDispatchCustomConsultsWASMCallbackBeforeFallback(t *testing.T) {
	reg := NewRegistry()
	reg.SetWASMCallback(func(typeName string, localBytes, remoteBytes []byte, _, _ hlc.Timestamp) ([]byte, bool, error) {
		if typeName != "mystery" {
			return nil, false, nil
		}
		return []byte("from-wasm"), true, nil
	})

	out, err := MergeByCRDTType(reg, core.Custom("mystery"), []byte("old"), []byte("new"), hlc.Timestamp{}, hlc.Timestamp{})
	require.NoError(t, err)
	require.Equal(t, []byte("from-wasm"), out)
}
