package wire_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/syncore/core"
	"github.com/sourcenetwork/syncore/hlc"
	"github.com/sourcenetwork/syncore/wire"
)

func TestWriteReadMessage_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, wire.WriteMessage(&buf, wire.TagHashHeartbeat, []byte("body")))

	tag, body, err := wire.ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, wire.TagHashHeartbeat, tag)
	require.Equal(t, []byte("body"), body)
}

func TestEncodeDecodeMessage_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	msg := wire.HashHeartbeatMsg{RootHash: core.ID{1, 2, 3}, DAGHeads: []core.ID{{4}}}
	require.NoError(t, wire.EncodeMessage(&buf, wire.TagHashHeartbeat, msg))

	tag, body, err := wire.ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, wire.TagHashHeartbeat, tag)

	var decoded wire.HashHeartbeatMsg
	require.NoError(t, wire.DecodeBody(body, &decoded))
	require.Equal(t, msg, decoded)
}

func TestDeltaWire_RecomputesIDRatherThanTrustingWire(t *testing.T) {
	original := core.NewDelta([]core.ID{core.Zero}, []byte("payload"), hlc.Timestamp{PhysicalMS: 1, NodeID: "n1"}, core.Zero, core.DeltaRegular, nil, "n1", nil)

	w := wire.EncodeDelta(original)
	rebuilt := wire.DecodeDelta(w)

	require.Equal(t, original.ID(), rebuilt.ID())
	require.Equal(t, original.Payload, rebuilt.Payload)
}

func TestMultipleMessagesOnOneStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, wire.WriteMessage(&buf, wire.TagProtocolAck, []byte("a")))
	require.NoError(t, wire.WriteMessage(&buf, wire.TagProtocolNack, []byte("bb")))

	tag1, body1, err := wire.ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, wire.TagProtocolAck, tag1)
	require.Equal(t, []byte("a"), body1)

	tag2, body2, err := wire.ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, wire.TagProtocolNack, tag2)
	require.Equal(t, []byte("bb"), body2)
}
