package wire

import (
	"github.com/sourcenetwork/syncore/core"
	"github.com/sourcenetwork/syncore/hlc"
	"github.com/sourcenetwork/syncore/merkle"
)

// SyncHandshake is wire tag 0x01 (spec §6).
type SyncHandshake struct {
	RootHash            core.ID
	HasState            bool
	EntityCount         int
	MaxDepth            int
	DAGHeads            []core.ID
	SupportedProtocols  []merkle.Protocol
}

// SyncHandshakeResponse is wire tag 0x02: the same fields plus the
// negotiated protocol.
type SyncHandshakeResponse struct {
	SyncHandshake
	NegotiatedProtocol merkle.Protocol
}

// ProtocolSelected is wire tag 0x10.
type ProtocolSelected struct {
	Protocol merkle.Protocol
}

// ProtocolAck is wire tag 0x11. Reason is empty on an unconditional ack.
type ProtocolAck struct {
	Reason string
}

// ProtocolNack is wire tag 0x12 (the spec groups ack/nack under one tag
// number; they are split here into distinct wire tags so a reader can
// dispatch on Tag alone without peeking into the body).
type ProtocolNack struct {
	Reason string
}

// RequestEntities is wire tag 0x20.
type RequestEntities struct {
	IDs []core.ID
}

// EntitiesResponse is wire tag 0x21.
type EntitiesResponse struct {
	Leaves []merkle.TreeLeafData
}

// RequestSnapshot is wire tag 0x30.
type RequestSnapshot struct {
	Compressed bool
	RootID     core.ID
}

// SnapshotPageMsg is wire tag 0x31 (merkle.SnapshotPage carries the
// same fields; this wrapper exists so the wire layer can attach the
// root hash the page is being verified against without changing the
// merkle package's own type).
type SnapshotPageMsg struct {
	merkle.SnapshotPage
	RootHash core.ID
}

// BloomFilterRequest is wire tag 0x40.
type BloomFilterRequest struct {
	FilterBits []byte
	K          int
	N          int
	RootHash   core.ID
}

// BloomFilterResponse is wire tag 0x41.
type BloomFilterResponse struct {
	Leaves []merkle.TreeLeafData
}

// DeltaWire mirrors core.CausalDelta's exported fields for wire
// transfer. CausalDelta's id is unexported and intentionally never
// serialized: per D2, two nodes holding the same fields always
// recompute the same id, so DecodeDelta rebuilds it via
// core.NewDelta rather than trusting a transmitted value.
type DeltaWire struct {
	Parents          []core.ID
	Payload          []byte
	HLC              hlc.Timestamp
	ExpectedRootHash core.ID
	Kind             core.DeltaKind
	Nonce            []byte
	AuthorID         string
	Events           []byte
}

// EncodeDelta converts a CausalDelta to its wire form.
func EncodeDelta(d *core.CausalDelta) DeltaWire {
	return DeltaWire{
		Parents:          d.Parents,
		Payload:          d.Payload,
		HLC:              d.HLC,
		ExpectedRootHash: d.ExpectedRootHash,
		Kind:             d.Kind,
		Nonce:            d.Nonce,
		AuthorID:         d.AuthorID,
		Events:           d.Events,
	}
}

// DecodeDelta rebuilds a CausalDelta from its wire form, recomputing
// the content-addressed id rather than trusting one off the wire (D2).
func DecodeDelta(w DeltaWire) *core.CausalDelta {
	return core.NewDelta(w.Parents, w.Payload, w.HLC, w.ExpectedRootHash, w.Kind, w.Nonce, w.AuthorID, w.Events)
}

// DeltaWithHints is wire tag 0x50.
type DeltaWithHints struct {
	Delta DeltaWire
	Hints []byte // CBOR-encoded session.DeltaHints/FullHints
}

// HashHeartbeatMsg is wire tag 0x51.
type HashHeartbeatMsg struct {
	RootHash core.ID
	DAGHeads []core.ID
}

// VerificationFailed is wire tag 0x60.
type VerificationFailed struct {
	Reason string
}
