package core

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/sourcenetwork/syncore/hlc"
)

// DeltaKind distinguishes a regular payload-carrying delta from a
// checkpoint marker (D3).
type DeltaKind uint8

const (
	DeltaRegular DeltaKind = iota
	DeltaCheckpoint
)

// CausalDelta is an immutable, content-addressed state mutation (spec §3).
type CausalDelta struct {
	id                ID
	Parents           []ID
	Payload           []byte
	HLC               hlc.Timestamp
	ExpectedRootHash  ID
	Kind              DeltaKind
	Nonce             []byte
	AuthorID          string
	Events            []byte // optional, opaque application events
}

// NewDelta builds a CausalDelta and computes its content-addressed id
// (D2): two nodes producing the same fields produce the same id.
func NewDelta(parents []ID, payload []byte, ts hlc.Timestamp, expectedRootHash ID, kind DeltaKind, nonce []byte, authorID string, events []byte) *CausalDelta {
	d := &CausalDelta{
		Parents:          append([]ID(nil), parents...),
		Payload:          payload,
		HLC:              ts,
		ExpectedRootHash: expectedRootHash,
		Kind:             kind,
		Nonce:            nonce,
		AuthorID:         authorID,
		Events:           events,
	}
	d.id = d.computeID()
	return d
}

// ID returns the delta's content-addressed identifier.
func (d *CausalDelta) ID() ID { return d.id }

// computeID hashes every field except the id itself (D2).
func (d *CausalDelta) computeID() ID {
	h := sha256.New()
	for _, p := range d.Parents {
		h.Write(p[:])
	}
	h.Write(d.Payload)

	var tsBuf [8 + 8]byte
	binary.BigEndian.PutUint64(tsBuf[0:8], uint64(d.HLC.PhysicalMS))
	binary.BigEndian.PutUint64(tsBuf[8:16], d.HLC.Logical)
	h.Write(tsBuf[:])
	h.Write([]byte(d.HLC.NodeID))

	h.Write(d.ExpectedRootHash[:])
	h.Write([]byte{byte(d.Kind)})
	h.Write(d.Nonce)
	h.Write([]byte(d.AuthorID))
	h.Write(d.Events)

	var out ID
	copy(out[:], h.Sum(nil))
	return out
}

// IsGenesisParent reports whether id is the all-zero genesis parent
// marker (D1).
func IsGenesisParent(id ID) bool { return id.IsZero() }

// NewCheckpoint builds a checkpoint delta anchored at genesis, used by the
// snapshot engine to install a boundary marker (§4.4, D3, P9). Its id is
// fixed to headID by the caller rather than content-derived, since it must
// match an existing DAG head exactly.
func NewCheckpoint(headID ID, expectedRootHash ID) *CausalDelta {
	return &CausalDelta{
		id:               headID,
		Parents:          []ID{Zero},
		Payload:          nil,
		ExpectedRootHash: expectedRootHash,
		Kind:             DeltaCheckpoint,
	}
}
