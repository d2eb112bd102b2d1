// Package merkle implements the tree comparison engine: bidirectional
// Merkle reconciliation across the five negotiated sync protocols
// (HashComparison, BloomFilter, SubtreePrefetch, LevelWise, Snapshot),
// plus the paginated snapshot engine (spec §4.3, §4.4).
package merkle

import "github.com/sourcenetwork/syncore/core"

// TreeLeafData is the unit all five tree protocols transmit: an entity's
// id, its raw payload, and its metadata. Carrying metadata is required
// because receivers dispatch merges off metadata.CRDTType, and the
// normal metadata write path does not fire for leaves applied this way
// — callers MUST persist metadata explicitly alongside the payload.
type TreeLeafData struct {
	ID       core.ID
	Value    []byte
	Metadata core.Metadata
}
