// Package core defines the replicated state model shared by the DAG, the
// merge registry, and the tree comparison engine: entities, metadata, and
// causal deltas (spec §3).
package core

import (
	"crypto/sha256"

	"github.com/sourcenetwork/immutable"
	"github.com/sourcenetwork/syncore/hlc"
)

// ID is a 32-byte content-addressed identifier, used for both entity ids
// and delta ids (spec §3).
type ID [32]byte

// Zero is the genesis id: the all-zero id denoting "no parent" for a
// delta, or "no entity" for an empty children slot.
var Zero ID

// String renders the id as hex, mainly for logging/KV context.
func (id ID) String() string {
	const hexdigits = "0123456789abcdef"
	buf := make([]byte, len(id)*2)
	for i, b := range id {
		buf[i*2] = hexdigits[b>>4]
		buf[i*2+1] = hexdigits[b&0x0f]
	}
	return string(buf)
}

// IsZero reports whether id is the all-zero genesis id.
func (id ID) IsZero() bool { return id == Zero }

// EntityIDFromField derives a deterministic id for a named field beneath a
// parent entity: SHA-256(parent_id ∥ field_name). Two nodes creating the
// same logical field independently produce the same id (I2, P7).
func EntityIDFromField(parent ID, fieldName string) ID {
	h := sha256.New()
	h.Write(parent[:])
	h.Write([]byte(fieldName))
	var out ID
	copy(out[:], h.Sum(nil))
	return out
}

// EntityIDFromKey derives a deterministic id for a collection element:
// SHA-256(collection_id ∥ key).
func EntityIDFromKey(collection ID, key string) ID {
	h := sha256.New()
	h.Write(collection[:])
	h.Write([]byte(key))
	var out ID
	copy(out[:], h.Sum(nil))
	return out
}

// StorageType tags how an entity's payload is persisted/replicated.
type StorageType uint8

const (
	StoragePersistent StorageType = iota
	StoragePrivate
	StorageFrozen
)

// CRDTType tags how an entity's payload must be merged (spec §3, §4.2).
type CRDTType struct {
	// Kind names a built-in type, or "Custom" when Name is set.
	Kind CRDTKind
	Name string // populated only when Kind == CRDTCustom
}

// CRDTKind enumerates the built-in merge dispatch targets.
type CRDTKind uint8

const (
	CRDTCounter CRDTKind = iota
	CRDTLwwRegister
	CRDTUnorderedMap
	CRDTUnorderedSet
	CRDTVector
	CRDTRga
	CRDTCustom
)

func (k CRDTKind) String() string {
	switch k {
	case CRDTCounter:
		return "Counter"
	case CRDTLwwRegister:
		return "LwwRegister"
	case CRDTUnorderedMap:
		return "UnorderedMap"
	case CRDTUnorderedSet:
		return "UnorderedSet"
	case CRDTVector:
		return "Vector"
	case CRDTRga:
		return "Rga"
	case CRDTCustom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// Custom builds a Custom{type_name} tag.
func Custom(typeName string) CRDTType {
	return CRDTType{Kind: CRDTCustom, Name: typeName}
}

// Builtin builds a tag for one of the built-in kinds.
func Builtin(kind CRDTKind) CRDTType {
	return CRDTType{Kind: kind}
}

// TypeName returns the dispatch key used by the merge registry: the
// built-in kind's name, or the custom type name.
func (t CRDTType) TypeName() string {
	if t.Kind == CRDTCustom {
		return t.Name
	}
	return t.Kind.String()
}

// Metadata is carried with every entity and persisted alongside it (I3).
type Metadata struct {
	CreatedAt   hlc.Timestamp
	UpdatedAt   hlc.Timestamp
	StorageType StorageType
	CRDTType    immutable.Option[CRDTType]
}

// Child is one (child_id, child_full_hash) pair in an entity's ordered
// children sequence (I4).
type Child struct {
	ID       ID
	FullHash ID
}

// Entity is a single node in the replicated Merkle state tree (spec §3).
type Entity struct {
	ID       ID
	ParentID immutable.Option[ID]
	Children []Child
	OwnHash  ID
	FullHash ID
	Metadata Metadata
	DeletedAt immutable.Option[hlc.Timestamp]
}

// ComputeOwnHash returns SHA-256(payload), the own_hash for an entity
// carrying the given serialized payload (I1).
func ComputeOwnHash(payload []byte) ID {
	sum := sha256.Sum256(payload)
	return ID(sum)
}

// ComputeFullHash returns SHA-256(own_hash ∥ children full_hashes in
// stored order) — the Merkle commitment for the subtree rooted here (I1).
func ComputeFullHash(ownHash ID, children []Child) ID {
	h := sha256.New()
	h.Write(ownHash[:])
	for _, c := range children {
		h.Write(c.FullHash[:])
	}
	var out ID
	copy(out[:], h.Sum(nil))
	return out
}

// Refresh recomputes FullHash from OwnHash and Children in place.
func (e *Entity) Refresh() {
	e.FullHash = ComputeFullHash(e.OwnHash, e.Children)
}

// IsTombstone reports whether the entity has been deleted.
func (e *Entity) IsTombstone() bool {
	return e.DeletedAt.HasValue()
}
