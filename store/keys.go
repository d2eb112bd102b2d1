// Package store implements the key-value store contract (spec §6):
// namespaced byte-key access with get/put/delete/iter/batch_write, an
// in-memory implementation for tests and single-node use, and a
// badger-backed implementation for durable deployments.
package store

import (
	"bytes"

	"github.com/sourcenetwork/syncore/core"
)

// Namespace is the single-byte prefix separating the four persisted
// key families (spec §6: "Entry(id) -> payload, Index(id) ->
// EntityIndex, Delta(id) -> CausalDelta, Meta(key) -> value").
type Namespace byte

const (
	NamespaceEntry Namespace = 'e'
	NamespaceIndex Namespace = 'i'
	NamespaceDelta Namespace = 'd'
	NamespaceMeta  Namespace = 'm'
)

// MetaHeads and MetaRootHash are the two well-known Meta keys (spec §6).
const (
	MetaHeads    = "heads"
	MetaRootHash = "root_hash"
)

// EntryKey builds the key for an entity's raw payload.
func EntryKey(id core.ID) []byte { return namespacedKey(NamespaceEntry, id[:]) }

// IndexKey builds the key for an entity's EntityIndex sidecar.
func IndexKey(id core.ID) []byte { return namespacedKey(NamespaceIndex, id[:]) }

// DeltaKey builds the key for a persisted CausalDelta.
func DeltaKey(id core.ID) []byte { return namespacedKey(NamespaceDelta, id[:]) }

// MetaKey builds the key for a named Meta entry.
func MetaKey(name string) []byte { return namespacedKey(NamespaceMeta, []byte(name)) }

func namespacedKey(ns Namespace, rest []byte) []byte {
	out := make([]byte, 0, 1+len(rest))
	out = append(out, byte(ns))
	out = append(out, rest...)
	return out
}

// HasNamespace reports whether key belongs to ns, for iter(prefix)
// callers that need to strip the namespace byte back off.
func HasNamespace(key []byte, ns Namespace) bool {
	return len(key) > 0 && key[0] == byte(ns)
}

// NamespacePrefix returns the single-byte prefix for ns, for use with
// Store.Iter.
func NamespacePrefix(ns Namespace) []byte { return []byte{byte(ns)} }

// EntityIndex is the persisted sidecar carrying an entity's hashes and
// metadata, separate from its raw payload (spec GLOSSARY, §6).
type EntityIndex struct {
	OwnHash  core.ID
	FullHash core.ID
	Children []core.Child
	Metadata core.Metadata
}

// compareKeys orders two store keys byte-wise, the ordering Iter and
// the in-memory backend's btree both rely on.
func compareKeys(a, b []byte) int { return bytes.Compare(a, b) }
