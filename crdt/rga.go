package crdt

import (
	"sort"

	"github.com/sourcenetwork/syncore/hlc"
)

// RgaID is the position identifier for one RGA element: a
// (timestamp, node_id) pair, ordered the same way as cshekharsharma-go-crdt's
// rga.go ID.Greater (higher timestamp wins; node_id tie-breaks).
type RgaID struct {
	Timestamp int64
	NodeID    string
}

// Greater reports whether a sorts after b under RGA's deterministic
// sibling ordering.
func (a RgaID) Greater(b RgaID) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp > b.Timestamp
	}
	return a.NodeID > b.NodeID
}

// RgaNode is one element of the replicated sequence.
type RgaNode struct {
	ID       RgaID
	ParentID RgaID
	Value    []byte
	Deleted  bool
}

// RgaState is the wire/storage representation: the full node set (order
// is reconstructed by integration, so the encoded slice order is
// insignificant).
type RgaState struct {
	Nodes []RgaNode
}

// Value linearizes visible (non-tombstoned) elements in canonical RGA
// order, concatenating their byte values.
func (s RgaState) Value() []byte {
	ordered := integrateAll(s.Nodes)
	var out []byte
	for _, n := range ordered {
		if !n.Deleted {
			out = append(out, n.Value...)
		}
	}
	return out
}

// rgaRootID is the sentinel identifying the sequence head; no real insertion
// ever uses NodeID "" since node ids are always non-empty.
var rgaRootID = RgaID{Timestamp: 0, NodeID: ""}

// integrateAll performs the deterministic linked-list integration
// (cshekharsharma-go-crdt/rga.go's integrate/processNode), buffering nodes
// whose parent hasn't arrived yet and replaying them once it has.
func integrateAll(nodes []RgaNode) []RgaNode {
	type link struct {
		node     RgaNode
		children []RgaID
	}
	byID := make(map[RgaID]*link, len(nodes)+1)
	byID[rgaRootID] = &link{}

	pending := make(map[RgaID][]RgaNode)
	var insert func(n RgaNode)
	insert = func(n RgaNode) {
		if _, ok := byID[n.ParentID]; !ok {
			pending[n.ParentID] = append(pending[n.ParentID], n)
			return
		}
		if existing, ok := byID[n.ID]; ok {
			if n.Deleted {
				existing.node.Deleted = true
			}
			return
		}
		byID[n.ID] = &link{node: n}
		parent := byID[n.ParentID]
		parent.children = append(parent.children, n.ID)
		if waiting, ok := pending[n.ID]; ok {
			delete(pending, n.ID)
			for _, w := range waiting {
				insert(w)
			}
		}
	}

	for _, n := range nodes {
		insert(n)
	}

	var out []RgaNode
	var walk func(id RgaID)
	walk = func(id RgaID) {
		l := byID[id]
		children := append([]RgaID(nil), l.children...)
		sort.Slice(children, func(i, j int) bool { return children[i].Greater(children[j]) })
		for _, c := range children {
			out = append(out, byID[c].node)
			walk(c)
		}
	}
	walk(rgaRootID)
	return out
}

// MergeRga merges two RGA payloads by unioning their node sets with
// causal (parent-arrives-first) integration and tombstone propagation —
// position-identifier based insertion deterministic by (timestamp,
// node_id) ordering (spec §4.2).
func MergeRga(localBytes, remoteBytes []byte, _, _ hlc.Timestamp) ([]byte, error) {
	var local, remote RgaState
	if len(localBytes) > 0 {
		if err := decodeCBOR(localBytes, &local); err != nil {
			return nil, err
		}
	}
	if len(remoteBytes) > 0 {
		if err := decodeCBOR(remoteBytes, &remote); err != nil {
			return nil, err
		}
	}

	seen := make(map[RgaID]bool, len(local.Nodes))
	merged := make([]RgaNode, 0, len(local.Nodes)+len(remote.Nodes))
	for _, n := range local.Nodes {
		seen[n.ID] = true
		merged = append(merged, n)
	}
	deletedRemote := make(map[RgaID]bool)
	for _, n := range remote.Nodes {
		if n.Deleted {
			deletedRemote[n.ID] = true
		}
		if !seen[n.ID] {
			merged = append(merged, n)
			seen[n.ID] = true
		}
	}
	for i := range merged {
		if deletedRemote[merged[i].ID] {
			merged[i].Deleted = true
		}
	}

	return encodeCBOR(RgaState{Nodes: merged})
}
