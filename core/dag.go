package core

import (
	syncerrors "github.com/sourcenetwork/syncore/errors"
)

// AdmitOutcome is the result of DAG.Admit (spec §4.1).
type AdmitOutcome uint8

const (
	Applied AdmitOutcome = iota
	Pending
	AlreadyKnown
)

func (o AdmitOutcome) String() string {
	switch o {
	case Applied:
		return "Applied"
	case Pending:
		return "Pending"
	case AlreadyKnown:
		return "AlreadyKnown"
	default:
		return "Unknown"
	}
}

// maxParentHashes bounds the parent_hashes table; the oldest ~10% is
// pruned on overflow (spec §3).
const maxParentHashes = 10000

// StorageApplier applies an admitted delta's payload against the runtime
// and store, returning the new root hash (spec §4.1, §4.8). The DAG
// invokes it once per admitted delta; it is implemented by the node
// manager's storage applier (core/apply.go equivalent lives in session/).
type StorageApplier interface {
	Apply(delta *CausalDelta) (newRootHash ID, err error)
}

// DAG is the causal delta graph: admitted deltas, pending deltas waiting
// on parents, and the current heads (spec §3, §4.1).
type DAG struct {
	applied map[ID]*CausalDelta
	pending map[ID]*CausalDelta
	heads   map[ID]struct{}

	// missingBy maps a missing parent id to the set of pending delta ids
	// that are waiting on it, enabling O(1) cascade promotion.
	missingBy map[ID]map[ID]struct{}

	parentHashes     map[ID]ID
	parentHashOrder   []ID // insertion order, for oldest-10% pruning

	applier StorageApplier
}

// NewDAG creates an empty DAG backed by the given storage applier.
func NewDAG(applier StorageApplier) *DAG {
	return &DAG{
		applied:       make(map[ID]*CausalDelta),
		pending:       make(map[ID]*CausalDelta),
		heads:         make(map[ID]struct{}),
		missingBy:     make(map[ID]map[ID]struct{}),
		parentHashes:  make(map[ID]ID),
		parentHashOrder: make([]ID, 0),
		applier:       applier,
	}
}

// Has reports whether id is known, applied or pending.
func (d *DAG) Has(id ID) bool {
	if _, ok := d.applied[id]; ok {
		return true
	}
	_, ok := d.pending[id]
	return ok
}

// Heads returns the current DAG heads: applied deltas that are no
// predecessor's parent.
func (d *DAG) Heads() []ID {
	out := make([]ID, 0, len(d.heads))
	for id := range d.heads {
		out = append(out, id)
	}
	return out
}

// MissingParents returns the union of unresolved parent references across
// all pending deltas.
func (d *DAG) MissingParents() []ID {
	out := make([]ID, 0, len(d.missingBy))
	for id := range d.missingBy {
		out = append(out, id)
	}
	return out
}

// ParentHash looks up the post-apply root hash recorded for a previously
// applied delta id (used by the storage applier for concurrent-branch
// detection, §4.8).
func (d *DAG) ParentHash(id ID) (ID, bool) {
	h, ok := d.parentHashes[id]
	return h, ok
}

// Admit tries to apply delta immediately if all its parents are already
// applied (or genesis); otherwise it is buffered as pending. Applying a
// delta may cascade-promote pending deltas whose last missing parent just
// arrived, running to fixed point (spec §4.1).
func (d *DAG) Admit(delta *CausalDelta) (AdmitOutcome, error) {
	id := delta.ID()
	if d.Has(id) {
		return AlreadyKnown, nil
	}
	if err := d.rejectCyclic(delta); err != nil {
		return AlreadyKnown, err
	}

	if d.parentsSatisfied(delta) {
		if err := d.apply(delta); err != nil {
			return AlreadyKnown, err
		}
		d.cascade()
		return Applied, nil
	}

	d.addPending(delta)
	return Pending, nil
}

// RestoreApplied inserts delta directly into the applied set without
// parent verification, used for checkpoint installation and for replaying
// locally persisted deltas on startup (spec §4.1).
func (d *DAG) RestoreApplied(delta *CausalDelta) {
	id := delta.ID()
	if _, ok := d.applied[id]; ok {
		return
	}
	d.applied[id] = delta
	d.recordHead(id, delta.Parents)
	d.cascade()
}

func (d *DAG) parentsSatisfied(delta *CausalDelta) bool {
	for _, p := range delta.Parents {
		if IsGenesisParent(p) {
			continue
		}
		if _, ok := d.applied[p]; !ok {
			return false
		}
	}
	return true
}

func (d *DAG) apply(delta *CausalDelta) error {
	id := delta.ID()
	newRoot, err := d.applier.Apply(delta)
	if err != nil {
		return err
	}
	d.applied[id] = delta
	d.recordHead(id, delta.Parents)
	d.recordParentHash(id, newRoot)
	return nil
}

func (d *DAG) recordHead(id ID, parents []ID) {
	d.heads[id] = struct{}{}
	for _, p := range parents {
		if IsGenesisParent(p) {
			continue
		}
		delete(d.heads, p)
	}
}

func (d *DAG) recordParentHash(id ID, hash ID) {
	if _, exists := d.parentHashes[id]; !exists {
		d.parentHashOrder = append(d.parentHashOrder, id)
	}
	d.parentHashes[id] = hash
	d.pruneParentHashes()
}

func (d *DAG) pruneParentHashes() {
	if len(d.parentHashOrder) <= maxParentHashes {
		return
	}
	toPrune := len(d.parentHashOrder) / 10
	if toPrune == 0 {
		toPrune = 1
	}
	for i := 0; i < toPrune && i < len(d.parentHashOrder); i++ {
		delete(d.parentHashes, d.parentHashOrder[i])
	}
	d.parentHashOrder = d.parentHashOrder[toPrune:]
}

func (d *DAG) addPending(delta *CausalDelta) {
	id := delta.ID()
	d.pending[id] = delta
	for _, p := range delta.Parents {
		if IsGenesisParent(p) {
			continue
		}
		if _, ok := d.applied[p]; ok {
			continue
		}
		waiters, ok := d.missingBy[p]
		if !ok {
			waiters = make(map[ID]struct{})
			d.missingBy[p] = waiters
		}
		waiters[id] = struct{}{}
	}
}

// cascade promotes pending deltas whose parents have all become applied,
// running to fixed point (a single admission may unblock a chain).
func (d *DAG) cascade() {
	for {
		promoted := false
		for id, delta := range d.pending {
			if !d.parentsSatisfied(delta) {
				continue
			}
			delete(d.pending, id)
			for _, p := range delta.Parents {
				if waiters, ok := d.missingBy[p]; ok {
					delete(waiters, id)
					if len(waiters) == 0 {
						delete(d.missingBy, p)
					}
				}
			}
			if err := d.apply(delta); err != nil {
				// A fatal per-delta error quarantines this delta rather
				// than aborting the cascade for the rest of the graph.
				continue
			}
			promoted = true
		}
		if !promoted {
			return
		}
	}
}

// rejectCyclic rejects a delta that is self-referential or would close a
// cycle through the pending set, without panicking (spec §4.1, §9).
func (d *DAG) rejectCyclic(delta *CausalDelta) error {
	id := delta.ID()
	for _, p := range delta.Parents {
		if p == id {
			return syncerrors.NewWithKind(syncerrors.KindCyclicDelta, "delta references itself as a parent", syncerrors.NewKV("DeltaID", id.String()))
		}
	}

	// Walk the pending closure reachable from delta's parents; if it
	// leads back to id, admitting delta would close a cycle.
	visited := make(map[ID]struct{})
	var stack []ID
	stack = append(stack, delta.Parents...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == id {
			return syncerrors.NewWithKind(syncerrors.KindCyclicDelta, "delta closes a cycle in the pending set", syncerrors.NewKV("DeltaID", id.String()))
		}
		if _, ok := visited[cur]; ok {
			continue
		}
		visited[cur] = struct{}{}
		if pendingDelta, ok := d.pending[cur]; ok {
			stack = append(stack, pendingDelta.Parents...)
		}
	}
	return nil
}
