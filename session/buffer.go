package session

import (
	"sort"
	"sync"

	"github.com/sourcenetwork/syncore/core"
	"github.com/sourcenetwork/syncore/hlc"
)

// DefaultBufferCapacity is the default bound for DeltaBuffer (spec
// §4.5.2).
const DefaultBufferCapacity = 1000

// DeltaBuffer is a bounded FIFO queue of deltas arriving while a sync
// session is in a state-transfer phase (spec §4.5.2). On overflow, the
// oldest entry is dropped and a counter incremented; the session is
// never aborted for this.
type DeltaBuffer struct {
	mu       sync.Mutex
	capacity int
	items    []*core.CausalDelta
	dropped  int
}

// NewDeltaBuffer creates a buffer with the given capacity, falling back
// to DefaultBufferCapacity when capacity <= 0.
func NewDeltaBuffer(capacity int) *DeltaBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &DeltaBuffer{capacity: capacity}
}

// Push enqueues a delta, dropping the oldest buffered entry if the
// buffer is already at capacity.
func (b *DeltaBuffer) Push(delta *core.CausalDelta) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) >= b.capacity {
		b.items = b.items[1:]
		b.dropped++
	}
	b.items = append(b.items, delta)
}

// Dropped returns the number of deltas dropped for overflow so far.
func (b *DeltaBuffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Len returns the number of currently buffered deltas.
func (b *DeltaBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Drain empties the buffer, returning its contents in FIFO arrival
// order (not HLC order — callers that need HLC order use ReplayOrder).
func (b *DeltaBuffer) Drain() []*core.CausalDelta {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	return out
}

// ReplayOrder drains the buffer sorted by HLC ascending, implementing
// step 1 of spec §4.5.2's Replaying transition.
func (b *DeltaBuffer) ReplayOrder() []*core.CausalDelta {
	out := b.Drain()
	sort.Slice(out, func(i, j int) bool {
		return out[i].HLC.Compare(out[j].HLC) < 0
	})
	return out
}

// ReplayOutcome is the split of a drained buffer: deltas with HLC after
// the sync start should be admitted, and deltas at-or-before it are
// already represented by the transferred state and should be dropped
// (spec §4.5.2 steps 2-3).
type ReplayOutcome struct {
	ToAdmit   []*core.CausalDelta
	ToDiscard []*core.CausalDelta
}

// PartitionBySyncStart splits HLC-sorted deltas into the admit/discard
// sets relative to syncStart.
func PartitionBySyncStart(sorted []*core.CausalDelta, syncStart hlc.Timestamp) ReplayOutcome {
	var out ReplayOutcome
	for _, d := range sorted {
		if syncStart.Before(d.HLC) {
			out.ToAdmit = append(out.ToAdmit, d)
		} else {
			out.ToDiscard = append(out.ToDiscard, d)
		}
	}
	return out
}
