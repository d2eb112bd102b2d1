// Package hlc implements the hybrid logical clock used to order causal
// deltas and CRDT register writes (spec §3, GLOSSARY): a monotonic tuple
// of (physical_ms, logical_counter, node_id).
package hlc

import (
	"fmt"
	"sync"
	"time"
)

// Timestamp is a single HLC reading.
type Timestamp struct {
	PhysicalMS int64
	Logical    uint64
	NodeID     string
}

// Compare orders two timestamps: physical time first, then logical
// counter, then node id lexicographically. Used for LwwRegister tie-break
// (spec §4.2) and delta-buffer replay ordering (spec §4.5.2).
func (t Timestamp) Compare(o Timestamp) int {
	if t.PhysicalMS != o.PhysicalMS {
		if t.PhysicalMS < o.PhysicalMS {
			return -1
		}
		return 1
	}
	if t.Logical != o.Logical {
		if t.Logical < o.Logical {
			return -1
		}
		return 1
	}
	if t.NodeID == o.NodeID {
		return 0
	}
	if t.NodeID < o.NodeID {
		return -1
	}
	return 1
}

// Before reports whether t happened strictly before o.
func (t Timestamp) Before(o Timestamp) bool { return t.Compare(o) < 0 }

// After reports whether t happened strictly after o.
func (t Timestamp) After(o Timestamp) bool { return t.Compare(o) > 0 }

// String renders the timestamp as "physical.logical@node", a stable form
// suitable for structured log KVs.
func (t Timestamp) String() string {
	return fmt.Sprintf("%d.%d@%s", t.PhysicalMS, t.Logical, t.NodeID)
}

// Clock is a monotonic HLC generator for a single node.
type Clock struct {
	mu      sync.Mutex
	last    Timestamp
	nodeID  string
	nowFunc func() int64
}

// NewClock creates a Clock for nodeID. An optional nowFunc overrides the
// wall-clock source for deterministic tests.
func NewClock(nodeID string, nowFunc func() int64) *Clock {
	if nowFunc == nil {
		nowFunc = func() int64 { return time.Now().UnixMilli() }
	}
	return &Clock{nodeID: nodeID, nowFunc: nowFunc}
}

// Now advances the clock and returns a new timestamp, guaranteeing strict
// monotonicity even under repeated calls within the same millisecond.
func (c *Clock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	phys := c.nowFunc()
	switch {
	case phys > c.last.PhysicalMS:
		c.last = Timestamp{PhysicalMS: phys, Logical: 0, NodeID: c.nodeID}
	default:
		c.last = Timestamp{PhysicalMS: c.last.PhysicalMS, Logical: c.last.Logical + 1, NodeID: c.nodeID}
	}
	return c.last
}

// Observe merges a remote timestamp into the clock, as required whenever a
// delta or heartbeat with a foreign HLC is received, preserving the HLC
// invariant that the local clock never falls behind anything it has seen.
func (c *Clock) Observe(remote Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	phys := c.nowFunc()
	maxPhys := phys
	if remote.PhysicalMS > maxPhys {
		maxPhys = remote.PhysicalMS
	}
	if c.last.PhysicalMS > maxPhys {
		maxPhys = c.last.PhysicalMS
	}

	var logical uint64
	switch maxPhys {
	case c.last.PhysicalMS:
		logical = c.last.Logical + 1
	}
	if maxPhys == remote.PhysicalMS && remote.Logical+1 > logical {
		logical = remote.Logical + 1
	}
	c.last = Timestamp{PhysicalMS: maxPhys, Logical: logical, NodeID: c.nodeID}
}
