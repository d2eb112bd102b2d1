// Package session implements the per-peer sync session state machine:
// handshake and protocol negotiation, delta buffering and replay during
// state transfer, proactive sync triggers, and the storage applier with
// concurrent-branch detection (spec §4.5, §4.8).
package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/sourcenetwork/syncore/core"
	"github.com/sourcenetwork/syncore/hlc"
	"github.com/sourcenetwork/syncore/merkle"
)

// Phase is one state of the per-peer sync state machine (spec §4.5):
//
//	Idle -> Negotiating -> {HashSyncing, StateSyncing, DeltaSyncing} ->
//	Verifying -> Applying -> Replaying -> Idle
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseNegotiating
	PhaseHashSyncing
	PhaseStateSyncing
	PhaseDeltaSyncing
	PhaseVerifying
	PhaseApplying
	PhaseReplaying
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseNegotiating:
		return "Negotiating"
	case PhaseHashSyncing:
		return "HashSyncing"
	case PhaseStateSyncing:
		return "StateSyncing"
	case PhaseDeltaSyncing:
		return "DeltaSyncing"
	case PhaseVerifying:
		return "Verifying"
	case PhaseApplying:
		return "Applying"
	case PhaseReplaying:
		return "Replaying"
	default:
		return "Unknown"
	}
}

// bufferingPhases are the phases during which arriving deltas must be
// queued rather than admitted directly (spec §4.5.2).
func bufferingPhases(p Phase) bool {
	switch p {
	case PhaseStateSyncing, PhaseHashSyncing, PhaseVerifying, PhaseApplying:
		return true
	default:
		return false
	}
}

// Session is per-peer sync state (spec §4.5: "protocol, phase,
// sync_start_hlc, buffered_deltas, peer_root_hash, boundary_dag_heads").
type Session struct {
	mu sync.Mutex

	ID       string
	PeerID   string
	Protocol merkle.Protocol
	phase    Phase

	SyncStartHLC    hlc.Timestamp
	PeerRootHash    core.ID
	BoundaryDAGHeads []core.ID

	buffer *DeltaBuffer
}

// New creates an Idle session for peerID with a fresh random session id
// (matching the shape of the teacher's acorde GenerateSessionID, using
// google/uuid for collision-free ids instead of timestamp+random hex).
func New(peerID string, bufferCapacity int) *Session {
	return &Session{
		ID:     uuid.NewString(),
		PeerID: peerID,
		phase:  PhaseIdle,
		buffer: NewDeltaBuffer(bufferCapacity),
	}
}

// Phase returns the session's current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Transition moves the session to a new phase. Any phase may transition
// to Idle (failure outcome); the normal path only advances forward
// through the state machine.
func (s *Session) Transition(to Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = to
}

// IsBuffering reports whether deltas arriving right now must go through
// the buffer instead of the DAG directly.
func (s *Session) IsBuffering() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bufferingPhases(s.phase)
}

// Buffer exposes the session's delta buffer.
func (s *Session) Buffer() *DeltaBuffer {
	return s.buffer
}

// BeginSync marks the sync_start_hlc (spec §4.5.2 step 2 reference
// point) and transitions to Negotiating.
func (s *Session) BeginSync(start hlc.Timestamp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SyncStartHLC = start
	s.phase = PhaseNegotiating
}

// RecordHandshake captures the peer's root hash and dag_heads from a
// completed handshake. BoundaryDAGHeads anchors any Snapshot transfer run
// later in this session: once the transfer verifies, those heads get
// checkpoint markers installed so deltas referencing them are admitted
// instead of orphaned (spec §4.4, I9's companion P9).
func (s *Session) RecordHandshake(remote Handshake) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PeerRootHash = remote.Summary.RootHash
	s.BoundaryDAGHeads = remote.Summary.DAGHeads
}

// Fail resets the session to Idle; buffered deltas are preserved and
// replayed through the normal delta pipeline rather than discarded
// (spec §4.5: "buffered deltas are then discarded only after their
// HLCs are reattempted").
func (s *Session) Fail() []*core.CausalDelta {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseIdle
	drained := s.buffer.Drain()
	return drained
}
