package session

import (
	"github.com/sourcenetwork/syncore/errors"
	"github.com/sourcenetwork/syncore/merkle"
)

// HandshakeVersion is the wire protocol version negotiated at the start
// of every sync session (spec §4.5: "Handshake (protocol version 2)").
const HandshakeVersion = 2

// Handshake is the bidirectional exchange each side performs before
// protocol selection (spec §4.5, §6 SyncHandshake/SyncHandshakeResponse).
type Handshake struct {
	Version int
	Summary merkle.PeerSummary
}

// NewHandshake builds the local side of a handshake at the current
// protocol version.
func NewHandshake(summary merkle.PeerSummary) Handshake {
	return Handshake{Version: HandshakeVersion, Summary: summary}
}

// Negotiate validates the peer's handshake version and, if compatible,
// selects a protocol via merkle.SelectProtocol, applying the I8
// snapshot-safety guard. A version mismatch aborts the session with
// HandshakeVersionMismatch (spec §4.5, §7).
func Negotiate(local Handshake, remote Handshake) (merkle.Protocol, error) {
	if remote.Version != local.Version {
		return merkle.ProtocolNone, errors.NewWithKind(errors.KindHandshakeVersionMismatch,
			"incompatible sync protocol version",
			errors.NewKV("LocalVersion", local.Version), errors.NewKV("RemoteVersion", remote.Version))
	}

	selected := merkle.SelectProtocol(local.Summary, remote.Summary)
	return merkle.GuardSnapshotSafety(selected, local.Summary), nil
}

// NegotiationOutcome is the responder's reply to a ProtocolSelected
// message (spec §6, tag 11).
type NegotiationOutcome uint8

const (
	NegotiationAck NegotiationOutcome = iota
	NegotiationNack
)

// RespondToSelection lets the responder veto a protocol it does not, in
// fact, support (e.g. stale capability advertisement), replying
// ProtocolNack with a reason instead of silently proceeding.
func RespondToSelection(proposed merkle.Protocol, localSummary merkle.PeerSummary) (NegotiationOutcome, string) {
	guarded := merkle.GuardSnapshotSafety(proposed, localSummary)
	if guarded != proposed {
		return NegotiationNack, "snapshot protocol rejected for initialized peer"
	}
	return NegotiationAck, ""
}
