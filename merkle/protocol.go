package merkle

import "github.com/sourcenetwork/syncore/core"

// Protocol identifies one of the negotiated tree sync strategies (spec
// §4.3). None means the peers are already in sync. DeltaSync is not one
// of the five tree protocols proper; it is the fallback when a fresh
// peer's counterpart lacks Snapshot support (§4.5.1 rule 2).
type Protocol uint8

const (
	ProtocolNone Protocol = iota
	ProtocolHashComparison
	ProtocolBloomFilter
	ProtocolSubtreePrefetch
	ProtocolLevelWise
	ProtocolSnapshot
	ProtocolCompressedSnapshot
	ProtocolDeltaSync
)

func (p Protocol) String() string {
	switch p {
	case ProtocolNone:
		return "None"
	case ProtocolHashComparison:
		return "HashComparison"
	case ProtocolBloomFilter:
		return "BloomFilter"
	case ProtocolSubtreePrefetch:
		return "SubtreePrefetch"
	case ProtocolLevelWise:
		return "LevelWise"
	case ProtocolSnapshot:
		return "Snapshot"
	case ProtocolCompressedSnapshot:
		return "CompressedSnapshot"
	case ProtocolDeltaSync:
		return "DeltaSync"
	default:
		return "Unknown"
	}
}

// PeerSummary is the handshake payload each side exchanges to negotiate
// a protocol (spec §4.5, SyncHandshake).
type PeerSummary struct {
	RootHash           core.ID
	HasState           bool
	EntityCount        int
	MaxDepth           int
	DAGHeads           []core.ID
	SupportedProtocols []Protocol
}

func supports(s PeerSummary, p Protocol) bool {
	for _, sp := range s.SupportedProtocols {
		if sp == p {
			return true
		}
	}
	return false
}

// DivergenceRatio is |local.entity_count - remote.entity_count| /
// max(remote.entity_count, 1) (spec §4.5.1).
func DivergenceRatio(local, remote PeerSummary) float64 {
	diff := local.EntityCount - remote.EntityCount
	if diff < 0 {
		diff = -diff
	}
	denom := remote.EntityCount
	if denom < 1 {
		denom = 1
	}
	return float64(diff) / float64(denom)
}

// SelectProtocol implements the ordered protocol selection rules of
// spec §4.5.1; first match wins. local is the perspective of the node
// running selection (typically the sync requester).
func SelectProtocol(local, remote PeerSummary) Protocol {
	if local.RootHash == remote.RootHash {
		return ProtocolNone
	}
	if !local.HasState {
		if remote.EntityCount > 100 && supports(remote, ProtocolCompressedSnapshot) {
			return ProtocolCompressedSnapshot
		}
		if supports(remote, ProtocolSnapshot) {
			return ProtocolSnapshot
		}
		return ProtocolDeltaSync
	}

	// I8: local already has state, Snapshot/CompressedSnapshot are
	// excluded from every rule below.
	divergence := DivergenceRatio(local, remote)

	if divergence > 0.5 && remote.EntityCount > 20 {
		return ProtocolHashComparison
	}
	if local.MaxDepth > 3 && divergence < 0.2 {
		if supports(remote, ProtocolSubtreePrefetch) {
			return ProtocolSubtreePrefetch
		}
		return ProtocolHashComparison
	}
	if remote.EntityCount > 50 && divergence < 0.1 {
		if supports(remote, ProtocolBloomFilter) {
			return ProtocolBloomFilter
		}
	}
	if local.MaxDepth <= 2 {
		if supports(remote, ProtocolLevelWise) {
			return ProtocolLevelWise
		}
	}
	return ProtocolHashComparison
}

// GuardSnapshotSafety enforces invariant I8: Snapshot/CompressedSnapshot
// must never be used against a peer that already has state, even if
// explicitly configured. Callers that accept an operator-supplied
// protocol override MUST run it through this guard before acting on it.
func GuardSnapshotSafety(p Protocol, local PeerSummary) Protocol {
	if local.HasState && (p == ProtocolSnapshot || p == ProtocolCompressedSnapshot) {
		return ProtocolHashComparison
	}
	return p
}
