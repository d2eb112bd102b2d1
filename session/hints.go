package session

import (
	"github.com/sourcenetwork/syncore/core"
)

// DeltaHints is the lightweight 40-byte hint every broadcast delta
// carries (spec §4.5.3).
type DeltaHints struct {
	RootHash    core.ID
	DeltaHeight uint64
}

// FullHints optionally rides alongside DeltaHints for richer
// divergence detection (spec §4.5.3).
type FullHints struct {
	EntityCount        int
	RecentDeltaCount   int
	DeltaBloomFilter   []byte
	OldestPendingParent core.ID
}

// ReactionKind is the receiver's decision upon seeing a delta's hints.
type ReactionKind uint8

const (
	ReactApplyNormally ReactionKind = iota
	ReactRequestMissingParents
	ReactRequestSnapshot
	ReactRequestHashSync
)

// missingParentGapThreshold is the "few parents missing" cutoff (spec
// §4.5.3: "gap <= threshold"); beyond it a snapshot is cheaper than
// walking individual parent ids.
const missingParentGapThreshold = 8

// React decides how to respond to an incoming delta's hints, given the
// number of its parents the DAG does not yet have, the receiver's own
// summary, and the sender's summary (spec §4.5.3). Gross count
// divergence is checked before the missing-parent gap: a peer whose
// entity counts differ by more than half needs a full hash-based
// resync regardless of how many of this one delta's parents happen to
// be missing.
func React(missingParentCount int, local, remote merkleSummary) ReactionKind {
	if missingParentCount == 0 {
		return ReactApplyNormally
	}

	diverge := 0.0
	if remote.EntityCount > 0 {
		diff := local.EntityCount - remote.EntityCount
		if diff < 0 {
			diff = -diff
		}
		diverge = float64(diff) / float64(remote.EntityCount)
	}
	if diverge > 0.5 {
		return ReactRequestHashSync
	}
	if missingParentCount <= missingParentGapThreshold {
		return ReactRequestMissingParents
	}
	return ReactRequestSnapshot
}

// merkleSummary is the narrow pair of counts React needs; kept local to
// avoid importing merkle.PeerSummary's full handshake shape just for
// two fields.
type merkleSummary struct {
	EntityCount int
}

// HashHeartbeat is the periodic (~30s) broadcast letting peers detect
// divergence without a delta flowing (spec §4.5.3, wire tag 51).
type HashHeartbeat struct {
	RootHash core.ID
	DAGHeads []core.ID
}

// DefaultHeartbeatIntervalSeconds is the spec's suggested cadence.
const DefaultHeartbeatIntervalSeconds = 30
