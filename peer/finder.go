package peer

import (
	"sort"

	libp2pPeer "github.com/libp2p/go-libp2p/core/peer"
)

// Strategy names one of the six candidate-gathering orders spec §4.6
// defines. Each sets the order in which the sources are consulted;
// every strategy consults all four sources that are set.
type Strategy uint8

const (
	StrategyBaseline Strategy = iota
	StrategyMeshFirst
	StrategyRecentFirst
	StrategyAddressBookFirst
	StrategyParallel
	StrategyHealthFiltered
)

// Sources abstracts the four candidate origins (spec §4.6). Mesh is the
// transport's live mesh-peer view; Recent is the LRU of last-successful
// peers; AddressBook is persisted known peers; Routing is a DHT lookup.
// All four are index lookups — no I/O — so Find stays O(1ms) as the
// spec requires.
type Sources struct {
	Mesh        func() []Record
	Recent      func() []Record
	AddressBook func() []Record
	Routing     func() []Record
}

// InSession reports whether a peer id is already part of the current
// sync session set, excluding it from fresh candidate selection.
type InSession func(id libp2pPeer.ID) bool

// Find composes, filters, and ranks dial candidates for a sync attempt
// (spec §4.6). backoffThreshold <= 0 uses DefaultBackoffThreshold.
func Find(sources Sources, strategy Strategy, inSession InSession, backoffThreshold int) []Record {
	if backoffThreshold <= 0 {
		backoffThreshold = DefaultBackoffThreshold
	}

	var ordered []func() []Record
	switch strategy {
	case StrategyMeshFirst:
		ordered = []func() []Record{sources.Mesh, sources.Recent, sources.AddressBook, sources.Routing}
	case StrategyRecentFirst:
		ordered = []func() []Record{sources.Recent, sources.Mesh, sources.AddressBook, sources.Routing}
	case StrategyAddressBookFirst:
		ordered = []func() []Record{sources.AddressBook, sources.Mesh, sources.Recent, sources.Routing}
	case StrategyParallel, StrategyHealthFiltered:
		// Source order doesn't matter once everything is gathered and
		// re-sorted by score. HealthFiltered shares Parallel's ordering
		// and adds no filter of its own: the backoff filter below applies
		// to every strategy.
		ordered = []func() []Record{sources.Mesh, sources.Recent, sources.AddressBook, sources.Routing}
	default: // StrategyBaseline
		ordered = []func() []Record{sources.Mesh, sources.Recent, sources.AddressBook, sources.Routing}
	}

	seen := map[libp2pPeer.ID]struct{}{}
	var candidates []Record
	for _, source := range ordered {
		if source == nil {
			continue
		}
		for _, rec := range source() {
			if _, dup := seen[rec.ID]; dup {
				continue
			}
			if rec.ConsecutiveFailures >= backoffThreshold {
				continue
			}
			if inSession != nil && inSession(rec.ID) {
				continue
			}
			seen[rec.ID] = struct{}{}
			candidates = append(candidates, rec)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score() < candidates[j].score()
	})
	return candidates
}
