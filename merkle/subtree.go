package merkle

import "github.com/sourcenetwork/syncore/core"

// RunSubtreePrefetch implements the SubtreePrefetch protocol (spec
// §4.3): rather than recursing node by node, it fetches each divergent
// child's entire subtree in a single round. divergentIDs are the
// immediate children at which local and remote full_hash values
// disagree (identified by one shallow hash comparison round preceding
// this call, typically done by the orchestrator before selecting this
// protocol).
func RunSubtreePrefetch(local LocalStore, remote RemoteIndex, merge MergeCallback, divergentIDs []core.ID) ([]TreeLeafData, Stats, error) {
	var stats Stats
	var remoteActions []TreeLeafData

	for _, id := range divergentIDs {
		stats.RoundTrips++
		_, hasLocal, err := local.GetEntity(id)
		if err != nil {
			return nil, stats, err
		}
		_, hasRemote, err := remote.GetEntity(id)
		if err != nil {
			return nil, stats, err
		}

		switch {
		case hasLocal && !hasRemote:
			leaves, err := collectSubtreeLeaves(local, id)
			if err != nil {
				return nil, stats, err
			}
			remoteActions = append(remoteActions, leaves...)
			stats.EntitiesSynced += len(leaves)
		case hasRemote:
			if err := fetchAndApplySubtree(local, remote, merge, id, &stats); err != nil {
				return nil, stats, err
			}
		}
		stats.SubtreesFetched++
	}

	return remoteActions, stats, nil
}
