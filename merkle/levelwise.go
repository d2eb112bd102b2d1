package merkle

import "github.com/sourcenetwork/syncore/core"

// RunLevelWise implements the LevelWise protocol (spec §4.3):
// breadth-first traversal that fetches all divergent nodes at depth 1,
// then depth 2, and so on, rather than recursing depth-first. Suited to
// shallow, wide trees (max_depth ≤ 2).
func RunLevelWise(local LocalStore, remote RemoteIndex, merge MergeCallback, rootID core.ID) ([]TreeLeafData, Stats, error) {
	var stats Stats
	var remoteActions []TreeLeafData

	level := []core.ID{rootID}
	for len(level) > 0 {
		var next []core.ID
		for _, id := range level {
			stats.NodesChecked++
			localEntity, hasLocal, err := local.GetEntity(id)
			if err != nil {
				return nil, stats, err
			}
			remoteEntity, hasRemote, err := remote.GetEntity(id)
			if err != nil {
				return nil, stats, err
			}
			stats.RoundTrips++

			switch {
			case hasLocal && !hasRemote:
				leaves, err := collectSubtreeLeaves(local, id)
				if err != nil {
					return nil, stats, err
				}
				remoteActions = append(remoteActions, leaves...)
				stats.EntitiesSynced += len(leaves)
				continue
			case hasRemote && !hasLocal:
				if err := fetchAndApplySubtree(local, remote, merge, id, &stats); err != nil {
					return nil, stats, err
				}
				continue
			case !hasLocal && !hasRemote:
				continue
			}

			if localEntity.FullHash == remoteEntity.FullHash {
				stats.EntitiesSkipped++
				continue
			}

			if localEntity.OwnHash != remoteEntity.OwnHash {
				leaf, remoteLeaf, err := mergeOwnHashes(local, remote, merge, id, localEntity, remoteEntity)
				if err != nil {
					return nil, stats, err
				}
				stats.EntitiesSynced++
				if leaf != nil {
					if err := local.ApplyLeaf(*leaf); err != nil {
						return nil, stats, err
					}
				}
				if remoteLeaf != nil {
					remoteActions = append(remoteActions, *remoteLeaf)
				}
			}

			remoteChildren := map[core.ID]struct{}{}
			for _, c := range remoteEntity.Children {
				remoteChildren[c.ID] = struct{}{}
				next = append(next, c.ID)
			}
			for _, c := range localEntity.Children {
				if _, ok := remoteChildren[c.ID]; !ok {
					leaves, err := collectSubtreeLeaves(local, c.ID)
					if err != nil {
						return nil, stats, err
					}
					remoteActions = append(remoteActions, leaves...)
					stats.EntitiesSynced += len(leaves)
				}
			}
		}
		level = next
		if len(next) > 0 {
			stats.LevelsSynced++
		}
	}

	return remoteActions, stats, nil
}

func mergeOwnHashes(local LocalStore, remote RemoteIndex, merge MergeCallback, id core.ID, localEntity, remoteEntity core.Entity) (*TreeLeafData, *TreeLeafData, error) {
	localPayload, err := local.GetPayload(id)
	if err != nil {
		return nil, nil, err
	}
	remotePayload, err := remote.GetPayload(id)
	if err != nil {
		return nil, nil, err
	}

	driver := pickMergeMetadata(localEntity, remoteEntity)
	mergedPayload, err := merge(crdtTypeOf(driver), localPayload, remotePayload, localEntity.Metadata.UpdatedAt, remoteEntity.Metadata.UpdatedAt)
	if err != nil {
		return nil, nil, err
	}

	meta := driver.Metadata
	meta.UpdatedAt = localEntity.Metadata.UpdatedAt
	if remoteEntity.Metadata.UpdatedAt.After(meta.UpdatedAt) {
		meta.UpdatedAt = remoteEntity.Metadata.UpdatedAt
	}

	var localLeaf, remoteLeaf *TreeLeafData
	if string(mergedPayload) != string(localPayload) {
		localLeaf = &TreeLeafData{ID: id, Value: mergedPayload, Metadata: meta}
	}
	if string(mergedPayload) != string(remotePayload) {
		remoteLeaf = &TreeLeafData{ID: id, Value: mergedPayload, Metadata: meta}
	}
	return localLeaf, remoteLeaf, nil
}
