package merkle

import (
	"github.com/sourcenetwork/syncore/core"
	"github.com/sourcenetwork/syncore/hlc"
)

// LocalStore is the narrow slice of the key-value store contract (§6)
// the tree engine needs on its own side: entity index reads, payload
// reads, and an atomic write-back for a merged leaf.
type LocalStore interface {
	GetEntity(id core.ID) (core.Entity, bool, error)
	GetPayload(id core.ID) ([]byte, error)
	ApplyLeaf(leaf TreeLeafData) error
}

// RemoteIndex is the engine's view of the peer. Implementations proxy
// these calls over the wire (RequestEntities/EntitiesResponse, spec
// §6); in tests it is backed directly by a second in-memory store.
type RemoteIndex interface {
	GetEntity(id core.ID) (core.Entity, bool, error)
	GetPayload(id core.ID) ([]byte, error)
}

// MergeCallback dispatches a CRDT merge (crdt.MergeByCRDTType bound to
// a registry). Kept as a function type so this package does not import
// crdt, avoiding a dependency cycle with session/node wiring that needs
// both.
type MergeCallback func(t core.CRDTType, localBytes, remoteBytes []byte, localTS, remoteTS hlc.Timestamp) ([]byte, error)

// Stats accumulates the metrics every protocol emits (spec §4.3).
type Stats struct {
	RoundTrips      int
	EntitiesSynced  int
	EntitiesSkipped int
	BytesReceived   int
	BytesSent       int

	// Protocol-specific counters; zero unless the protocol that ran
	// populates them.
	FilterSize      int
	NodesChecked    int
	SubtreesFetched int
	LevelsSynced    int
}

func crdtTypeOf(e core.Entity) core.CRDTType {
	if e.Metadata.CRDTType.HasValue() {
		return e.Metadata.CRDTType.Value()
	}
	return core.Builtin(core.CRDTLwwRegister)
}

// pickMergeMetadata picks the "smaller" (earlier-updated) of the two
// sides' metadata to drive dispatch, per spec §4.3 — both sides should
// already agree on crdt_type for a correctly-constructed tree, so this
// only matters as a defensive tie-break when one side's metadata is
// stale.
func pickMergeMetadata(local, remote core.Entity) core.Entity {
	if local.Metadata.UpdatedAt.Compare(remote.Metadata.UpdatedAt) <= 0 {
		return local
	}
	return remote
}

// CompareTrees implements the HashComparison protocol (spec §4.3): a
// bidirectional recursive own_hash/full_hash comparison starting at
// rootID. Merges that change the local copy are applied immediately via
// local.ApplyLeaf; leaves the remote side needs are returned for the
// caller to push back over the wire (EntitiesResponse).
func CompareTrees(local LocalStore, remote RemoteIndex, merge MergeCallback, rootID core.ID) ([]TreeLeafData, Stats, error) {
	var stats Stats
	var remoteActions []TreeLeafData

	var walk func(id core.ID) error
	walk = func(id core.ID) error {
		stats.NodesChecked++
		localEntity, hasLocal, err := local.GetEntity(id)
		if err != nil {
			return err
		}
		remoteEntity, hasRemote, err := remote.GetEntity(id)
		if err != nil {
			return err
		}
		stats.RoundTrips++

		switch {
		case hasLocal && !hasRemote:
			leaves, err := collectSubtreeLeaves(local, id)
			if err != nil {
				return err
			}
			remoteActions = append(remoteActions, leaves...)
			stats.EntitiesSynced += len(leaves)
			return nil
		case hasRemote && !hasLocal:
			return fetchAndApplySubtree(local, remote, merge, id, &stats)
		case !hasLocal && !hasRemote:
			return nil
		}

		if localEntity.FullHash == remoteEntity.FullHash {
			stats.EntitiesSkipped++
			return nil
		}

		if localEntity.OwnHash != remoteEntity.OwnHash {
			leaf, remoteLeaf, err := mergeOwnHashes(local, remote, merge, id, localEntity, remoteEntity)
			if err != nil {
				return err
			}
			stats.EntitiesSynced++
			if leaf != nil {
				if err := local.ApplyLeaf(*leaf); err != nil {
					return err
				}
			}
			if remoteLeaf != nil {
				remoteActions = append(remoteActions, *remoteLeaf)
			}
		}

		localChildren := map[core.ID]core.Child{}
		for _, c := range localEntity.Children {
			localChildren[c.ID] = c
		}
		remoteChildren := map[core.ID]core.Child{}
		for _, c := range remoteEntity.Children {
			remoteChildren[c.ID] = c
		}

		for childID := range localChildren {
			if _, ok := remoteChildren[childID]; ok {
				if err := walk(childID); err != nil {
					return err
				}
			} else {
				leaves, err := collectSubtreeLeaves(local, childID)
				if err != nil {
					return err
				}
				remoteActions = append(remoteActions, leaves...)
				stats.EntitiesSynced += len(leaves)
			}
		}
		for childID := range remoteChildren {
			if _, ok := localChildren[childID]; !ok {
				if err := fetchAndApplySubtree(local, remote, merge, childID, &stats); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(rootID); err != nil {
		return nil, stats, err
	}
	return remoteActions, stats, nil
}

// collectSubtreeLeaves walks the local tree rooted at id, gathering
// every entity's payload+metadata as a TreeLeafData for the caller to
// push to a peer that lacks the subtree entirely.
func collectSubtreeLeaves(local LocalStore, id core.ID) ([]TreeLeafData, error) {
	entity, ok, err := local.GetEntity(id)
	if err != nil || !ok {
		return nil, err
	}
	payload, err := local.GetPayload(id)
	if err != nil {
		return nil, err
	}
	leaves := []TreeLeafData{{ID: id, Value: payload, Metadata: entity.Metadata}}
	for _, c := range entity.Children {
		childLeaves, err := collectSubtreeLeaves(local, c.ID)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, childLeaves...)
	}
	return leaves, nil
}

// fetchAndApplySubtree walks the remote tree rooted at id, merging each
// entity into the local store (the local side has nothing at this id,
// so merge degenerates to "take remote").
func fetchAndApplySubtree(local LocalStore, remote RemoteIndex, merge MergeCallback, id core.ID, stats *Stats) error {
	entity, ok, err := remote.GetEntity(id)
	if err != nil || !ok {
		return err
	}
	payload, err := remote.GetPayload(id)
	if err != nil {
		return err
	}
	stats.BytesReceived += len(payload)

	merged, err := merge(crdtTypeOf(entity), nil, payload, hlc.Timestamp{}, entity.Metadata.UpdatedAt)
	if err != nil {
		return err
	}
	stats.EntitiesSynced++
	if err := local.ApplyLeaf(TreeLeafData{ID: id, Value: merged, Metadata: entity.Metadata}); err != nil {
		return err
	}
	for _, c := range entity.Children {
		if err := fetchAndApplySubtree(local, remote, merge, c.ID, stats); err != nil {
			return err
		}
	}
	return nil
}
