package crdt

import "github.com/sourcenetwork/syncore/hlc"

// MergeUnorderedMap and MergeUnorderedSet merge the container's own sparse
// descriptor payload (spec §4.2: "the container payload itself is sparse
// metadata; entries are separate entities"). The tree comparison engine
// (merkle package) recurses into children to reconcile entries by id (I4);
// at the container level there is nothing but the descriptor bytes
// themselves to reconcile, so last-writer-wins is the correct (and only
// sensible) rule here.
func MergeUnorderedMap(localBytes, remoteBytes []byte, localTS, remoteTS hlc.Timestamp) ([]byte, error) {
	return MergeLwwRegister(localBytes, remoteBytes, localTS, remoteTS)
}

// MergeUnorderedSet is the UnorderedSet analogue of MergeUnorderedMap.
func MergeUnorderedSet(localBytes, remoteBytes []byte, localTS, remoteTS hlc.Timestamp) ([]byte, error) {
	return MergeLwwRegister(localBytes, remoteBytes, localTS, remoteTS)
}
