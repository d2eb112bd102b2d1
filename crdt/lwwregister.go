package crdt

import (
	"bytes"

	"github.com/sourcenetwork/syncore/hlc"
)

// MergeLwwRegister implements the Last-Writer-Wins merge rule (spec §4.2):
// higher HLC timestamp wins; ties break by node_id lexicographic order,
// then by payload bytes. Grounded on the teacher's
// core/crdt/lwwreg.go LWWRegister.setValue priority comparison, adapted
// from a priority-counter scheme to a full HLC comparison.
func MergeLwwRegister(localBytes, remoteBytes []byte, localTS, remoteTS hlc.Timestamp) ([]byte, error) {
	switch cmp := localTS.Compare(remoteTS); {
	case cmp > 0:
		return localBytes, nil
	case cmp < 0:
		return remoteBytes, nil
	default:
		if bytes.Compare(remoteBytes, localBytes) >= 0 {
			return remoteBytes, nil
		}
		return localBytes, nil
	}
}
