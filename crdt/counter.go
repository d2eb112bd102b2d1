package crdt

import "github.com/sourcenetwork/syncore/hlc"

// CounterSlot tracks one executor's contribution to a PN-counter (spec
// §4.2), grounded on the pointwise-max merge of
// cshekharsharma-go-crdt/gcounter.go and pn_counter.go's P/N split.
type CounterSlot struct {
	Positive uint64
	Negative uint64
}

// CounterState is the wire/storage representation: executor_id -> slot.
type CounterState map[string]CounterSlot

// Value returns the counter's current total: sum(positive) - sum(negative).
func (s CounterState) Value() int64 {
	var total int64
	for _, slot := range s {
		total += int64(slot.Positive) - int64(slot.Negative)
	}
	return total
}

// MergeCounter merges two Counter payloads by taking, per executor id, the
// pointwise maximum of positive and negative counts independently — the
// PNCounter join-semilattice merge (monotonic, commutative, associative,
// idempotent; I6).
func MergeCounter(localBytes, remoteBytes []byte, _, _ hlc.Timestamp) ([]byte, error) {
	var local, remote CounterState
	if len(localBytes) > 0 {
		if err := decodeCBOR(localBytes, &local); err != nil {
			return nil, err
		}
	}
	if len(remoteBytes) > 0 {
		if err := decodeCBOR(remoteBytes, &remote); err != nil {
			return nil, err
		}
	}
	if local == nil {
		local = CounterState{}
	}

	merged := make(CounterState, len(local))
	for id, slot := range local {
		merged[id] = slot
	}
	for id, rslot := range remote {
		lslot := merged[id]
		if rslot.Positive > lslot.Positive {
			lslot.Positive = rslot.Positive
		}
		if rslot.Negative > lslot.Negative {
			lslot.Negative = rslot.Negative
		}
		merged[id] = lslot
	}
	return encodeCBOR(merged)
}
