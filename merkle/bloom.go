package merkle

import (
	"hash/fnv"
	"math"

	"github.com/sourcenetwork/syncore/core"
)

// bloomSeed is mixed into the second hash so double hashing (Kirsch-
// Mitzenmacher) produces k independent-looking positions from two real
// FNV-1a evaluations instead of k distinct hash families (spec §4.3:
// "both sides MUST use the same hash family (FNV-1a)").
const bloomSeed = 0x9e3779b97f4a7c15

// BloomFilter is a fixed-size bitset addressed by FNV-1a double hashing,
// sized per spec §4.3: m = -n*ln(p)/ln(2)^2, k = (m/n)*ln(2). Both peers
// MUST compute identical bit positions for identical ids (P10); a
// third-party bloom implementation's internal hash is not something we
// can pin to this exact formula, so the bitset and hashing are
// hand-rolled here (see DESIGN.md).
type BloomFilter struct {
	bits []byte
	m    uint64
	k    int
	n    int
}

// NewBloomFilter sizes a filter for n expected entries at false-positive
// rate p.
func NewBloomFilter(n int, p float64) *BloomFilter {
	if n < 1 {
		n = 1
	}
	m := uint64(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
	if m < 8 {
		m = 8
	}
	k := int(math.Round((float64(m) / float64(n)) * math.Ln2))
	if k < 1 {
		k = 1
	}
	return &BloomFilter{bits: make([]byte, (m+7)/8), m: m, k: k, n: n}
}

// NewBloomFilterFromWire reconstructs a filter received over the wire
// (BloomFilterRequest: filter_bits, k, n) without resizing it.
func NewBloomFilterFromWire(bits []byte, m uint64, k int, n int) *BloomFilter {
	cp := make([]byte, len(bits))
	copy(cp, bits)
	return &BloomFilter{bits: cp, m: m, k: k, n: n}
}

// Bits, M, K, N expose the filter's wire representation.
func (f *BloomFilter) Bits() []byte { return f.bits }
func (f *BloomFilter) M() uint64    { return f.m }
func (f *BloomFilter) K() int       { return f.k }
func (f *BloomFilter) N() int       { return f.n }

func fnv1a(seed uint64, data []byte) uint64 {
	h := fnv.New64a()
	if seed != 0 {
		var seedBytes [8]byte
		for i := range seedBytes {
			seedBytes[i] = byte(seed >> (8 * i))
		}
		h.Write(seedBytes[:])
	}
	h.Write(data)
	return h.Sum64()
}

func (f *BloomFilter) positions(data []byte) []uint64 {
	h1 := fnv1a(0, data)
	h2 := fnv1a(bloomSeed, data)
	if h2%f.m == 0 {
		h2++
	}
	pos := make([]uint64, f.k)
	for i := 0; i < f.k; i++ {
		pos[i] = (h1 + uint64(i)*h2) % f.m
	}
	return pos
}

// Add sets the bits for id.
func (f *BloomFilter) Add(id core.ID) {
	for _, p := range f.positions(id[:]) {
		f.bits[p/8] |= 1 << (p % 8)
	}
}

// Has reports whether id is possibly present (false positives allowed,
// false negatives never).
func (f *BloomFilter) Has(id core.ID) bool {
	for _, p := range f.positions(id[:]) {
		if f.bits[p/8]&(1<<(p%8)) == 0 {
			return false
		}
	}
	return true
}

// BuildBloomFilter constructs and populates a filter over ids at false
// positive rate p (spec §4.3 BloomFilter protocol, sender side).
func BuildBloomFilter(ids []core.ID, p float64) *BloomFilter {
	f := NewBloomFilter(len(ids), p)
	for _, id := range ids {
		f.Add(id)
	}
	return f
}

// MissingFromFilter returns the subset of candidateIDs that are
// definitely absent from f — the responder's id set the sender's filter
// lacks, to be returned as TreeLeafData (spec §4.3 BloomFilter
// protocol, responder side). Every returned id is truly absent from the
// sender's set; an absent id that hits a false positive in f is not
// returned, so the result can be a strict subset of the ids the sender
// lacks.
func MissingFromFilter(f *BloomFilter, candidateIDs []core.ID) []core.ID {
	var missing []core.ID
	for _, id := range candidateIDs {
		if !f.Has(id) {
			missing = append(missing, id)
		}
	}
	return missing
}
