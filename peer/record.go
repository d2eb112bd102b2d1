// Package peer implements the peer finder and dial tracker (spec §4.6):
// composing dial candidates from four sources under six selection
// strategies, and racing concurrent dials with EMA RTT scoring and
// backoff bookkeeping.
package peer

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	libp2pPeer "github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// DefaultBackoffThreshold is the consecutive-failure count past which a
// peer is excluded from candidate selection until it recovers.
const DefaultBackoffThreshold = 5

// rttEMAAlpha is the exponential moving average weight given to a fresh
// RTT sample (spec §4.6: "EMA RTT = 0.8·prev + 0.2·sample").
const rttEMAAlpha = 0.2

// Record is everything the finder and dial tracker know about one peer.
type Record struct {
	ID                  libp2pPeer.ID
	Addrs               []multiaddr.Multiaddr
	RTTEstimate         time.Duration
	IsConnected         bool
	ConsecutiveFailures int
	LastSeen            time.Time
}

// score implements spec §4.6's selection formula: connected peers sort
// purely on RTT, disconnected peers are penalized by a flat 1000ms so a
// slow-but-connected peer is still preferred over an unknown cold dial.
func (r Record) score() time.Duration {
	if r.IsConnected {
		return r.RTTEstimate
	}
	return r.RTTEstimate + 1000*time.Millisecond
}

// Recent is the "recently-successful peers" candidate source: a
// bounded LRU of Records, evicting least-recently-used entries once
// full (spec §4.6 source 2).
type Recent struct {
	cache *lru.Cache[libp2pPeer.ID, Record]
}

// NewRecent builds a Recent cache holding up to capacity peer records.
func NewRecent(capacity int) (*Recent, error) {
	if capacity <= 0 {
		capacity = 256
	}
	c, err := lru.New[libp2pPeer.ID, Record](capacity)
	if err != nil {
		return nil, err
	}
	return &Recent{cache: c}, nil
}

// Remember records a successful dial or observation.
func (r *Recent) Remember(rec Record) {
	r.cache.Add(rec.ID, rec)
}

// Get returns the cached record for id, if any.
func (r *Recent) Get(id libp2pPeer.ID) (Record, bool) {
	return r.cache.Get(id)
}

// All returns every cached record, in no particular order.
func (r *Recent) All() []Record {
	out := make([]Record, 0, r.cache.Len())
	for _, id := range r.cache.Keys() {
		if rec, ok := r.cache.Peek(id); ok {
			out = append(out, rec)
		}
	}
	return out
}
