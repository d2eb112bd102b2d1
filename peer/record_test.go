package peer_test

import (
	"testing"

	libp2pPeer "github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/syncore/peer"
)

func TestRecent_RememberAndGet(t *testing.T) {
	r, err := peer.NewRecent(2)
	require.NoError(t, err)

	r.Remember(peer.Record{ID: libp2pPeer.ID("p1")})
	got, ok := r.Get(libp2pPeer.ID("p1"))
	require.True(t, ok)
	require.Equal(t, libp2pPeer.ID("p1"), got.ID)

	_, ok = r.Get(libp2pPeer.ID("missing"))
	require.False(t, ok)
}

func TestRecent_EvictsLeastRecentlyUsedPastCapacity(t *testing.T) {
	r, err := peer.NewRecent(1)
	require.NoError(t, err)

	r.Remember(peer.Record{ID: libp2pPeer.ID("p1")})
	r.Remember(peer.Record{ID: libp2pPeer.ID("p2")})

	_, ok := r.Get(libp2pPeer.ID("p1"))
	require.False(t, ok, "capacity-1 cache should have evicted p1 once p2 was added")
	_, ok = r.Get(libp2pPeer.ID("p2"))
	require.True(t, ok)
}
