// Package transport declares the narrow external-collaborator contract
// the sync core consumes for peer connectivity (spec §6, "Transport
// contract"). It intentionally stops at interfaces: the concrete dial
// surface (gRPC server/client, libp2p host) is owned by whatever
// process wires a node together, the way the teacher's net.Peer wires
// a libp2p host.Host and routing.Routing into its own server rather
// than the core DB package depending on libp2p directly.
package transport

import (
	"context"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/routing"
	"google.golang.org/grpc"
)

// Stream is a full-duplex, length-prefixed-framed byte stream between
// two negotiated peers (spec §6: "yields once both ends have
// negotiated").
type Stream interface {
	ReadMsg(ctx context.Context) ([]byte, error)
	WriteMsg(ctx context.Context, body []byte) error
	Close() error
}

// Transport is the seam the sync core treats as external: opening
// streams, discovering peers through two distinct channels (mesh
// membership vs. DHT routing), and feeding the event bridge.
type Transport interface {
	OpenStream(ctx context.Context, peerID peer.ID) (Stream, error)
	ListMeshPeers(ctx context.Context, contextID string) ([]peer.ID, error)
	RoutingLookup(ctx context.Context, contextID string) ([]peer.ID, error)
	DispatchEvent(ctx context.Context, event any)
}

// HostInfo names the minimal libp2p surface a Transport implementation
// is expected to be built from — host identity, DHT-backed routing,
// and the gRPC dial options a concrete implementation threads through
// to grpc.Dial, matching the teacher's NewPeer(ctx, db, h, dht, ps,
// tcpAddr, serverOptions, dialOptions) constructor shape.
type HostInfo struct {
	Host        host.Host
	Routing     routing.Routing
	DialOptions []grpc.DialOption
}
