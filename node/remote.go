package node

import (
	"context"

	"github.com/sourcenetwork/syncore/core"
	"github.com/sourcenetwork/syncore/errors"
	"github.com/sourcenetwork/syncore/merkle"
	"github.com/sourcenetwork/syncore/transport"
	"github.com/sourcenetwork/syncore/wire"
)

// RemotePeer drives the wire protocol over one open transport.Stream,
// implementing merkle.RemoteIndex and session's BloomTransport/
// SnapshotTransport by translating each call into a request/response
// round trip (spec §6 wire table). A RemotePeer is scoped to a single
// sync session; the Manager creates one per negotiated session.
//
// transport.Stream already frames messages (ReadMsg/WriteMsg operate
// on whole message bodies), so RemotePeer only needs to prefix each
// body with its one-byte wire.Tag rather than reach for wire's own
// varint length framing, which exists for transports that hand back a
// raw byte stream instead.
type RemotePeer struct {
	stream transport.Stream
	local  *Engine

	remoteRootHash core.ID
	cache          map[core.ID]merkle.TreeLeafData
}

// NewRemotePeer builds a RemotePeer over an already-open stream. local
// is consulted for the BloomTransport.LocalEntityIDs half of the
// filter exchange, which never touches the wire.
func NewRemotePeer(stream transport.Stream, local *Engine, remoteRootHash core.ID) *RemotePeer {
	return &RemotePeer{stream: stream, local: local, remoteRootHash: remoteRootHash, cache: make(map[core.ID]merkle.TreeLeafData)}
}

// RemoteRootHash implements session.SnapshotTransport.
func (r *RemotePeer) RemoteRootHash() core.ID { return r.remoteRootHash }

// LocalEntityIDs implements session.BloomTransport by delegating to the
// local engine; building the sender-side filter never needs the wire.
func (r *RemotePeer) LocalEntityIDs(rootID core.ID) ([]core.ID, error) {
	return r.local.LocalEntityIDs(rootID)
}

// send CBOR-encodes body, prefixes it with tag, and writes it to the
// stream.
func (r *RemotePeer) send(ctx context.Context, tag wire.Tag, body any) error {
	encoded, err := wire.EncodeBody(body)
	if err != nil {
		return errors.Wrap("encode wire body", err)
	}
	framed := append([]byte{byte(tag)}, encoded...)
	return r.stream.WriteMsg(ctx, framed)
}

// recv reads one message off the stream and returns its tag and body,
// stripping the one-byte prefix send wrote.
func (r *RemotePeer) recv(ctx context.Context) (wire.Tag, []byte, error) {
	raw, err := r.stream.ReadMsg(ctx)
	if err != nil {
		return 0, nil, errors.Wrap("read wire message", err)
	}
	if len(raw) < 1 {
		return 0, nil, errors.New("empty wire message")
	}
	return wire.Tag(raw[0]), raw[1:], nil
}

// request sends a tagged message and waits for one reply, failing if
// the reply doesn't carry wantTag.
func (r *RemotePeer) request(ctx context.Context, sendTag wire.Tag, body any, wantTag wire.Tag, out any) error {
	if err := r.send(ctx, sendTag, body); err != nil {
		return err
	}
	gotTag, raw, err := r.recv(ctx)
	if err != nil {
		return err
	}
	if gotTag != wantTag {
		return errors.New("unexpected wire tag in reply", errors.NewKV("Want", wantTag), errors.NewKV("Got", gotTag))
	}
	return wire.DecodeBody(raw, out)
}

// GetEntity implements merkle.RemoteIndex.
func (r *RemotePeer) GetEntity(id core.ID) (core.Entity, bool, error) {
	leaf, ok, err := r.leafFor(id)
	if err != nil || !ok {
		return core.Entity{}, ok, err
	}
	ownHash := core.ComputeOwnHash(leaf.Value)
	return core.Entity{
		ID:       id,
		OwnHash:  ownHash,
		FullHash: core.ComputeFullHash(ownHash, nil),
		Metadata: leaf.Metadata,
	}, true, nil
}

// GetPayload implements merkle.RemoteIndex.
func (r *RemotePeer) GetPayload(id core.ID) ([]byte, error) {
	leaf, ok, err := r.leafFor(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("remote entity not found", errors.NewKV("EntityID", id.String()))
	}
	return leaf.Value, nil
}

func (r *RemotePeer) leafFor(id core.ID) (merkle.TreeLeafData, bool, error) {
	if leaf, ok := r.cache[id]; ok {
		return leaf, true, nil
	}

	ctx := context.Background()
	var resp wire.EntitiesResponse
	if err := r.request(ctx, wire.TagRequestEntities, wire.RequestEntities{IDs: []core.ID{id}}, wire.TagEntitiesResponse, &resp); err != nil {
		return merkle.TreeLeafData{}, false, err
	}
	for _, leaf := range resp.Leaves {
		r.cache[leaf.ID] = leaf
	}
	leaf, ok := r.cache[id]
	return leaf, ok, nil
}

// RemoteMissingGivenFilter implements session.BloomTransport: sends
// our filter and returns the leaves the peer's set difference says we
// are missing (spec §4.3 BloomFilter protocol).
func (r *RemotePeer) RemoteMissingGivenFilter(filter *merkle.BloomFilter) ([]core.ID, error) {
	ctx := context.Background()
	var resp wire.BloomFilterResponse
	req := wire.BloomFilterRequest{FilterBits: filter.Bits(), K: filter.K(), N: filter.N()}
	if err := r.request(ctx, wire.TagBloomFilterRequest, req, wire.TagBloomFilterResponse, &resp); err != nil {
		return nil, err
	}
	ids := make([]core.ID, 0, len(resp.Leaves))
	for _, leaf := range resp.Leaves {
		r.cache[leaf.ID] = leaf
		ids = append(ids, leaf.ID)
	}
	return ids, nil
}

// FetchSnapshotPages implements session.SnapshotTransport: requests a
// (possibly compressed) snapshot and reads pages until total_pages are
// seen (spec §4.4).
func (r *RemotePeer) FetchSnapshotPages(rootID core.ID, compressed bool) ([]merkle.SnapshotPage, error) {
	ctx := context.Background()
	if err := r.send(ctx, wire.TagRequestSnapshot, wire.RequestSnapshot{Compressed: compressed, RootID: rootID}); err != nil {
		return nil, err
	}

	var pages []merkle.SnapshotPage
	for {
		tag, raw, err := r.recv(ctx)
		if err != nil {
			return nil, err
		}
		if tag != wire.TagSnapshotPage {
			return nil, errors.New("unexpected wire tag awaiting snapshot page", errors.NewKV("Tag", tag))
		}
		var msg wire.SnapshotPageMsg
		if err := wire.DecodeBody(raw, &msg); err != nil {
			return nil, errors.Wrap("decode snapshot page", err)
		}
		r.remoteRootHash = msg.RootHash
		pages = append(pages, msg.SnapshotPage)
		if msg.PageIndex+1 >= msg.TotalPages {
			break
		}
	}
	return pages, nil
}
