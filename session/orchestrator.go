package session

import (
	"github.com/sourcenetwork/syncore/core"
	"github.com/sourcenetwork/syncore/errors"
	"github.com/sourcenetwork/syncore/hlc"
	"github.com/sourcenetwork/syncore/merkle"
)

// BloomTransport is the extra wire round trip BloomFilter needs beyond
// merkle.LocalStore/RemoteIndex: listing our own ids to build a filter
// over, and asking the peer which of its ids that filter misses (spec
// §4.3 BloomFilter protocol).
type BloomTransport interface {
	LocalEntityIDs(rootID core.ID) ([]core.ID, error)
	RemoteMissingGivenFilter(filter *merkle.BloomFilter) ([]core.ID, error)
}

// SnapshotTransport is the extra wire round trip Snapshot/
// CompressedSnapshot need: pulling a paginated, possibly-compressed
// snapshot from the peer and learning the root hash it should verify
// against (spec §4.4).
type SnapshotTransport interface {
	FetchSnapshotPages(rootID core.ID, compressed bool) ([]merkle.SnapshotPage, error)
	RemoteRootHash() core.ID
}

// Driver runs one negotiated protocol to completion for a session,
// returning the leaves the peer still needs pushed back (nil for the
// pull-based state-transfer protocols) and the run's stats. local and
// remote are always distinct values — local is our own store, remote
// proxies the peer over the wire (node.RemotePeer supplies the concrete
// remote).
type Driver struct {
	local   merkle.LocalStore
	remote  merkle.RemoteIndex
	merge   merkle.MergeCallback
	bloom   BloomTransport
	snap    SnapshotTransport

	sess      *Session
	installer merkle.CheckpointInstaller
}

// NewDriver builds a Driver. bloom and snap may be nil if the caller
// never negotiates those protocols (e.g. a node that never advertises
// Snapshot support need not implement SnapshotTransport).
func NewDriver(local merkle.LocalStore, remote merkle.RemoteIndex, merge merkle.MergeCallback, bloom BloomTransport, snap SnapshotTransport) *Driver {
	return &Driver{local: local, remote: remote, merge: merge, bloom: bloom, snap: snap}
}

// BindSession attaches the session whose BoundaryDAGHeads (recorded from
// the peer's handshake by RecordHandshake) anchor a Snapshot/
// CompressedSnapshot transfer run by this Driver. Drivers that never
// negotiate those protocols need not call this.
func (d *Driver) BindSession(sess *Session) {
	d.sess = sess
}

// BindCheckpointInstaller attaches the DAG surface runSnapshot installs
// boundary checkpoints into once a snapshot verifies (spec §4.4, I9's
// companion P9).
func (d *Driver) BindCheckpointInstaller(installer merkle.CheckpointInstaller) {
	d.installer = installer
}

// RunNegotiated negotiates a protocol from local/remote handshakes,
// records the peer's handshake on the bound session so a Snapshot
// transfer can install checkpoint markers for its dag_heads, and runs
// the negotiated protocol.
func (d *Driver) RunNegotiated(local, remote Handshake, rootID core.ID, divergentIDs []core.ID) (merkle.Protocol, []merkle.TreeLeafData, merkle.Stats, error) {
	protocol, err := Negotiate(local, remote)
	if err != nil {
		return protocol, nil, merkle.Stats{}, err
	}
	if d.sess != nil {
		d.sess.RecordHandshake(remote)
	}
	leaves, stats, err := d.Run(protocol, rootID, divergentIDs)
	return protocol, leaves, stats, err
}

// Run dispatches to the merkle function (or bloom/snapshot round trip)
// matching the negotiated protocol (spec §4.3, §4.5.1). divergentIDs is
// only consulted for SubtreePrefetch; rootID anchors every other
// protocol.
func (d *Driver) Run(protocol merkle.Protocol, rootID core.ID, divergentIDs []core.ID) ([]merkle.TreeLeafData, merkle.Stats, error) {
	switch protocol {
	case merkle.ProtocolNone:
		return nil, merkle.Stats{}, nil
	case merkle.ProtocolHashComparison:
		return merkle.CompareTrees(d.local, d.remote, d.merge, rootID)
	case merkle.ProtocolSubtreePrefetch:
		return merkle.RunSubtreePrefetch(d.local, d.remote, d.merge, divergentIDs)
	case merkle.ProtocolLevelWise:
		return merkle.RunLevelWise(d.local, d.remote, d.merge, rootID)
	case merkle.ProtocolBloomFilter:
		return d.runBloomFilter(rootID)
	case merkle.ProtocolSnapshot:
		return nil, merkle.Stats{}, d.runSnapshot(rootID, false)
	case merkle.ProtocolCompressedSnapshot:
		return nil, merkle.Stats{}, d.runSnapshot(rootID, true)
	case merkle.ProtocolDeltaSync:
		// Not a tree protocol: the caller admits buffered deltas through
		// the DAG directly (spec §4.5.1 rule 2 fallback).
		return nil, merkle.Stats{}, nil
	default:
		return nil, merkle.Stats{}, errors.New("unhandled sync protocol", errors.NewKV("Protocol", protocol.String()))
	}
}

// runBloomFilter implements the BloomFilter protocol (spec §4.3): build
// a filter over our own ids, ask the peer which of its ids are missing
// from it, then fetch and merge each one.
func (d *Driver) runBloomFilter(rootID core.ID) ([]merkle.TreeLeafData, merkle.Stats, error) {
	var stats merkle.Stats
	if d.bloom == nil {
		return nil, stats, errors.New("bloom filter protocol selected without a BloomTransport")
	}

	localIDs, err := d.bloom.LocalEntityIDs(rootID)
	if err != nil {
		return nil, stats, err
	}
	filter := merkle.BuildBloomFilter(localIDs, 0.01)
	stats.FilterSize = len(filter.Bits())
	stats.RoundTrips++

	missing, err := d.bloom.RemoteMissingGivenFilter(filter)
	if err != nil {
		return nil, stats, err
	}
	stats.RoundTrips++

	for _, id := range missing {
		localEntity, hasLocal, err := d.local.GetEntity(id)
		if err != nil {
			return nil, stats, err
		}
		remoteEntity, hasRemote, err := d.remote.GetEntity(id)
		if err != nil {
			return nil, stats, err
		}
		if !hasRemote {
			continue
		}
		if hasLocal && localEntity.FullHash == remoteEntity.FullHash {
			stats.EntitiesSkipped++
			continue
		}

		remotePayload, err := d.remote.GetPayload(id)
		if err != nil {
			return nil, stats, err
		}

		var localPayload []byte
		var localTS hlc.Timestamp
		if hasLocal {
			localPayload, err = d.local.GetPayload(id)
			if err != nil {
				return nil, stats, err
			}
			localTS = localEntity.Metadata.UpdatedAt
		}

		crdtType := core.Builtin(core.CRDTLwwRegister)
		if remoteEntity.Metadata.CRDTType.HasValue() {
			crdtType = remoteEntity.Metadata.CRDTType.Value()
		}

		merged, err := d.merge(crdtType, localPayload, remotePayload, localTS, remoteEntity.Metadata.UpdatedAt)
		if err != nil {
			return nil, stats, err
		}

		meta := remoteEntity.Metadata
		if err := d.local.ApplyLeaf(merkle.TreeLeafData{ID: id, Value: merged, Metadata: meta}); err != nil {
			return nil, stats, err
		}
		stats.EntitiesSynced++
	}

	return nil, stats, nil
}

// runSnapshot implements Snapshot/CompressedSnapshot (spec §4.4): pull
// every page, decompress if needed, verify the whole tree, then apply it
// entity by entity.
func (d *Driver) runSnapshot(rootID core.ID, compressed bool) error {
	if d.snap == nil {
		return errors.New("snapshot protocol selected without a SnapshotTransport")
	}

	pages, err := d.snap.FetchSnapshotPages(rootID, compressed)
	if err != nil {
		return err
	}
	if compressed {
		for i, p := range pages {
			for j, entry := range p.Entries {
				raw, err := merkle.DecompressPage(entry.Payload)
				if err != nil {
					return errors.WrapWithKind(errors.KindSnapshotVerification, "decompress snapshot page entry", err)
				}
				pages[i].Entries[j].Payload = raw
			}
		}
	}

	boundaryRootHash := d.snap.RemoteRootHash()
	if err := merkle.ApplySnapshot(d.local, rootID, pages, boundaryRootHash); err != nil {
		return err
	}

	if d.installer != nil && d.sess != nil && len(d.sess.BoundaryDAGHeads) > 0 {
		merkle.InstallSnapshotBoundary(d.installer, d.sess.BoundaryDAGHeads, boundaryRootHash)
	}
	return nil
}
