package merkle

import (
	"bytes"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/sourcenetwork/syncore/core"
	"github.com/sourcenetwork/syncore/errors"
)

// SnapshotEntry is one entity carried in a snapshot page: enough to
// reconstruct the entity and verify it independently of the rest of the
// page (spec §4.4: "each page is independently verifiable").
type SnapshotEntry struct {
	ID       core.ID
	Payload  []byte
	Metadata core.Metadata
	Children []core.Child
}

// SnapshotPage is one page of a paginated snapshot transfer (wire tag
// 31, spec §6).
type SnapshotPage struct {
	PageIndex          int
	TotalPages         int
	Entries            []SnapshotEntry
	ContinuationCursor []byte
}

// GenerateSnapshot streams the subtree rooted at rootID in deterministic
// (pre-order, ascending child id) traversal order, paginated at
// pageSize entries per page (spec §4.4). boundaryRootHash is the root's
// full_hash at the moment of generation — the value apply_snapshot must
// reproduce.
func GenerateSnapshot(local LocalStore, rootID core.ID, pageSize int) ([]SnapshotPage, core.ID, error) {
	if pageSize < 1 {
		pageSize = 1
	}

	rootEntity, ok, err := local.GetEntity(rootID)
	if err != nil {
		return nil, core.Zero, err
	}
	if !ok {
		return nil, core.Zero, errors.New("snapshot root not found", errors.NewKV("RootID", rootID.String()))
	}

	var entries []SnapshotEntry
	var walk func(id core.ID) error
	walk = func(id core.ID) error {
		entity, ok, err := local.GetEntity(id)
		if err != nil || !ok {
			return err
		}
		payload, err := local.GetPayload(id)
		if err != nil {
			return err
		}
		children := append([]core.Child(nil), entity.Children...)
		sort.Slice(children, func(i, j int) bool { return bytes.Compare(children[i].ID[:], children[j].ID[:]) < 0 })
		entries = append(entries, SnapshotEntry{ID: id, Payload: payload, Metadata: entity.Metadata, Children: entity.Children})
		for _, c := range children {
			if err := walk(c.ID); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(rootID); err != nil {
		return nil, core.Zero, err
	}

	var pages []SnapshotPage
	for i := 0; i < len(entries); i += pageSize {
		end := i + pageSize
		if end > len(entries) {
			end = len(entries)
		}
		pages = append(pages, SnapshotPage{Entries: entries[i:end]})
	}
	total := len(pages)
	for i := range pages {
		pages[i].PageIndex = i
		pages[i].TotalPages = total
		if i < total-1 {
			pages[i].ContinuationCursor = pages[i+1].Entries[0].ID[:]
		}
	}

	return pages, rootEntity.FullHash, nil
}

// CompressPage zstd-compresses a page's entries for the CompressedSnapshot
// protocol (spec §4.3: "Compression uses a general-purpose codec (lz4 /
// zstd) at the framing layer").
func CompressPage(raw []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.Wrap("create zstd encoder", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

// DecompressPage reverses CompressPage.
func DecompressPage(compressed []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap("create zstd decoder", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, errors.WrapWithKind(errors.KindSnapshotVerification, "decompress snapshot page", err)
	}
	return out, nil
}

// ApplySnapshot verifies every entity's own_hash against its recomputed
// SHA-256(payload), reconstructs each subtree's full_hash bottom-up, and
// confirms the root matches expectedRootHash before writing anything —
// failing atomically on any mismatch (spec §4.4).
func ApplySnapshot(local LocalStore, rootID core.ID, pages []SnapshotPage, expectedRootHash core.ID) error {
	byID := make(map[core.ID]SnapshotEntry)
	for _, page := range pages {
		for _, e := range page.Entries {
			byID[e.ID] = e
		}
	}

	fullHashes := make(map[core.ID]core.ID, len(byID))
	var computeFullHash func(id core.ID) (core.ID, error)
	computeFullHash = func(id core.ID) (core.ID, error) {
		if h, ok := fullHashes[id]; ok {
			return h, nil
		}
		entry, ok := byID[id]
		if !ok {
			return core.Zero, errors.NewWithKind(errors.KindSnapshotVerification, "snapshot missing referenced entity", errors.NewKV("ID", id.String()))
		}
		ownHash := core.ComputeOwnHash(entry.Payload)
		for _, c := range entry.Children {
			childHash, err := computeFullHash(c.ID)
			if err != nil {
				return core.Zero, err
			}
			if childHash != c.FullHash {
				return core.Zero, errors.NewWithKind(errors.KindSnapshotVerification, "snapshot child hash mismatch", errors.NewKV("ChildID", c.ID.String()))
			}
		}
		full := core.ComputeFullHash(ownHash, entry.Children)
		fullHashes[id] = full
		return full, nil
	}

	rootFullHash, err := computeFullHash(rootID)
	if err != nil {
		return err
	}
	if rootFullHash != expectedRootHash {
		return errors.NewWithKind(errors.KindSnapshotVerification, "snapshot root hash mismatch",
			errors.NewKV("Expected", expectedRootHash.String()), errors.NewKV("Got", rootFullHash.String()))
	}

	// Verification passed for the whole tree; now write every entity.
	// Each entity is written by its own ApplyLeaf call: a write failure
	// partway through returns an error and leaves the entities already
	// written in place, with no rollback.
	for id, entry := range byID {
		if err := local.ApplyLeaf(TreeLeafData{ID: id, Value: entry.Payload, Metadata: entry.Metadata}); err != nil {
			return errors.WrapWithKind(errors.KindStoreWriteFailure, "apply snapshot entry", err)
		}
	}
	return nil
}

// CheckpointInstaller is the narrow DAG surface install_snapshot_boundary
// needs (core.DAG satisfies it).
type CheckpointInstaller interface {
	RestoreApplied(delta *core.CausalDelta)
}

// InstallSnapshotBoundary installs a checkpoint delta for every dag_head
// transferred with the snapshot, so deltas that reference a pre-snapshot
// parent are admitted instead of orphaned (spec §4.4, I9's companion
// P9).
func InstallSnapshotBoundary(installer CheckpointInstaller, dagHeads []core.ID, boundaryRootHash core.ID) {
	for _, head := range dagHeads {
		installer.RestoreApplied(core.NewCheckpoint(head, boundaryRootHash))
	}
}
