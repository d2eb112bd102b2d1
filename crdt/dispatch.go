package crdt

import (
	"context"

	"github.com/sourcenetwork/syncore/core"
	"github.com/sourcenetwork/syncore/hlc"
	"github.com/sourcenetwork/syncore/logging"
)

var log = logging.Nop()

// SetLogger overrides the package logger (used by node wiring to route
// merge-dispatch diagnostics through the shared logger).
func SetLogger(l *logging.Logger) { log = l }

// MergeByCRDTType dispatches a merge between two payloads tagged with the
// same CRDTType (spec §4.2, "merge_by_crdt_type"). There is no
// timestamp-based short-circuit anywhere in this dispatcher, so callers
// merging root entities automatically satisfy I7 (CRDT dispatch before
// any short-circuit) without special-casing the root.
func MergeByCRDTType(reg *Registry, t core.CRDTType, localBytes, remoteBytes []byte, localTS, remoteTS hlc.Timestamp) ([]byte, error) {
	switch t.Kind {
	case core.CRDTCounter:
		return MergeCounter(localBytes, remoteBytes, localTS, remoteTS)
	case core.CRDTLwwRegister:
		return MergeLwwRegister(localBytes, remoteBytes, localTS, remoteTS)
	case core.CRDTUnorderedMap:
		return MergeUnorderedMap(localBytes, remoteBytes, localTS, remoteTS)
	case core.CRDTUnorderedSet:
		return MergeUnorderedSet(localBytes, remoteBytes, localTS, remoteTS)
	case core.CRDTVector:
		return mergeVector(reg, localBytes, remoteBytes, localTS, remoteTS)
	case core.CRDTRga:
		return MergeRga(localBytes, remoteBytes, localTS, remoteTS)
	case core.CRDTCustom:
		return mergeCustom(reg, t.Name, localBytes, remoteBytes, localTS, remoteTS)
	default:
		return MergeLwwRegister(localBytes, remoteBytes, localTS, remoteTS)
	}
}

// mergeVector merges element-wise by index up to min length, then appends
// the tail of the longer side; each element's merge dispatches per its
// own crdt_type (spec §4.2).
func mergeVector(reg *Registry, localBytes, remoteBytes []byte, localTS, remoteTS hlc.Timestamp) ([]byte, error) {
	var local, remote VectorState
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

	minLen := len(local.Elements)
	if len(remote.Elements) < minLen {
		minLen = len(remote.Elements)
	}

	merged := make([]VectorElement, 0, maxInt(len(local.Elements), len(remote.Elements)))
	for i := 0; i < minLen; i++ {
		le, re := local.Elements[i], remote.Elements[i]
		elemType := vectorElementType(le.CRDTTypeName, re.CRDTTypeName)
		payload, err := MergeByCRDTType(reg, elemType, le.Payload, re.Payload, localTS, remoteTS)
		if err != nil {
			return nil, err
		}
		merged = append(merged, VectorElement{CRDTTypeName: elemType.TypeName(), Payload: payload})
	}
	if len(local.Elements) > minLen {
		merged = append(merged, local.Elements[minLen:]...)
	} else if len(remote.Elements) > minLen {
		merged = append(merged, remote.Elements[minLen:]...)
	}

	return encodeCBOR(VectorState{Elements: merged})
}

func vectorElementType(localName, remoteName string) core.CRDTType {
	name := localName
	if name == "" {
		name = remoteName
	}
	for _, kind := range []core.CRDTKind{
		core.CRDTCounter, core.CRDTLwwRegister, core.CRDTUnorderedMap,
		core.CRDTUnorderedSet, core.CRDTVector, core.CRDTRga,
	} {
		if kind.String() == name {
			return core.Builtin(kind)
		}
	}
	return core.Custom(name)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// mergeCustom handles the Custom escape: consult the registry; if absent,
// invoke the optional WASM callback; if that too is absent, fall back to
// last-write-wins over the whole payload (spec §4.2). The fallback logs
// a warning and returns no error.
func mergeCustom(reg *Registry, typeName string, localBytes, remoteBytes []byte, localTS, remoteTS hlc.Timestamp) ([]byte, error) {
	if fn, ok := reg.Lookup(typeName); ok {
		return fn(localBytes, remoteBytes, localTS, remoteTS)
	}
	if cb := reg.callbackFn(); cb != nil {
		merged, handled, err := cb(typeName, localBytes, remoteBytes, localTS, remoteTS)
		if err != nil {
			return nil, err
		}
		if handled {
			return merged, nil
		}
	}
	log.Warn(context.Background(), "no merge function or callback for custom type, falling back to LWW", logging.NewKV("TypeName", typeName))
	return MergeLwwRegister(localBytes, remoteBytes, localTS, remoteTS)
}
