// Package crdt implements the merge registry and built-in CRDT dispatch
// (spec §4.2): Counter, LwwRegister, UnorderedMap, UnorderedSet, Vector,
// Rga, and the Custom escape hatch. Payloads are CBOR-encoded, matching
// the teacher's core/crdt/lwwreg.go delta encoding.
package crdt

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

var cborHandle = &codec.CborHandle{}

func encodeCBOR(v any) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	enc := codec.NewEncoder(buf, cborHandle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCBOR(data []byte, v any) error {
	dec := codec.NewDecoderBytes(data, cborHandle)
	return dec.Decode(v)
}
