// Package wire implements the binary framing for every sync message
// (spec §6): a 1-byte tag, a varint-framed length, and a CBOR-encoded
// body, matching the teacher's CBOR-over-length-prefixed-frame idiom
// (crdt's delta encoding) combined with the libp2p stack's varint
// framing convention.
package wire

import (
	"bytes"
	"io"

	"github.com/multiformats/go-varint"
	"github.com/ugorji/go/codec"

	"github.com/sourcenetwork/syncore/errors"
)

// Tag identifies a message's wire shape (spec §6 table).
type Tag byte

const (
	TagSyncHandshake         Tag = 0x01
	TagSyncHandshakeResponse Tag = 0x02
	TagProtocolSelected      Tag = 0x10
	TagProtocolAck           Tag = 0x11
	TagProtocolNack          Tag = 0x12
	TagRequestEntities       Tag = 0x20
	TagEntitiesResponse      Tag = 0x21
	TagRequestSnapshot       Tag = 0x30
	TagSnapshotPage          Tag = 0x31
	TagBloomFilterRequest    Tag = 0x40
	TagBloomFilterResponse   Tag = 0x41
	TagDeltaWithHints        Tag = 0x50
	TagHashHeartbeat         Tag = 0x51
	TagVerificationFailed    Tag = 0x60
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

// WriteMessage frames tag and body as [tag][varint(len(body))][body]
// and writes it to w (spec §6: "each message carries a 1-byte tag +
// body").
func WriteMessage(w io.Writer, tag Tag, body []byte) error {
	if _, err := w.Write([]byte{byte(tag)}); err != nil {
		return errors.Wrap("write message tag", err)
	}
	if _, err := w.Write(varint.ToUvarint(uint64(len(body)))); err != nil {
		return errors.Wrap("write message length", err)
	}
	if _, err := w.Write(body); err != nil {
		return errors.Wrap("write message body", err)
	}
	return nil
}

// ReadMessage reads one framed message from r, returning its tag and
// raw CBOR body for the caller to decode per-tag.
func ReadMessage(r io.Reader) (Tag, []byte, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &singleByteReader{r}
	}

	var tagByte [1]byte
	if _, err := io.ReadFull(r, tagByte[:]); err != nil {
		return 0, nil, errors.Wrap("read message tag", err)
	}

	length, err := varint.ReadUvarint(br)
	if err != nil {
		return 0, nil, errors.Wrap("read message length", err)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, errors.Wrap("read message body", err)
	}
	return Tag(tagByte[0]), body, nil
}

// singleByteReader adapts an io.Reader without ReadByte to
// io.ByteReader, for callers whose Stream type (spec §6 transport
// contract) doesn't already implement it.
type singleByteReader struct {
	r io.Reader
}

func (s *singleByteReader) ReadByte() (byte, error) {
	var b [1]byte
	_, err := io.ReadFull(s.r, b[:])
	return b[0], err
}

// EncodeMessage encodes body via CBOR and frames it with tag.
func EncodeMessage(w io.Writer, tag Tag, body any) error {
	encoded, err := encodeCBOR(body)
	if err != nil {
		return errors.Wrap("encode message body", err)
	}
	return WriteMessage(w, tag, encoded)
}

// DecodeBody CBOR-decodes a message body into v.
func DecodeBody(body []byte, v any) error {
	return decodeCBOR(body, v)
}

// EncodeBody CBOR-encodes v into a message body without the
// tag/length framing, for transports (e.g. transport.Stream) that
// already frame whole messages themselves.
func EncodeBody(v any) ([]byte, error) {
	return encodeCBOR(v)
}
