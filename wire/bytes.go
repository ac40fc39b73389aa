package wire

import (
	"fmt"
	"math"
)

// BytesDecoder handles length-delimited decoding operations
type BytesDecoder struct {
	decoder *Decoder
}

// BytesEncoder handles length-delimited encoding operations
type BytesEncoder struct {
	encoder *Encoder
}

// NewBytesDecoder creates a new bytes decoder
func NewBytesDecoder(d *Decoder) *BytesDecoder {
	return &BytesDecoder{decoder: d}
}

// NewBytesEncoder creates a new bytes encoder
func NewBytesEncoder(e *Encoder) *BytesEncoder {
	return &BytesEncoder{encoder: e}
}

// DECODER METHODS

// decodeLength reads a length prefix and validates it against the remaining
// input before any allocation happens. A declared length beyond the remaining
// bytes is reported as ErrTruncated no matter how absurd the number is; only
// a length that cannot fit an int at all is ErrMalformedLength.
func (bd *BytesDecoder) decodeLength() (int, error) {
	vd := NewVarintDecoder(bd.decoder)
	length, err := vd.DecodeVarint()
	if err != nil {
		return 0, fmt.Errorf("decode length prefix: %w", err)
	}
	if length > math.MaxInt {
		return 0, fmt.Errorf("declared length %d: %w", length, ErrMalformedLength)
	}
	d := bd.decoder
	if int(length) > len(d.buf)-d.pos {
		return 0, fmt.Errorf("declared length %d exceeds %d remaining bytes: %w",
			length, len(d.buf)-d.pos, ErrTruncated)
	}
	return int(length), nil
}

// DecodeBytes decodes a length-delimited payload into fresh owned storage.
func (bd *BytesDecoder) DecodeBytes() ([]byte, error) {
	length, err := bd.decodeLength()
	if err != nil {
		return nil, err
	}
	d := bd.decoder
	data := make([]byte, length)
	copy(data, d.buf[d.pos:d.pos+length])
	d.pos += length
	return data, nil
}

// DecodeRawBytes decodes a length-delimited payload as a view borrowed from
// the input buffer. The returned slice is only valid while the input is.
func (bd *BytesDecoder) DecodeRawBytes() ([]byte, error) {
	length, err := bd.decodeLength()
	if err != nil {
		return nil, err
	}
	d := bd.decoder
	data := d.buf[d.pos : d.pos+length : d.pos+length]
	d.pos += length
	return data, nil
}

// DecodeString decodes a length-delimited payload as a string. The string
// conversion is the one owning copy.
func (bd *BytesDecoder) DecodeString() (string, error) {
	length, err := bd.decodeLength()
	if err != nil {
		return "", err
	}
	d := bd.decoder
	s := string(d.buf[d.pos : d.pos+length])
	d.pos += length
	return s, nil
}

// SkipBytes advances past a length-delimited payload without storing it
func (bd *BytesDecoder) SkipBytes() error {
	length, err := bd.decodeLength()
	if err != nil {
		return err
	}
	bd.decoder.pos += length
	return nil
}

// ENCODER METHODS

// EncodeBytes appends a length prefix followed by data. The payload is read
// from the caller's slice in place; the append into the output buffer is the
// single copy made.
func (be *BytesEncoder) EncodeBytes(data []byte) {
	e := be.encoder
	e.buf = AppendVarint(e.buf, uint64(len(data)))
	e.buf = append(e.buf, data...)
}

// EncodeString appends a length prefix followed by the string bytes. The
// string is appended directly, without an intermediate []byte conversion.
func (be *BytesEncoder) EncodeString(s string) {
	e := be.encoder
	e.buf = AppendVarint(e.buf, uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// UTILITY FUNCTIONS

// BytesSize returns the encoded size of a length-delimited payload of n bytes.
func BytesSize(n int) int {
	return VarintSize(uint64(n)) + n
}

// Convenience methods for direct access

// DecodeBytes - convenience method for main decoder
func (d *Decoder) DecodeBytes() ([]byte, error) {
	bd := NewBytesDecoder(d)
	return bd.DecodeBytes()
}

// DecodeRawBytes - convenience method for main decoder
func (d *Decoder) DecodeRawBytes() ([]byte, error) {
	bd := NewBytesDecoder(d)
	return bd.DecodeRawBytes()
}

// DecodeString - convenience method for main decoder
func (d *Decoder) DecodeString() (string, error) {
	bd := NewBytesDecoder(d)
	return bd.DecodeString()
}

// EncodeBytes - convenience method for main encoder
func (e *Encoder) EncodeBytes(data []byte) {
	be := NewBytesEncoder(e)
	be.EncodeBytes(data)
}

// EncodeString - convenience method for main encoder
func (e *Encoder) EncodeString(s string) {
	be := NewBytesEncoder(e)
	be.EncodeString(s)
}
