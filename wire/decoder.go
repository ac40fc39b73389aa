package wire

import "fmt"

// Unmarshaler is implemented by message types that can construct themselves
// field by field from a Decoder. It is deliberately independent of Marshaler:
// response-only types never need an encode path.
type Unmarshaler interface {
	UnmarshalWire(d *Decoder) error
}

// Decoder is a cursor over an input byte slice. It never owns the underlying
// bytes; advancing the position is the only mutation it performs. A Decoder
// is created per decode operation and must not be shared between goroutines.
type Decoder struct {
	buf     []byte
	pos     int
	schemas SchemaSource
}

// NewDecoder creates a new wire format decoder over data
func NewDecoder(data []byte) *Decoder {
	return &Decoder{buf: data}
}

// NewDecoderWithSchemas creates a decoder that can resolve nested message and
// enum definitions through src while decoding schema-driven values.
func NewDecoderWithSchemas(data []byte, src SchemaSource) *Decoder {
	return &Decoder{buf: data, schemas: src}
}

// Remaining returns the number of unread bytes
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// Pos returns the current read position
func (d *Decoder) Pos() int {
	return d.pos
}

// DecodeTag reads the next field tag. It fails with ErrInvalidWireType if the
// low 3 bits name no known framing and ErrInvalidFieldNumber for numbers
// outside [1, MaxFieldNumber].
func (d *Decoder) DecodeTag() (FieldNumber, WireType, error) {
	tag, err := d.DecodeVarint()
	if err != nil {
		return 0, 0, fmt.Errorf("decode tag: %w", err)
	}
	num, wt := ParseTag(Tag(tag))
	if !wt.Valid() {
		return 0, 0, fmt.Errorf("tag %d carries wire type %d: %w", tag, wt, ErrInvalidWireType)
	}
	if num < 1 || num > MaxFieldNumber {
		return 0, 0, fmt.Errorf("tag %d carries field number %d: %w", tag, num, ErrInvalidFieldNumber)
	}
	return num, wt, nil
}

// SkipField advances past one field's value bytes without storing them: a
// varint is consumed to its terminating byte, fixed32/fixed64 skip their raw
// width, and length-delimited fields skip exactly their declared length.
func (d *Decoder) SkipField(wireType WireType) error {
	switch wireType {
	case WireVarint:
		vd := NewVarintDecoder(d)
		return vd.SkipVarint()
	case WireFixed64:
		if d.Remaining() < 8 {
			return fmt.Errorf("skip fixed64: %w", ErrTruncated)
		}
		d.pos += 8
		return nil
	case WireBytes:
		bd := NewBytesDecoder(d)
		return bd.SkipBytes()
	case WireFixed32:
		if d.Remaining() < 4 {
			return fmt.Errorf("skip fixed32: %w", ErrTruncated)
		}
		d.pos += 4
		return nil
	default:
		return fmt.Errorf("skip wire type %d: %w", wireType, ErrInvalidWireType)
	}
}

// DecodeEmbedded decodes a length-delimited embedded message into m. The
// nested decoder is bounded to the exact declared sub-slice, borrowed from the
// input buffer; reading past it fails with ErrTruncated, while bytes the
// nested message leaves unconsumed are not an error.
func (d *Decoder) DecodeEmbedded(m Unmarshaler) error {
	sub, err := d.DecodeRawBytes()
	if err != nil {
		return err
	}
	return m.UnmarshalWire(NewDecoder(sub))
}

// ===== PACKED REPEATED DECODERS =====

// DecodePackedVarints decodes one length-delimited blob of varint elements.
// Zigzag-encoded elements must be mapped through DecodeZigZag32/64 afterwards.
func (d *Decoder) DecodePackedVarints() ([]uint64, error) {
	sub, err := d.DecodeRawBytes()
	if err != nil {
		return nil, err
	}
	sd := NewDecoder(sub)
	var vals []uint64
	for sd.Remaining() > 0 {
		v, err := sd.DecodeVarint()
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// DecodePackedFixed32 decodes one length-delimited blob of fixed32 elements
func (d *Decoder) DecodePackedFixed32() ([]uint32, error) {
	sub, err := d.DecodeRawBytes()
	if err != nil {
		return nil, err
	}
	if len(sub)%4 != 0 {
		return nil, fmt.Errorf("packed fixed32 blob of %d bytes: %w", len(sub), ErrMalformedLength)
	}
	sd := NewDecoder(sub)
	vals := make([]uint32, 0, len(sub)/4)
	for sd.Remaining() > 0 {
		v, err := sd.DecodeFixed32()
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// DecodePackedFixed64 decodes one length-delimited blob of fixed64 elements
func (d *Decoder) DecodePackedFixed64() ([]uint64, error) {
	sub, err := d.DecodeRawBytes()
	if err != nil {
		return nil, err
	}
	if len(sub)%8 != 0 {
		return nil, fmt.Errorf("packed fixed64 blob of %d bytes: %w", len(sub), ErrMalformedLength)
	}
	sd := NewDecoder(sub)
	vals := make([]uint64, 0, len(sub)/8)
	for sd.Remaining() > 0 {
		v, err := sd.DecodeFixed64()
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// ===== SCHEMA-LESS DECODING =====

// decodeRawValue decodes one value without type information
func (d *Decoder) decodeRawValue(wireType WireType) (interface{}, error) {
	switch wireType {
	case WireVarint:
		vd := NewVarintDecoder(d)
		return vd.DecodeVarint()
	case WireFixed64:
		fd := NewFixedDecoder(d)
		return fd.DecodeFixed64()
	case WireBytes:
		bd := NewBytesDecoder(d)
		return bd.DecodeBytes()
	case WireFixed32:
		fd := NewFixedDecoder(d)
		return fd.DecodeFixed32()
	default:
		return nil, fmt.Errorf("wire type %d: %w", wireType, ErrInvalidWireType)
	}
}

// DecodeField decodes the next field without schema information. It returns
// nil when the cursor has reached the end of the input.
func (d *Decoder) DecodeField() (*Value, error) {
	if d.Remaining() == 0 {
		return nil, nil
	}
	num, wt, err := d.DecodeTag()
	if err != nil {
		return nil, err
	}
	data, err := d.decodeRawValue(wt)
	if err != nil {
		return nil, err
	}
	return &Value{
		FieldNumber: num,
		WireType:    wt,
		Data:        data,
	}, nil
}
