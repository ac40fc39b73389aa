package wire

// Marshaler is implemented by message types that can append themselves to an
// Encoder using their own field-number assignments. It is deliberately
// independent of Unmarshaler: request-only types never need a decode path.
type Marshaler interface {
	MarshalWire(e *Encoder) error
}

// Encoder appends wire-format bytes into a growable output buffer. An Encoder
// is created per encode operation and must not be shared between goroutines;
// distinct encoders are fully independent.
type Encoder struct {
	buf     []byte
	schemas SchemaSource
}

// NewEncoder creates a new wire format encoder
func NewEncoder() *Encoder {
	return &Encoder{}
}

// NewEncoderWithSchemas creates an encoder that can resolve nested message
// and enum definitions through src while encoding schema-driven values.
func NewEncoderWithSchemas(src SchemaSource) *Encoder {
	return &Encoder{schemas: src}
}

// NewEncoderSize creates an encoder with a preallocated buffer capacity.
func NewEncoderSize(n int) *Encoder {
	return &Encoder{buf: make([]byte, 0, n)}
}

// Bytes returns the encoded bytes
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes encoded so far
func (e *Encoder) Len() int {
	return len(e.buf)
}

// Reset clears the encoder buffer, retaining its capacity
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// EncodeTag appends a field's precomputed tag bytes. All field-level
// appenders below reduce per-field tag work to this fixed-size copy.
func (e *Encoder) EncodeTag(tag FieldTag) {
	e.buf = append(e.buf, tag.bytes...)
}

// ===== FIELD-LEVEL APPENDERS =====
//
// Each appender writes tag bytes then value bytes. Primitive scalar fields
// never allocate on the encoder's behalf beyond buffer growth.

// EncodeVarintField appends tag + varint value
func (e *Encoder) EncodeVarintField(tag FieldTag, v uint64) {
	e.EncodeTag(tag)
	e.buf = AppendVarint(e.buf, v)
}

// EncodeInt32Field appends tag + int32 varint value
func (e *Encoder) EncodeInt32Field(tag FieldTag, v int32) {
	e.EncodeVarintField(tag, uint64(int64(v)))
}

// EncodeInt64Field appends tag + int64 varint value
func (e *Encoder) EncodeInt64Field(tag FieldTag, v int64) {
	e.EncodeVarintField(tag, uint64(v))
}

// EncodeUint32Field appends tag + uint32 varint value
func (e *Encoder) EncodeUint32Field(tag FieldTag, v uint32) {
	e.EncodeVarintField(tag, uint64(v))
}

// EncodeSint32Field appends tag + zigzag-encoded int32 value
func (e *Encoder) EncodeSint32Field(tag FieldTag, v int32) {
	e.EncodeVarintField(tag, EncodeZigZag32(v))
}

// EncodeSint64Field appends tag + zigzag-encoded int64 value
func (e *Encoder) EncodeSint64Field(tag FieldTag, v int64) {
	e.EncodeVarintField(tag, EncodeZigZag64(v))
}

// EncodeBoolField appends tag + bool varint value
func (e *Encoder) EncodeBoolField(tag FieldTag, v bool) {
	if v {
		e.EncodeVarintField(tag, 1)
	} else {
		e.EncodeVarintField(tag, 0)
	}
}

// EncodeFixed32Field appends tag + 4 raw little-endian bytes
func (e *Encoder) EncodeFixed32Field(tag FieldTag, v uint32) {
	e.EncodeTag(tag)
	e.EncodeFixed32(v)
}

// EncodeFixed64Field appends tag + 8 raw little-endian bytes
func (e *Encoder) EncodeFixed64Field(tag FieldTag, v uint64) {
	e.EncodeTag(tag)
	e.EncodeFixed64(v)
}

// EncodeFloatField appends tag + the float32 bit pattern as fixed32
func (e *Encoder) EncodeFloatField(tag FieldTag, v float32) {
	e.EncodeTag(tag)
	fe := NewFixedEncoder(e)
	fe.EncodeFloat32(v)
}

// EncodeDoubleField appends tag + the float64 bit pattern as fixed64
func (e *Encoder) EncodeDoubleField(tag FieldTag, v float64) {
	e.EncodeTag(tag)
	fe := NewFixedEncoder(e)
	fe.EncodeFloat64(v)
}

// EncodeStringField appends tag + length + string bytes. The string is a
// borrowed view; its bytes are copied once, straight into the output buffer.
func (e *Encoder) EncodeStringField(tag FieldTag, s string) {
	e.EncodeTag(tag)
	e.EncodeString(s)
}

// EncodeBytesField appends tag + length + payload bytes. The slice is a
// borrowed view; its bytes are copied once, straight into the output buffer.
func (e *Encoder) EncodeBytesField(tag FieldTag, data []byte) {
	e.EncodeTag(tag)
	e.EncodeBytes(data)
}

// EncodeMessageField appends tag + length + the embedded message's encoding.
// The exact length is obtained by encoding into a scratch buffer first, so a
// length-delimited message field costs one scratch allocation and one copy.
func (e *Encoder) EncodeMessageField(tag FieldTag, m Marshaler) error {
	scratch := NewEncoder()
	if err := m.MarshalWire(scratch); err != nil {
		return err
	}
	e.EncodeBytesField(tag, scratch.Bytes())
	return nil
}

// ===== PACKED REPEATED APPENDERS =====
//
// Packed fields concatenate raw element encodings inside one length-delimited
// blob. The blob length is computed in a pre-pass, so elements are written
// directly into the output buffer without a scratch encoder.

// EncodePackedVarintField appends tag + one blob of varint elements.
// Zigzag-encoded elements must be mapped through EncodeZigZag32/64 first.
func (e *Encoder) EncodePackedVarintField(tag FieldTag, vals []uint64) {
	if len(vals) == 0 {
		return
	}
	size := 0
	for _, v := range vals {
		size += VarintSize(v)
	}
	e.EncodeTag(tag)
	e.buf = AppendVarint(e.buf, uint64(size))
	for _, v := range vals {
		e.buf = AppendVarint(e.buf, v)
	}
}

// EncodePackedFixed32Field appends tag + one blob of fixed32 elements
func (e *Encoder) EncodePackedFixed32Field(tag FieldTag, vals []uint32) {
	if len(vals) == 0 {
		return
	}
	e.EncodeTag(tag)
	e.buf = AppendVarint(e.buf, uint64(4*len(vals)))
	for _, v := range vals {
		e.EncodeFixed32(v)
	}
}

// EncodePackedFixed64Field appends tag + one blob of fixed64 elements
func (e *Encoder) EncodePackedFixed64Field(tag FieldTag, vals []uint64) {
	if len(vals) == 0 {
		return
	}
	e.EncodeTag(tag)
	e.buf = AppendVarint(e.buf, uint64(8*len(vals)))
	for _, v := range vals {
		e.EncodeFixed64(v)
	}
}
