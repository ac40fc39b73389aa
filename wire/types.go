package wire

import "fmt"

// ===== WIRE FORMAT TYPES =====

// WireType identifies how a field's value bytes are framed on the wire.
type WireType int32

const (
	WireVarint  WireType = 0 // int32, int64, uint32, uint64, sint32, sint64, bool, enum
	WireFixed64 WireType = 1 // fixed64, sfixed64, double
	WireBytes   WireType = 2 // string, bytes, embedded messages, packed repeated scalars
	WireFixed32 WireType = 5 // fixed32, sfixed32, float
)

// Valid reports whether wt is one of the four framing codes the format defines.
func (wt WireType) Valid() bool {
	switch wt {
	case WireVarint, WireFixed64, WireBytes, WireFixed32:
		return true
	}
	return false
}

// FieldNumber identifies a field within a message.
type FieldNumber int32

// MaxFieldNumber is the largest field number the tag encoding can carry.
const MaxFieldNumber FieldNumber = 1<<29 - 1

// Tag is a field number and wire type combined into a single varint value.
type Tag uint64

// MakeTag combines a field number and wire type into a tag.
func MakeTag(fieldNumber FieldNumber, wireType WireType) Tag {
	return Tag(uint64(fieldNumber)<<3 | uint64(wireType))
}

// ParseTag splits a tag back into field number and wire type.
func ParseTag(tag Tag) (FieldNumber, WireType) {
	return FieldNumber(tag >> 3), WireType(tag & 0x7)
}

// AppendTag appends the varint encoding of the tag for (fieldNumber, wireType).
func AppendTag(buf []byte, fieldNumber FieldNumber, wireType WireType) []byte {
	return AppendVarint(buf, uint64(MakeTag(fieldNumber, wireType)))
}

// TagSize returns the encoded size of the tag for fieldNumber.
func TagSize(fieldNumber FieldNumber) int {
	return VarintSize(uint64(fieldNumber) << 3)
}

// FieldTag is the precomputed wire tag for one field of a message type.
// The byte representation is derived once, at type-definition time, and is
// immutable afterwards; every encode of the field copies these bytes instead
// of redoing the tag arithmetic. A FieldTag carries no per-call state and is
// safe for unlimited concurrent readers.
type FieldTag struct {
	num   FieldNumber
	wt    WireType
	bytes []byte
}

// NewFieldTag derives the tag bytes for (fieldNumber, wireType).
func NewFieldTag(fieldNumber FieldNumber, wireType WireType) (FieldTag, error) {
	if fieldNumber < 1 || fieldNumber > MaxFieldNumber {
		return FieldTag{}, fmt.Errorf("field number %d out of range: %w", fieldNumber, ErrInvalidFieldNumber)
	}
	if !wireType.Valid() {
		return FieldTag{}, fmt.Errorf("wire type %d: %w", wireType, ErrInvalidWireType)
	}
	return FieldTag{
		num:   fieldNumber,
		wt:    wireType,
		bytes: AppendTag(nil, fieldNumber, wireType),
	}, nil
}

// MustFieldTag is like NewFieldTag but panics on an invalid pair. It is
// intended for package-level tag tables of hand-written message types.
func MustFieldTag(fieldNumber FieldNumber, wireType WireType) FieldTag {
	ft, err := NewFieldTag(fieldNumber, wireType)
	if err != nil {
		panic(err)
	}
	return ft
}

// Number returns the field number the tag was derived for.
func (ft FieldTag) Number() FieldNumber { return ft.num }

// Wire returns the wire type the tag was derived for.
func (ft FieldTag) Wire() WireType { return ft.wt }

// Bytes returns the precomputed tag varint. Callers must not modify it.
func (ft FieldTag) Bytes() []byte { return ft.bytes }

// MessageHeader is the decoded header of one wire field.
type MessageHeader struct {
	FieldNumber FieldNumber
	WireType    WireType
	Length      uint64 // for length-delimited fields
}

// Value is a single decoded field without schema information.
type Value struct {
	FieldNumber FieldNumber
	WireType    WireType
	Data        interface{}
}
