package wire

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/lightproto/lightwire/schema"
)

// fakeSchemas is a SchemaSource over in-memory definitions.
type fakeSchemas struct {
	messages map[string]*schema.Message
	enums    map[string]*schema.Enum
}

func (f *fakeSchemas) GetMessage(name string) (*schema.Message, error) {
	if m, ok := f.messages[name]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("message not found: %s", name)
}

func (f *fakeSchemas) GetEnum(name string) (*schema.Enum, error) {
	if e, ok := f.enums[name]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("enum not found: %s", name)
}

func primitiveField(name string, number int32, pt schema.PrimitiveType) *schema.Field {
	return &schema.Field{
		Name:   name,
		Number: number,
		Label:  schema.LabelOptional,
		Type:   schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: pt},
	}
}

func TestDecoder_AllScalarTypes(t *testing.T) {
	msg := &schema.Message{
		Name: "Scalars",
		Fields: []*schema.Field{
			primitiveField("test_int32", 1, schema.TypeInt32),
			primitiveField("test_int64", 2, schema.TypeInt64),
			primitiveField("test_uint32", 3, schema.TypeUint32),
			primitiveField("test_uint64", 4, schema.TypeUint64),
			primitiveField("test_sint32", 5, schema.TypeSint32),
			primitiveField("test_sint64", 6, schema.TypeSint64),
			primitiveField("test_bool", 7, schema.TypeBool),
			primitiveField("test_float", 8, schema.TypeFloat),
			primitiveField("test_double", 9, schema.TypeDouble),
			primitiveField("test_string", 10, schema.TypeString),
			primitiveField("test_bytes", 11, schema.TypeBytes),
			primitiveField("test_fixed32", 12, schema.TypeFixed32),
			primitiveField("test_fixed64", 13, schema.TypeFixed64),
			primitiveField("test_sfixed32", 14, schema.TypeSfixed32),
			primitiveField("test_sfixed64", 15, schema.TypeSfixed64),
		},
	}

	testData := map[string]interface{}{
		"test_int32":    int32(-123),
		"test_int64":    int64(-456789),
		"test_uint32":   uint32(123),
		"test_uint64":   uint64(456789),
		"test_sint32":   int32(-64),
		"test_sint64":   int64(-1),
		"test_bool":     true,
		"test_float":    float32(3.14),
		"test_double":   float64(2.718281828),
		"test_string":   "Hello, lightwire!",
		"test_bytes":    []byte("binary data"),
		"test_fixed32":  uint32(0xDEADBEEF),
		"test_fixed64":  uint64(0xCAFEBABEDEADBEEF),
		"test_sfixed32": int32(-99),
		"test_sfixed64": int64(-12345678901),
	}

	encoded, err := EncodeMessage(testData, msg, nil)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	decoded, err := DecodeMessage(encoded, msg, nil)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}

	if !reflect.DeepEqual(decoded, testData) {
		t.Errorf("round trip mismatch:\n got %#v\nwant %#v", decoded, testData)
	}
}

func TestDecoder_EmptyMessage(t *testing.T) {
	msg := &schema.Message{
		Name:   "Empty",
		Fields: []*schema.Field{primitiveField("name", 1, schema.TypeString)},
	}

	encoded, err := EncodeMessage(map[string]interface{}{}, msg, nil)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	if len(encoded) != 0 {
		t.Fatalf("empty message encoded to % x", encoded)
	}

	decoded, err := DecodeMessage(nil, msg, nil)
	if err != nil {
		t.Fatalf("DecodeMessage(nil): %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("empty buffer decoded to %#v", decoded)
	}
}

func TestDecoder_UnknownFieldSkip(t *testing.T) {
	// Schema defines fields 1 (string) and 3 (varint); the input additionally
	// carries field 2 (fixed64), which must be skipped, not rejected.
	msg := &schema.Message{
		Name: "Known",
		Fields: []*schema.Field{
			primitiveField("name", 1, schema.TypeString),
			primitiveField("count", 3, schema.TypeInt64),
		},
	}

	enc := NewEncoder()
	enc.EncodeStringField(MustFieldTag(1, WireBytes), "hello")
	enc.EncodeFixed64Field(MustFieldTag(2, WireFixed64), 0xDEADBEEF)
	enc.EncodeVarintField(MustFieldTag(3, WireVarint), 42)

	decoded, err := DecodeMessage(enc.Bytes(), msg, nil)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}

	want := map[string]interface{}{
		"name":  "hello",
		"count": int64(42),
	}
	if !reflect.DeepEqual(decoded, want) {
		t.Errorf("got %#v, want %#v", decoded, want)
	}
}

func TestDecoder_UnknownFieldSkipAllWireTypes(t *testing.T) {
	msg := &schema.Message{
		Name:   "OneKnown",
		Fields: []*schema.Field{primitiveField("keep", 1, schema.TypeInt32)},
	}

	enc := NewEncoder()
	enc.EncodeVarintField(MustFieldTag(2, WireVarint), 300)
	enc.EncodeFixed32Field(MustFieldTag(3, WireFixed32), 7)
	enc.EncodeFixed64Field(MustFieldTag(4, WireFixed64), 8)
	enc.EncodeBytesField(MustFieldTag(5, WireBytes), []byte("skipped"))
	enc.EncodeVarintField(MustFieldTag(1, WireVarint), 9)

	decoded, err := DecodeMessage(enc.Bytes(), msg, nil)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	want := map[string]interface{}{"keep": int32(9)}
	if !reflect.DeepEqual(decoded, want) {
		t.Errorf("got %#v, want %#v", decoded, want)
	}
}

func TestDecoder_LastOneWins(t *testing.T) {
	msg := &schema.Message{
		Name:   "Singular",
		Fields: []*schema.Field{primitiveField("name", 1, schema.TypeString)},
	}

	enc := NewEncoder()
	tag := MustFieldTag(1, WireBytes)
	enc.EncodeStringField(tag, "A")
	enc.EncodeStringField(tag, "B")

	decoded, err := DecodeMessage(enc.Bytes(), msg, nil)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if decoded["name"] != "B" {
		t.Errorf(`name = %v, want "B"`, decoded["name"])
	}
}

func TestDecoder_RepeatedOrderPreserved(t *testing.T) {
	msg := &schema.Message{
		Name: "List",
		Fields: []*schema.Field{
			{
				Name:   "names",
				Number: 1,
				Label:  schema.LabelRepeated,
				Type:   schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: schema.TypeString},
			},
		},
	}

	data := map[string]interface{}{"names": []string{"x", "y", "z"}}
	encoded, err := EncodeMessage(data, msg, nil)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	decoded, err := DecodeMessage(encoded, msg, nil)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	want := []interface{}{"x", "y", "z"}
	if !reflect.DeepEqual(decoded["names"], want) {
		t.Errorf("names = %#v, want %#v", decoded["names"], want)
	}
}

func TestDecoder_PackedEquivalence(t *testing.T) {
	// A repeated int32 field [1,2,3] must decode identically whether it was
	// written packed or as three tag+value pairs.
	newMsg := func(packed bool) *schema.Message {
		return &schema.Message{
			Name: "Nums",
			Fields: []*schema.Field{
				{
					Name:   "nums",
					Number: 1,
					Label:  schema.LabelRepeated,
					Packed: packed,
					Type:   schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: schema.TypeInt32},
				},
			},
		}
	}

	data := map[string]interface{}{"nums": []int32{1, 2, 3}}

	packedBytes, err := EncodeMessage(data, newMsg(true), nil)
	if err != nil {
		t.Fatalf("EncodeMessage packed: %v", err)
	}
	plainBytes, err := EncodeMessage(data, newMsg(false), nil)
	if err != nil {
		t.Fatalf("EncodeMessage non-packed: %v", err)
	}
	if reflect.DeepEqual(packedBytes, plainBytes) {
		t.Fatal("packed and non-packed encodings should differ on the wire")
	}
	// Packed: one tag + one blob. Non-packed: three tags.
	if len(packedBytes) >= len(plainBytes) {
		t.Errorf("packed %d bytes, non-packed %d bytes", len(packedBytes), len(plainBytes))
	}

	want := []interface{}{int32(1), int32(2), int32(3)}
	for name, input := range map[string][]byte{"packed": packedBytes, "plain": plainBytes} {
		decoded, err := DecodeMessage(input, newMsg(false), nil)
		if err != nil {
			t.Fatalf("DecodeMessage %s: %v", name, err)
		}
		if !reflect.DeepEqual(decoded["nums"], want) {
			t.Errorf("%s decoded to %#v, want %#v", name, decoded["nums"], want)
		}
	}
}

func TestDecoder_PackedFixedAndZigZag(t *testing.T) {
	msg := &schema.Message{
		Name: "Packs",
		Fields: []*schema.Field{
			{
				Name:   "sints",
				Number: 1,
				Label:  schema.LabelRepeated,
				Packed: true,
				Type:   schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: schema.TypeSint64},
			},
			{
				Name:   "floats",
				Number: 2,
				Label:  schema.LabelRepeated,
				Packed: true,
				Type:   schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: schema.TypeFloat},
			},
		},
	}

	data := map[string]interface{}{
		"sints":  []int64{-1, 0, 1, -4611686018427387904},
		"floats": []float32{1.5, -2.25},
	}
	encoded, err := EncodeMessage(data, msg, nil)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	decoded, err := DecodeMessage(encoded, msg, nil)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}

	wantSints := []interface{}{int64(-1), int64(0), int64(1), int64(-4611686018427387904)}
	if !reflect.DeepEqual(decoded["sints"], wantSints) {
		t.Errorf("sints = %#v, want %#v", decoded["sints"], wantSints)
	}
	wantFloats := []interface{}{float32(1.5), float32(-2.25)}
	if !reflect.DeepEqual(decoded["floats"], wantFloats) {
		t.Errorf("floats = %#v, want %#v", decoded["floats"], wantFloats)
	}
}

func TestDecoder_TruncationSweep(t *testing.T) {
	// Every strict prefix of a single-field encoding must fail; a truncated
	// input never yields a silently wrong value.
	msg := &schema.Message{
		Name: "Sweep",
		Fields: []*schema.Field{
			primitiveField("s", 1, schema.TypeString),
			primitiveField("v", 2, schema.TypeInt64),
			primitiveField("f", 3, schema.TypeFixed64),
		},
	}

	encodings := map[string][]byte{}

	enc := NewEncoder()
	enc.EncodeStringField(MustFieldTag(1, WireBytes), "John Doe")
	encodings["string"] = enc.Bytes()

	enc = NewEncoder()
	enc.EncodeVarintField(MustFieldTag(2, WireVarint), 456789)
	encodings["varint"] = enc.Bytes()

	enc = NewEncoder()
	enc.EncodeFixed64Field(MustFieldTag(3, WireFixed64), 0xCAFEBABE)
	encodings["fixed64"] = enc.Bytes()

	for name, full := range encodings {
		// Sanity: the full encoding decodes.
		if _, err := DecodeMessage(full, msg, nil); err != nil {
			t.Fatalf("%s full decode: %v", name, err)
		}
		for cut := 1; cut < len(full); cut++ {
			_, err := DecodeMessage(full[:cut], msg, nil)
			if err == nil {
				t.Errorf("%s truncated at %d/%d: decode succeeded", name, cut, len(full))
				continue
			}
			if !errors.Is(err, ErrTruncated) {
				t.Errorf("%s truncated at %d/%d: got %v, want ErrTruncated", name, cut, len(full), err)
			}
		}
	}
}

func TestDecoder_OversizedDeclaredLength(t *testing.T) {
	// The declared length is a syntactically valid varint but exceeds the
	// remaining input; this fails fast with ErrTruncated, with no speculative
	// allocation of the declared size.
	msg := &schema.Message{
		Name:   "Big",
		Fields: []*schema.Field{primitiveField("blob", 1, schema.TypeBytes)},
	}

	for _, declared := range []uint64{4, 200, 1 << 20, 1 << 40, 1<<63 - 1} {
		input := AppendTag(nil, 1, WireBytes)
		input = AppendVarint(input, declared)
		input = append(input, 'a', 'b', 'c')

		_, err := DecodeMessage(input, msg, nil)
		if !errors.Is(err, ErrTruncated) {
			t.Errorf("declared length %d: got %v, want ErrTruncated", declared, err)
		}
	}
}

func TestDecoder_MalformedLength(t *testing.T) {
	msg := &schema.Message{
		Name:   "Big",
		Fields: []*schema.Field{primitiveField("blob", 1, schema.TypeBytes)},
	}

	input := AppendTag(nil, 1, WireBytes)
	input = AppendVarint(input, math.MaxUint64)

	_, err := DecodeMessage(input, msg, nil)
	if !errors.Is(err, ErrMalformedLength) {
		t.Errorf("got %v, want ErrMalformedLength", err)
	}
}

func TestDecoder_NestedMessage(t *testing.T) {
	addressMsg := &schema.Message{
		Name: "Address",
		Fields: []*schema.Field{
			primitiveField("city", 1, schema.TypeString),
			primitiveField("zip", 2, schema.TypeInt32),
		},
	}
	userMsg := &schema.Message{
		Name: "User",
		Fields: []*schema.Field{
			primitiveField("name", 1, schema.TypeString),
			{
				Name:   "address",
				Number: 2,
				Label:  schema.LabelOptional,
				Type:   schema.FieldType{Kind: schema.KindMessage, MessageType: "Address"},
			},
		},
	}
	src := &fakeSchemas{
		messages: map[string]*schema.Message{"Address": addressMsg, "User": userMsg},
	}

	data := map[string]interface{}{
		"name": "jane",
		"address": map[string]interface{}{
			"city": "Lisbon",
			"zip":  int32(1100),
		},
	}
	encoded, err := EncodeMessage(data, userMsg, src)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	decoded, err := DecodeMessage(encoded, userMsg, src)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if !reflect.DeepEqual(decoded, data) {
		t.Errorf("round trip mismatch:\n got %#v\nwant %#v", decoded, data)
	}
}

func TestDecoder_NestedMessageWithoutSchemaYieldsRawBytes(t *testing.T) {
	userMsg := &schema.Message{
		Name: "User",
		Fields: []*schema.Field{
			{
				Name:   "address",
				Number: 1,
				Label:  schema.LabelOptional,
				Type:   schema.FieldType{Kind: schema.KindMessage, MessageType: "Address"},
			},
		},
	}

	inner := NewEncoder()
	inner.EncodeStringField(MustFieldTag(1, WireBytes), "Lisbon")
	outer := NewEncoder()
	outer.EncodeBytesField(MustFieldTag(1, WireBytes), inner.Bytes())

	decoded, err := DecodeMessage(outer.Bytes(), userMsg, nil)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	raw, ok := decoded["address"].([]byte)
	if !ok {
		t.Fatalf("address = %T, want []byte", decoded["address"])
	}
	if !reflect.DeepEqual(raw, inner.Bytes()) {
		t.Errorf("raw nested bytes = % x, want % x", raw, inner.Bytes())
	}
}

func TestDecoder_NestedTruncated(t *testing.T) {
	// The nested blob declares 5 bytes but the input holds 3.
	userMsg := &schema.Message{
		Name: "User",
		Fields: []*schema.Field{
			{
				Name:   "address",
				Number: 1,
				Label:  schema.LabelOptional,
				Type:   schema.FieldType{Kind: schema.KindMessage, MessageType: "Address"},
			},
		},
	}
	input := AppendTag(nil, 1, WireBytes)
	input = AppendVarint(input, 5)
	input = append(input, 1, 2, 3)

	_, err := DecodeMessage(input, userMsg, nil)
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("got %v, want ErrTruncated", err)
	}
}

func TestDecoder_Enum(t *testing.T) {
	statusEnum := &schema.Enum{
		Name: "Status",
		Values: []*schema.EnumValue{
			{Name: "STATUS_UNKNOWN", Number: 0},
			{Name: "STATUS_ACTIVE", Number: 1},
			{Name: "STATUS_BLOCKED", Number: 2},
		},
	}
	msg := &schema.Message{
		Name: "Account",
		Fields: []*schema.Field{
			{
				Name:   "status",
				Number: 1,
				Label:  schema.LabelOptional,
				Type:   schema.FieldType{Kind: schema.KindEnum, EnumType: "Status"},
			},
		},
	}
	src := &fakeSchemas{
		messages: map[string]*schema.Message{"Account": msg},
		enums:    map[string]*schema.Enum{"Status": statusEnum},
	}

	// Encode by name, decode back to the name.
	encoded, err := EncodeMessage(map[string]interface{}{"status": "STATUS_BLOCKED"}, msg, src)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	decoded, err := DecodeMessage(encoded, msg, src)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if decoded["status"] != "STATUS_BLOCKED" {
		t.Errorf("status = %v", decoded["status"])
	}

	// A wire number outside the definition surfaces as its numeric value.
	enc := NewEncoder()
	enc.EncodeVarintField(MustFieldTag(1, WireVarint), 99)
	decoded, err = DecodeMessage(enc.Bytes(), msg, src)
	if err != nil {
		t.Fatalf("DecodeMessage unknown enum number: %v", err)
	}
	if decoded["status"] != int32(99) {
		t.Errorf("unknown enum number = %v (%T)", decoded["status"], decoded["status"])
	}

	// Without a schema source the raw number is surfaced.
	decoded, err = DecodeMessage(encoded, msg, nil)
	if err != nil {
		t.Fatalf("DecodeMessage without source: %v", err)
	}
	if decoded["status"] != int32(2) {
		t.Errorf("status without source = %v (%T)", decoded["status"], decoded["status"])
	}
}

// earlyStopUnmarshaler reads field 1 and deliberately leaves the rest of its
// sub-slice unconsumed.
type earlyStopUnmarshaler struct {
	first uint64
}

func (m *earlyStopUnmarshaler) UnmarshalWire(d *Decoder) error {
	_, _, err := d.DecodeTag()
	if err != nil {
		return err
	}
	m.first, err = d.DecodeVarint()
	return err
}

func TestDecoder_EmbeddedLeftoverBytesAreNotAnError(t *testing.T) {
	inner := NewEncoder()
	inner.EncodeVarintField(MustFieldTag(1, WireVarint), 7)
	inner.EncodeVarintField(MustFieldTag(2, WireVarint), 8)

	outer := NewEncoder()
	outer.EncodeBytesField(MustFieldTag(1, WireBytes), inner.Bytes())
	outer.EncodeVarintField(MustFieldTag(2, WireVarint), 99)

	dec := NewDecoder(outer.Bytes())
	if _, _, err := dec.DecodeTag(); err != nil {
		t.Fatal(err)
	}
	var m earlyStopUnmarshaler
	if err := dec.DecodeEmbedded(&m); err != nil {
		t.Fatalf("DecodeEmbedded: %v", err)
	}
	if m.first != 7 {
		t.Errorf("first = %d", m.first)
	}

	// The outer cursor sits exactly past the declared sub-slice.
	num, _, err := dec.DecodeTag()
	if err != nil {
		t.Fatalf("outer DecodeTag after embedded: %v", err)
	}
	if num != 2 {
		t.Errorf("next field = %d, want 2", num)
	}
	v, err := dec.DecodeVarint()
	if err != nil || v != 99 {
		t.Errorf("outer value = %d, %v", v, err)
	}
}

func TestDecoder_RawBytesBorrowInput(t *testing.T) {
	enc := NewEncoder()
	enc.EncodeBytes([]byte("shared"))
	input := enc.Bytes()

	dec := NewDecoder(input)
	view, err := dec.DecodeRawBytes()
	if err != nil {
		t.Fatalf("DecodeRawBytes: %v", err)
	}
	// The view aliases the input buffer.
	input[1] = 'X'
	if view[0] != 'X' {
		t.Error("DecodeRawBytes returned a copy, want a borrowed view")
	}

	dec = NewDecoder(input)
	owned, err := dec.DecodeBytes()
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	input[1] = 's'
	if owned[0] != 'X' {
		t.Error("DecodeBytes returned a borrowed view, want a copy")
	}
}

func TestDecoder_FieldWithoutSchemaInfo(t *testing.T) {
	enc := NewEncoder()
	enc.EncodeVarintField(MustFieldTag(1, WireVarint), 300)
	enc.EncodeStringField(MustFieldTag(2, WireBytes), "raw")

	dec := NewDecoder(enc.Bytes())
	v1, err := dec.DecodeField()
	if err != nil {
		t.Fatalf("DecodeField: %v", err)
	}
	if v1.FieldNumber != 1 || v1.WireType != WireVarint || v1.Data != uint64(300) {
		t.Errorf("field 1 = %+v", v1)
	}
	v2, err := dec.DecodeField()
	if err != nil {
		t.Fatalf("DecodeField: %v", err)
	}
	if v2.FieldNumber != 2 || v2.WireType != WireBytes {
		t.Errorf("field 2 = %+v", v2)
	}
	if !reflect.DeepEqual(v2.Data, []byte("raw")) {
		t.Errorf("field 2 data = %#v", v2.Data)
	}
	v3, err := dec.DecodeField()
	if err != nil || v3 != nil {
		t.Errorf("at end: %+v, %v", v3, err)
	}
}

func BenchmarkDecodeMessage(b *testing.B) {
	msg := &schema.Message{
		Name: "Bench",
		Fields: []*schema.Field{
			primitiveField("name", 1, schema.TypeString),
			primitiveField("count", 2, schema.TypeInt64),
			primitiveField("ratio", 3, schema.TypeDouble),
		},
	}
	data := map[string]interface{}{
		"name":  "John Doe",
		"count": int64(456789),
		"ratio": 0.25,
	}
	encoded, err := EncodeMessage(data, msg, nil)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DecodeMessage(encoded, msg, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeMessage(b *testing.B) {
	msg := &schema.Message{
		Name: "Bench",
		Fields: []*schema.Field{
			primitiveField("name", 1, schema.TypeString),
			primitiveField("count", 2, schema.TypeInt64),
			primitiveField("ratio", 3, schema.TypeDouble),
		},
	}
	data := map[string]interface{}{
		"name":  "John Doe",
		"count": int64(456789),
		"ratio": 0.25,
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := EncodeMessage(data, msg, nil); err != nil {
			b.Fatal(err)
		}
	}
}
