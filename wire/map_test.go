package wire

import (
	"reflect"
	"testing"

	"github.com/lightproto/lightwire/schema"
)

func mapField(name string, number int32, key, value schema.FieldType) *schema.Field {
	return &schema.Field{
		Name:   name,
		Number: number,
		Label:  schema.LabelRepeated,
		Type: schema.FieldType{
			Kind:     schema.KindMap,
			MapKey:   &key,
			MapValue: &value,
		},
	}
}

func primType(pt schema.PrimitiveType) schema.FieldType {
	return schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: pt}
}

func TestMap_StringToInt64RoundTrip(t *testing.T) {
	msg := &schema.Message{
		Name: "Totals",
		Fields: []*schema.Field{
			mapField("totals", 1, primType(schema.TypeString), primType(schema.TypeInt64)),
		},
	}

	data := map[string]interface{}{
		"totals": map[string]int64{"books": 1200, "food": 3400, "rent": 98000},
	}
	encoded, err := EncodeMessage(data, msg, nil)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	decoded, err := DecodeMessage(encoded, msg, nil)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}

	want := map[interface{}]interface{}{
		"books": int64(1200),
		"food":  int64(3400),
		"rent":  int64(98000),
	}
	if !reflect.DeepEqual(decoded["totals"], want) {
		t.Errorf("totals = %#v, want %#v", decoded["totals"], want)
	}
}

func TestMap_Int32KeyRoundTrip(t *testing.T) {
	msg := &schema.Message{
		Name: "Names",
		Fields: []*schema.Field{
			mapField("names", 1, primType(schema.TypeInt32), primType(schema.TypeString)),
		},
	}

	data := map[string]interface{}{
		"names": map[int32]string{1: "one", -2: "minus two"},
	}
	encoded, err := EncodeMessage(data, msg, nil)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	decoded, err := DecodeMessage(encoded, msg, nil)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}

	want := map[interface{}]interface{}{
		int32(1):  "one",
		int32(-2): "minus two",
	}
	if !reflect.DeepEqual(decoded["names"], want) {
		t.Errorf("names = %#v, want %#v", decoded["names"], want)
	}
}

func TestMap_MessageValue(t *testing.T) {
	itemMsg := &schema.Message{
		Name: "Item",
		Fields: []*schema.Field{
			primitiveField("label", 1, schema.TypeString),
			primitiveField("qty", 2, schema.TypeInt32),
		},
	}
	cartMsg := &schema.Message{
		Name: "Cart",
		Fields: []*schema.Field{
			mapField("items", 1,
				primType(schema.TypeString),
				schema.FieldType{Kind: schema.KindMessage, MessageType: "Item"}),
		},
	}
	src := &fakeSchemas{
		messages: map[string]*schema.Message{"Item": itemMsg, "Cart": cartMsg},
	}

	data := map[string]interface{}{
		"items": map[string]interface{}{
			"sku-1": map[string]interface{}{"label": "pen", "qty": int32(3)},
		},
	}
	encoded, err := EncodeMessage(data, cartMsg, src)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	decoded, err := DecodeMessage(encoded, cartMsg, src)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}

	want := map[interface{}]interface{}{
		"sku-1": map[string]interface{}{"label": "pen", "qty": int32(3)},
	}
	if !reflect.DeepEqual(decoded["items"], want) {
		t.Errorf("items = %#v, want %#v", decoded["items"], want)
	}
}

func TestMap_MissingEntryFieldsYieldZeroValues(t *testing.T) {
	// An entry blob may omit its key or value field; the absent side decodes
	// to the type's zero value.
	msg := &schema.Message{
		Name: "Totals",
		Fields: []*schema.Field{
			mapField("totals", 1, primType(schema.TypeString), primType(schema.TypeInt64)),
		},
	}

	// Entry carrying only a value: field 2, varint 55.
	entry := AppendTag(nil, mapValueField, WireVarint)
	entry = AppendVarint(entry, 55)
	input := AppendTag(nil, 1, WireBytes)
	input = AppendVarint(input, uint64(len(entry)))
	input = append(input, entry...)

	decoded, err := DecodeMessage(input, msg, nil)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	want := map[interface{}]interface{}{"": int64(55)}
	if !reflect.DeepEqual(decoded["totals"], want) {
		t.Errorf("totals = %#v, want %#v", decoded["totals"], want)
	}

	// Fully empty entry: zero-length blob decodes to zero key and zero value.
	input = AppendTag(nil, 1, WireBytes)
	input = AppendVarint(input, 0)
	decoded, err = DecodeMessage(input, msg, nil)
	if err != nil {
		t.Fatalf("DecodeMessage empty entry: %v", err)
	}
	want = map[interface{}]interface{}{"": int64(0)}
	if !reflect.DeepEqual(decoded["totals"], want) {
		t.Errorf("totals = %#v, want %#v", decoded["totals"], want)
	}
}

func TestMap_LaterEntryWinsPerKey(t *testing.T) {
	msg := &schema.Message{
		Name: "Totals",
		Fields: []*schema.Field{
			mapField("totals", 1, primType(schema.TypeString), primType(schema.TypeInt64)),
		},
	}

	enc := NewEncoder()
	me := NewMapEncoder(enc)
	field := msg.Fields[0]
	for _, v := range []int64{1, 2} {
		enc.buf = append(enc.buf, fieldTagBytes(field)...)
		if err := me.EncodeMapEntry("k", v, field.Type.MapKey, field.Type.MapValue); err != nil {
			t.Fatalf("EncodeMapEntry: %v", err)
		}
	}

	decoded, err := DecodeMessage(enc.Bytes(), msg, nil)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	want := map[interface{}]interface{}{"k": int64(2)}
	if !reflect.DeepEqual(decoded["totals"], want) {
		t.Errorf("totals = %#v, want %#v", decoded["totals"], want)
	}
}

func TestMap_EntryWireLayout(t *testing.T) {
	// One entry of {"a": 5} is tag(1, bytes) + len 5 + [tag(1, bytes) + len 1 +
	// "a" + tag(2, varint) + 5].
	msg := &schema.Message{
		Name: "Totals",
		Fields: []*schema.Field{
			mapField("totals", 1, primType(schema.TypeString), primType(schema.TypeInt64)),
		},
	}

	encoded, err := EncodeMessage(map[string]interface{}{
		"totals": map[string]int64{"a": 5},
	}, msg, nil)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}

	want := []byte{0x0A, 0x05, 0x0A, 0x01, 'a', 0x10, 0x05}
	if !reflect.DeepEqual(encoded, want) {
		t.Errorf("entry bytes = % X, want % X", encoded, want)
	}
}
