package wire

import (
	"fmt"
	"math"
	"sort"

	"github.com/lightproto/lightwire/schema"
)

// SchemaSource resolves message and enum definitions by fully-qualified name.
// The registry package implements it; the engines only need these two lookups.
type SchemaSource interface {
	GetMessage(name string) (*schema.Message, error)
	GetEnum(name string) (*schema.Enum, error)
}

// WireTypeOf returns the framing a field type uses on the wire. Map fields,
// message fields and string/bytes primitives are length-delimited; everything
// else follows its scalar encoding.
func WireTypeOf(fieldType *schema.FieldType) WireType {
	switch fieldType.Kind {
	case schema.KindPrimitive:
		switch fieldType.PrimitiveType {
		case schema.TypeString, schema.TypeBytes:
			return WireBytes
		case schema.TypeFloat, schema.TypeFixed32, schema.TypeSfixed32:
			return WireFixed32
		case schema.TypeDouble, schema.TypeFixed64, schema.TypeSfixed64:
			return WireFixed64
		default:
			return WireVarint
		}
	case schema.KindMessage, schema.KindMap:
		return WireBytes
	default:
		return WireVarint
	}
}

// FieldWireType returns the framing of the field's tag, accounting for the
// packed form of repeated scalars.
func FieldWireType(f *schema.Field) WireType {
	if f.Packed && f.Label == schema.LabelRepeated {
		return WireBytes
	}
	return WireTypeOf(&f.Type)
}

// fieldTagBytes returns the field's precomputed tag bytes, deriving them on
// the fly for hand-built descriptors the registry never froze. No memoization
// happens here, so concurrent encodes over a shared schema stay race-free.
func fieldTagBytes(f *schema.Field) []byte {
	if len(f.WireTag) > 0 {
		return f.WireTag
	}
	return AppendTag(nil, FieldNumber(f.Number), FieldWireType(f))
}

// MessageDecoder handles schema-driven message decoding
type MessageDecoder struct {
	decoder *Decoder
}

// MessageEncoder handles schema-driven message encoding
type MessageEncoder struct {
	encoder *Encoder
}

// NewMessageDecoder creates a new message decoder
func NewMessageDecoder(d *Decoder) *MessageDecoder {
	return &MessageDecoder{decoder: d}
}

// NewMessageEncoder creates a new message encoder
func NewMessageEncoder(e *Encoder) *MessageEncoder {
	return &MessageEncoder{encoder: e}
}

// EncodeMessage encodes data against msg and returns the wire bytes - main
// entry point. A message with no fields set encodes to zero bytes.
func EncodeMessage(data map[string]interface{}, msg *schema.Message, src SchemaSource) ([]byte, error) {
	encoder := NewEncoderWithSchemas(src)
	me := NewMessageEncoder(encoder)
	if err := me.EncodeMessage(data, msg); err != nil {
		return nil, err
	}
	return encoder.Bytes(), nil
}

// DecodeMessage decodes wire bytes against msg - main entry point. Decoding
// is all-or-nothing: any failure aborts and no partial result is returned.
func DecodeMessage(data []byte, msg *schema.Message, src SchemaSource) (map[string]interface{}, error) {
	decoder := NewDecoderWithSchemas(data, src)
	return decoder.DecodeWithSchema(msg)
}

// ===== DECODER =====

// DecodeWithSchema walks the remaining input one field at a time: read a tag,
// look the field number up in the message's field table, decode the value by
// its wire type, and skip unknown numbers by wire-type-aware length. Singular
// fields keep the last occurrence; repeated fields append in wire order.
func (d *Decoder) DecodeWithSchema(msg *schema.Message) (map[string]interface{}, error) {
	result := make(map[string]interface{})
	mapCollector := make(map[string]map[interface{}]interface{})
	repeatedCollector := make(map[string][]interface{})

	for d.Remaining() > 0 {
		fieldNumber, wireType, err := d.DecodeTag()
		if err != nil {
			return nil, fmt.Errorf("decode message %s: %w", msg.Name, err)
		}

		field := msg.FieldByNumber(int32(fieldNumber))
		if field == nil {
			// Unknown field - skip it, never reject
			if err := d.SkipField(wireType); err != nil {
				return nil, fmt.Errorf("decode message %s: %w", msg.Name, err)
			}
			continue
		}

		if field.Type.Kind == schema.KindMap {
			md := NewMapDecoder(d)
			key, value, err := md.DecodeMapEntry(field.Type.MapKey, field.Type.MapValue)
			if err != nil {
				return nil, wrapField(err, field.Name)
			}
			if mapCollector[field.Name] == nil {
				mapCollector[field.Name] = make(map[interface{}]interface{})
			}
			mapCollector[field.Name][key] = value
			continue
		}

		if field.Label == schema.LabelRepeated {
			elemWire := WireTypeOf(&field.Type)
			if wireType == WireBytes && elemWire != WireBytes {
				// Packed blob: concatenated raw element encodings.
				vals, err := d.decodePackedField(field)
				if err != nil {
					return nil, wrapField(err, field.Name)
				}
				repeatedCollector[field.Name] = append(repeatedCollector[field.Name], vals...)
			} else {
				value, err := d.DecodeTypedField(&field.Type, wireType)
				if err != nil {
					return nil, wrapField(err, field.Name)
				}
				repeatedCollector[field.Name] = append(repeatedCollector[field.Name], value)
			}
			continue
		}

		value, err := d.DecodeTypedField(&field.Type, wireType)
		if err != nil {
			return nil, wrapField(err, field.Name)
		}
		result[field.Name] = value
	}

	for fieldName, mapData := range mapCollector {
		result[fieldName] = mapData
	}
	for fieldName, repeatedData := range repeatedCollector {
		result[fieldName] = repeatedData
	}
	return result, nil
}

// decodePackedField decodes one packed blob into typed elements.
func (d *Decoder) decodePackedField(field *schema.Field) ([]interface{}, error) {
	pt := field.Type.PrimitiveType
	if field.Type.Kind == schema.KindEnum {
		raws, err := d.DecodePackedVarints()
		if err != nil {
			return nil, err
		}
		vals := make([]interface{}, 0, len(raws))
		for _, raw := range raws {
			v, err := d.resolveEnum(field.Type.EnumType, int32(raw))
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		return vals, nil
	}

	switch WireTypeOf(&field.Type) {
	case WireVarint:
		raws, err := d.DecodePackedVarints()
		if err != nil {
			return nil, err
		}
		vals := make([]interface{}, 0, len(raws))
		for _, raw := range raws {
			vals = append(vals, convertVarintValue(pt, raw))
		}
		return vals, nil
	case WireFixed32:
		raws, err := d.DecodePackedFixed32()
		if err != nil {
			return nil, err
		}
		vals := make([]interface{}, 0, len(raws))
		for _, raw := range raws {
			vals = append(vals, convertFixed32Value(pt, raw))
		}
		return vals, nil
	case WireFixed64:
		raws, err := d.DecodePackedFixed64()
		if err != nil {
			return nil, err
		}
		vals := make([]interface{}, 0, len(raws))
		for _, raw := range raws {
			vals = append(vals, convertFixed64Value(pt, raw))
		}
		return vals, nil
	default:
		return nil, fmt.Errorf("packed form for %s: %w", pt, ErrInvalidWireType)
	}
}

// DecodeTypedField routes to the appropriate decoder based on field type
func (d *Decoder) DecodeTypedField(fieldType *schema.FieldType, wireType WireType) (interface{}, error) {
	switch fieldType.Kind {
	case schema.KindPrimitive:
		return d.decodePrimitive(fieldType.PrimitiveType, wireType)
	case schema.KindMessage:
		md := NewMessageDecoder(d)
		return md.DecodeMessage(fieldType.MessageType)
	case schema.KindEnum:
		vd := NewVarintDecoder(d)
		number, err := vd.DecodeEnum()
		if err != nil {
			return nil, err
		}
		return d.resolveEnum(fieldType.EnumType, number)
	default:
		return d.decodeRawValue(wireType)
	}
}

// resolveEnum maps a wire number to its enum value name. Without a schema
// source the raw number is surfaced; unknown numbers are surfaced too, so
// schema drift on one enum does not poison the whole decode.
func (d *Decoder) resolveEnum(enumType string, number int32) (interface{}, error) {
	if d.schemas == nil {
		return number, nil
	}
	enum, err := d.schemas.GetEnum(enumType)
	if err != nil {
		return number, nil
	}
	for _, ev := range enum.Values {
		if ev.Number == number {
			return ev.Name, nil
		}
	}
	return number, nil
}

// decodePrimitive decodes a primitive value framed by wireType
func (d *Decoder) decodePrimitive(primitiveType schema.PrimitiveType, wireType WireType) (interface{}, error) {
	switch wireType {
	case WireVarint:
		vd := NewVarintDecoder(d)
		raw, err := vd.DecodeVarint()
		if err != nil {
			return nil, err
		}
		return convertVarintValue(primitiveType, raw), nil
	case WireFixed32:
		fd := NewFixedDecoder(d)
		raw, err := fd.DecodeFixed32()
		if err != nil {
			return nil, err
		}
		return convertFixed32Value(primitiveType, raw), nil
	case WireFixed64:
		fd := NewFixedDecoder(d)
		raw, err := fd.DecodeFixed64()
		if err != nil {
			return nil, err
		}
		return convertFixed64Value(primitiveType, raw), nil
	case WireBytes:
		bd := NewBytesDecoder(d)
		if primitiveType == schema.TypeString {
			return bd.DecodeString()
		}
		if config.BorrowBytesOnDecode {
			return bd.DecodeRawBytes()
		}
		return bd.DecodeBytes()
	default:
		return nil, fmt.Errorf("wire type %d for primitive %s: %w", wireType, primitiveType, ErrInvalidWireType)
	}
}

// convertVarintValue narrows a raw varint to the schema's scalar type
func convertVarintValue(primitiveType schema.PrimitiveType, raw uint64) interface{} {
	switch primitiveType {
	case schema.TypeInt32:
		return int32(raw)
	case schema.TypeInt64:
		return int64(raw)
	case schema.TypeUint32:
		return uint32(raw)
	case schema.TypeUint64:
		return raw
	case schema.TypeSint32:
		return DecodeZigZag32(raw)
	case schema.TypeSint64:
		return DecodeZigZag64(raw)
	case schema.TypeBool:
		return raw != 0
	default:
		return raw
	}
}

// convertFixed32Value interprets 4 raw bytes per the schema's scalar type
func convertFixed32Value(primitiveType schema.PrimitiveType, raw uint32) interface{} {
	switch primitiveType {
	case schema.TypeFloat:
		return math.Float32frombits(raw)
	case schema.TypeSfixed32:
		return int32(raw)
	default:
		return raw
	}
}

// convertFixed64Value interprets 8 raw bytes per the schema's scalar type
func convertFixed64Value(primitiveType schema.PrimitiveType, raw uint64) interface{} {
	switch primitiveType {
	case schema.TypeDouble:
		return math.Float64frombits(raw)
	case schema.TypeSfixed64:
		return int64(raw)
	default:
		return raw
	}
}

// DecodeMessage decodes a nested length-delimited message. The nested decoder
// runs over a view borrowed from the input, bounded to the declared length.
func (md *MessageDecoder) DecodeMessage(messageType string) (interface{}, error) {
	bd := NewBytesDecoder(md.decoder)

	if md.decoder.schemas == nil {
		// No schema source: surface the raw encoding, owned by the caller.
		return bd.DecodeBytes()
	}
	msg, err := md.decoder.schemas.GetMessage(messageType)
	if err != nil {
		return bd.DecodeBytes()
	}

	messageBytes, err := bd.DecodeRawBytes()
	if err != nil {
		return nil, fmt.Errorf("decode nested %s: %w", messageType, err)
	}
	nested := NewDecoderWithSchemas(messageBytes, md.decoder.schemas)
	return nested.DecodeWithSchema(msg)
}

// ===== ENCODER =====

// EncodeMessage appends every field of data present in msg's field table,
// lowest field number first. Data keys msg does not define are ignored.
func (me *MessageEncoder) EncodeMessage(data map[string]interface{}, msg *schema.Message) error {
	type fieldEntry struct {
		value interface{}
		field *schema.Field
	}
	entries := make([]fieldEntry, 0, len(data))
	for fieldName, fieldValue := range data {
		field := msg.FieldByName(fieldName)
		if field == nil {
			continue
		}
		entries = append(entries, fieldEntry{value: fieldValue, field: field})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].field.Number < entries[j].field.Number
	})

	for _, entry := range entries {
		field := entry.field

		var err error
		switch {
		case field.Type.Kind == schema.KindMap:
			err = me.encodeMapField(entry.value, field)
		case field.Label == schema.LabelRepeated:
			err = me.encodeRepeatedField(entry.value, field)
		default:
			me.encoder.buf = append(me.encoder.buf, fieldTagBytes(field)...)
			err = me.encodeFieldValue(entry.value, field)
		}
		if err != nil {
			return wrapField(err, field.Name)
		}
	}
	return nil
}

// encodeFieldValue encodes a singular value, tag already written
func (me *MessageEncoder) encodeFieldValue(value interface{}, field *schema.Field) error {
	switch field.Type.Kind {
	case schema.KindPrimitive:
		return me.encodePrimitiveField(value, field.Type.PrimitiveType)
	case schema.KindMessage:
		return me.encodeMessageField(value, field.Type.MessageType)
	case schema.KindEnum:
		return me.encodeEnumField(value, field.Type.EnumType)
	default:
		return fmt.Errorf("unsupported field type: %s", field.Type.Kind)
	}
}

// encodeRepeatedField writes either one packed blob or one tag+value pair per
// element, in slice order.
func (me *MessageEncoder) encodeRepeatedField(value interface{}, field *schema.Field) error {
	slice, err := toInterfaceSlice(value)
	if err != nil {
		return err
	}
	if len(slice) == 0 {
		return nil
	}

	if field.Packed && field.Type.Kind == schema.KindPrimitive && schema.IsPackedType(field.Type.PrimitiveType) {
		return me.encodePackedField(slice, field)
	}

	tag := fieldTagBytes(field)
	for _, element := range slice {
		me.encoder.buf = append(me.encoder.buf, tag...)
		if err := me.encodeFieldValue(element, field); err != nil {
			return err
		}
	}
	return nil
}

// encodePackedField concatenates raw element encodings inside one
// length-delimited blob. The blob is built in a scratch encoder so the length
// prefix is exact.
func (me *MessageEncoder) encodePackedField(slice []interface{}, field *schema.Field) error {
	scratch := NewEncoder()
	sme := NewMessageEncoder(scratch)
	for _, element := range slice {
		if err := sme.encodePrimitiveField(element, field.Type.PrimitiveType); err != nil {
			return err
		}
	}
	me.encoder.buf = append(me.encoder.buf, fieldTagBytes(field)...)
	me.encoder.EncodeBytes(scratch.Bytes())
	return nil
}

// encodePrimitiveField encodes one scalar value, tag already written
func (me *MessageEncoder) encodePrimitiveField(value interface{}, primitiveType schema.PrimitiveType) error {
	e := me.encoder
	switch primitiveType {
	case schema.TypeString:
		v, ok := value.(string)
		if !ok {
			return typeMismatch("string", value)
		}
		e.EncodeString(v)
	case schema.TypeBytes:
		v, ok := value.([]byte)
		if !ok {
			return typeMismatch("[]byte", value)
		}
		e.EncodeBytes(v)
	case schema.TypeInt32:
		v, ok := value.(int32)
		if !ok {
			return typeMismatch("int32", value)
		}
		NewVarintEncoder(e).EncodeInt32(v)
	case schema.TypeInt64:
		v, ok := value.(int64)
		if !ok {
			return typeMismatch("int64", value)
		}
		NewVarintEncoder(e).EncodeInt64(v)
	case schema.TypeUint32:
		v, ok := value.(uint32)
		if !ok {
			return typeMismatch("uint32", value)
		}
		NewVarintEncoder(e).EncodeUint32(v)
	case schema.TypeUint64:
		v, ok := value.(uint64)
		if !ok {
			return typeMismatch("uint64", value)
		}
		NewVarintEncoder(e).EncodeUint64(v)
	case schema.TypeSint32:
		v, ok := value.(int32)
		if !ok {
			return typeMismatch("int32", value)
		}
		NewVarintEncoder(e).EncodeSint32(v)
	case schema.TypeSint64:
		v, ok := value.(int64)
		if !ok {
			return typeMismatch("int64", value)
		}
		NewVarintEncoder(e).EncodeSint64(v)
	case schema.TypeBool:
		v, ok := value.(bool)
		if !ok {
			return typeMismatch("bool", value)
		}
		NewVarintEncoder(e).EncodeBool(v)
	case schema.TypeFloat:
		v, ok := value.(float32)
		if !ok {
			return typeMismatch("float32", value)
		}
		NewFixedEncoder(e).EncodeFloat32(v)
	case schema.TypeDouble:
		v, ok := value.(float64)
		if !ok {
			return typeMismatch("float64", value)
		}
		NewFixedEncoder(e).EncodeFloat64(v)
	case schema.TypeFixed32:
		v, ok := value.(uint32)
		if !ok {
			return typeMismatch("uint32", value)
		}
		NewFixedEncoder(e).EncodeFixed32(v)
	case schema.TypeFixed64:
		v, ok := value.(uint64)
		if !ok {
			return typeMismatch("uint64", value)
		}
		NewFixedEncoder(e).EncodeFixed64(v)
	case schema.TypeSfixed32:
		v, ok := value.(int32)
		if !ok {
			return typeMismatch("int32", value)
		}
		NewFixedEncoder(e).EncodeSfixed32(v)
	case schema.TypeSfixed64:
		v, ok := value.(int64)
		if !ok {
			return typeMismatch("int64", value)
		}
		NewFixedEncoder(e).EncodeSfixed64(v)
	default:
		return fmt.Errorf("unsupported primitive type: %s", primitiveType)
	}
	return nil
}

// encodeMessageField encodes a nested message, tag already written. Raw bytes
// pass through untouched; maps are encoded against the nested schema.
func (me *MessageEncoder) encodeMessageField(value interface{}, messageTypeName string) error {
	if messageBytes, ok := value.([]byte); ok {
		me.encoder.EncodeBytes(messageBytes)
		return nil
	}

	messageData, ok := value.(map[string]interface{})
	if !ok {
		return typeMismatch("map[string]interface{} or []byte", value)
	}
	if me.encoder.schemas == nil {
		return fmt.Errorf("schema source required to encode nested message %s", messageTypeName)
	}
	messageSchema, err := me.encoder.schemas.GetMessage(messageTypeName)
	if err != nil {
		return fmt.Errorf("nested message %s: %w", messageTypeName, err)
	}

	scratch := NewEncoderWithSchemas(me.encoder.schemas)
	if err := NewMessageEncoder(scratch).EncodeMessage(messageData, messageSchema); err != nil {
		return err
	}
	me.encoder.EncodeBytes(scratch.Bytes())
	return nil
}

// encodeEnumField encodes an enum value, tag already written. Accepts the
// wire number directly or the value name resolved through the schema source.
func (me *MessageEncoder) encodeEnumField(value interface{}, enumType string) error {
	ve := NewVarintEncoder(me.encoder)
	switch v := value.(type) {
	case int32:
		ve.EncodeEnum(v)
		return nil
	case string:
		if me.encoder.schemas == nil {
			return fmt.Errorf("schema source required to encode enum name %q", v)
		}
		enum, err := me.encoder.schemas.GetEnum(enumType)
		if err != nil {
			return fmt.Errorf("enum %s: %w", enumType, err)
		}
		for _, ev := range enum.Values {
			if ev.Name == v {
				ve.EncodeEnum(ev.Number)
				return nil
			}
		}
		return fmt.Errorf("enum %s has no value named %q", enumType, v)
	default:
		return typeMismatch("int32 or string", value)
	}
}

// typeMismatch reports a value of the wrong dynamic type for a field
func typeMismatch(want string, got interface{}) error {
	return fmt.Errorf("expected %s, got %T", want, got)
}

// toInterfaceSlice widens the common concrete slice types callers hand to
// repeated fields.
func toInterfaceSlice(value interface{}) ([]interface{}, error) {
	switch v := value.(type) {
	case []interface{}:
		return v, nil
	case []map[string]interface{}:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, nil
	case []string:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, nil
	case []int32:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, nil
	case []int64:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, nil
	case []uint32:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, nil
	case []uint64:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, nil
	case []bool:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, nil
	case []float32:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, nil
	case []float64:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, nil
	case [][]byte:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, nil
	default:
		return nil, fmt.Errorf("repeated field value must be a slice, got %T", value)
	}
}

// Convenience methods for direct access

// DecodeMessage - convenience method for main decoder
func (d *Decoder) DecodeMessage(messageType string) (interface{}, error) {
	md := NewMessageDecoder(d)
	return md.DecodeMessage(messageType)
}

// EncodeMessage - convenience method for main encoder
func (e *Encoder) EncodeMessage(data map[string]interface{}, msg *schema.Message) error {
	me := NewMessageEncoder(e)
	return me.EncodeMessage(data, msg)
}
