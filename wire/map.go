package wire

import (
	"fmt"

	"github.com/lightproto/lightwire/schema"
)

// Map fields travel as repeated two-field entry messages: key is field 1,
// value is field 2, each entry one length-delimited blob.

const (
	mapKeyField   FieldNumber = 1
	mapValueField FieldNumber = 2
)

// MapDecoder handles map entry decoding operations
type MapDecoder struct {
	decoder *Decoder
}

// MapEncoder handles map entry encoding operations
type MapEncoder struct {
	encoder *Encoder
}

// NewMapDecoder creates a new map decoder
func NewMapDecoder(d *Decoder) *MapDecoder {
	return &MapDecoder{decoder: d}
}

// NewMapEncoder creates a new map encoder
func NewMapEncoder(e *Encoder) *MapEncoder {
	return &MapEncoder{encoder: e}
}

// DECODER METHODS

// DecodeMapEntry decodes one key-value entry. Missing key or value fields
// yield that type's zero value, and later occurrences win, matching singular
// field semantics inside the entry message.
func (md *MapDecoder) DecodeMapEntry(keyType, valueType *schema.FieldType) (interface{}, interface{}, error) {
	bd := NewBytesDecoder(md.decoder)
	entryBytes, err := bd.DecodeRawBytes()
	if err != nil {
		return nil, nil, fmt.Errorf("decode map entry: %w", err)
	}

	entry := NewDecoderWithSchemas(entryBytes, md.decoder.schemas)
	key := zeroValueOf(keyType)
	value := zeroValueOf(valueType)

	for entry.Remaining() > 0 {
		fieldNumber, wireType, err := entry.DecodeTag()
		if err != nil {
			return nil, nil, err
		}
		switch fieldNumber {
		case mapKeyField:
			key, err = entry.DecodeTypedField(keyType, wireType)
			if err != nil {
				return nil, nil, fmt.Errorf("decode map key: %w", err)
			}
		case mapValueField:
			value, err = entry.DecodeTypedField(valueType, wireType)
			if err != nil {
				return nil, nil, fmt.Errorf("decode map value: %w", err)
			}
		default:
			if err := entry.SkipField(wireType); err != nil {
				return nil, nil, err
			}
		}
	}
	return key, value, nil
}

// zeroValueOf returns the decode-side zero value for absent entry fields.
func zeroValueOf(fieldType *schema.FieldType) interface{} {
	switch fieldType.Kind {
	case schema.KindPrimitive:
		switch fieldType.PrimitiveType {
		case schema.TypeString:
			return ""
		case schema.TypeBytes:
			return []byte(nil)
		case schema.TypeBool:
			return false
		case schema.TypeInt32, schema.TypeSint32, schema.TypeSfixed32:
			return int32(0)
		case schema.TypeInt64, schema.TypeSint64, schema.TypeSfixed64:
			return int64(0)
		case schema.TypeUint32, schema.TypeFixed32:
			return uint32(0)
		case schema.TypeUint64, schema.TypeFixed64:
			return uint64(0)
		case schema.TypeFloat:
			return float32(0)
		case schema.TypeDouble:
			return float64(0)
		}
	case schema.KindEnum:
		return int32(0)
	}
	return nil
}

// ENCODER METHODS

// EncodeMap writes one tag + entry blob per key, using the field's
// precomputed tag bytes. Go map iteration order carries over; the wire format
// attaches no meaning to entry order.
func (me *MapEncoder) EncodeMap(mapData map[interface{}]interface{}, field *schema.Field) error {
	tag := fieldTagBytes(field)
	for key, value := range mapData {
		me.encoder.buf = append(me.encoder.buf, tag...)
		if err := me.EncodeMapEntry(key, value, field.Type.MapKey, field.Type.MapValue); err != nil {
			return err
		}
	}
	return nil
}

// EncodeMapEntry encodes one key-value pair as a length-delimited entry blob
func (me *MapEncoder) EncodeMapEntry(key, value interface{}, keyType, valueType *schema.FieldType) error {
	entry := NewEncoderWithSchemas(me.encoder.schemas)
	eme := NewMessageEncoder(entry)

	entry.buf = AppendTag(entry.buf, mapKeyField, WireTypeOf(keyType))
	if err := me.encodeEntryField(eme, key, keyType); err != nil {
		return fmt.Errorf("encode map key: %w", err)
	}

	entry.buf = AppendTag(entry.buf, mapValueField, WireTypeOf(valueType))
	if err := me.encodeEntryField(eme, value, valueType); err != nil {
		return fmt.Errorf("encode map value: %w", err)
	}

	me.encoder.EncodeBytes(entry.Bytes())
	return nil
}

// encodeEntryField encodes one entry field value, tag already written
func (me *MapEncoder) encodeEntryField(eme *MessageEncoder, value interface{}, fieldType *schema.FieldType) error {
	switch fieldType.Kind {
	case schema.KindPrimitive:
		return eme.encodePrimitiveField(value, fieldType.PrimitiveType)
	case schema.KindMessage:
		return eme.encodeMessageField(value, fieldType.MessageType)
	case schema.KindEnum:
		return eme.encodeEnumField(value, fieldType.EnumType)
	default:
		return fmt.Errorf("unsupported map field type: %s", fieldType.Kind)
	}
}

// encodeMapField encodes a complete map field for the message encoder,
// widening the common concrete map types callers hand in.
func (me *MessageEncoder) encodeMapField(value interface{}, field *schema.Field) error {
	var mapData map[interface{}]interface{}

	switch v := value.(type) {
	case map[interface{}]interface{}:
		mapData = v
	case map[string]interface{}:
		mapData = make(map[interface{}]interface{}, len(v))
		for k, val := range v {
			mapData[k] = val
		}
	case map[string]string:
		mapData = make(map[interface{}]interface{}, len(v))
		for k, val := range v {
			mapData[k] = val
		}
	case map[string]int64:
		mapData = make(map[interface{}]interface{}, len(v))
		for k, val := range v {
			mapData[k] = val
		}
	case map[string]float64:
		mapData = make(map[interface{}]interface{}, len(v))
		for k, val := range v {
			mapData[k] = val
		}
	case map[int32]string:
		mapData = make(map[interface{}]interface{}, len(v))
		for k, val := range v {
			mapData[k] = val
		}
	case map[int64]string:
		mapData = make(map[interface{}]interface{}, len(v))
		for k, val := range v {
			mapData[k] = val
		}
	default:
		return fmt.Errorf("unsupported map type: %T", value)
	}

	return NewMapEncoder(me.encoder).EncodeMap(mapData, field)
}
