package schema

// ProtoRepo represents a collection of .proto files and their definitions.
type ProtoRepo struct {
	ProtoFiles map[string]*ProtoFile `json:"proto_files"`
}

// ProtoFile represents a single .proto file
type ProtoFile struct {
	Name     string     `json:"name"`     // file.proto
	Package  string     `json:"package"`  // package name
	Syntax   string     `json:"syntax"`   // proto2 or proto3
	Imports  []string   `json:"imports"`  // imported file paths
	Messages []*Message `json:"messages"` // message definitions
	Enums    []*Enum    `json:"enums"`    // enum definitions
	Services []*Service `json:"services"` // service definitions
}

// Message represents a message definition. Field numbers are stable
// identifiers independent of declaration order and must be unique within the
// message.
type Message struct {
	Name        string     `json:"name"`         // "User"
	Fields      []*Field   `json:"fields"`       // message fields
	NestedTypes []*Message `json:"nested_types"` // nested messages
	NestedEnums []*Enum    `json:"nested_enums"` // nested enums
	OneofGroups []*Oneof   `json:"oneof_groups"` // oneof groups
	MapEntry    bool       `json:"map_entry"`    // synthesized map entry message

	// byNumber indexes fields (including oneof members) by field number.
	// Built once via BuildIndex; read-only afterwards.
	byNumber map[int32]*Field
}

// BuildIndex precomputes the field-number lookup table. The registry calls
// this once per message at load time; after that the index is read-only and
// safe for concurrent readers.
func (m *Message) BuildIndex() {
	idx := make(map[int32]*Field, len(m.Fields))
	for _, f := range m.Fields {
		idx[f.Number] = f
	}
	for _, g := range m.OneofGroups {
		for _, f := range g.Fields {
			idx[f.Number] = f
		}
	}
	m.byNumber = idx
}

// FieldByNumber returns the field with the given number, or nil if the
// message does not define it. Falls back to a linear scan when BuildIndex has
// not been called (hand-built test messages).
func (m *Message) FieldByNumber(number int32) *Field {
	if m.byNumber != nil {
		return m.byNumber[number]
	}
	for _, f := range m.Fields {
		if f.Number == number {
			return f
		}
	}
	for _, g := range m.OneofGroups {
		for _, f := range g.Fields {
			if f.Number == number {
				return f
			}
		}
	}
	return nil
}

// FieldByName returns the field with the given name, or nil.
func (m *Message) FieldByName(name string) *Field {
	for _, f := range m.Fields {
		if f.Name == name {
			return f
		}
	}
	for _, g := range m.OneofGroups {
		for _, f := range g.Fields {
			if f.Name == name {
				return f
			}
		}
	}
	return nil
}

// Field represents a message field
type Field struct {
	Name     string     `json:"name"`      // "user_name"
	Number   int32      `json:"number"`    // 1
	Label    FieldLabel `json:"label"`     // optional, required, repeated
	Type     FieldType  `json:"type"`      // field type information
	Packed   bool       `json:"packed"`    // repeated scalars: one length-delimited blob
	JsonName string     `json:"json_name"` // JSON field name

	// WireTag is the field's precomputed tag varint, populated by the
	// registry at load time. Immutable once set; the encoder copies it
	// instead of recomputing the tag arithmetic per call.
	WireTag []byte `json:"-"`
}

// Oneof represents a oneof group
type Oneof struct {
	Name   string   `json:"name"`   // "user_info"
	Fields []*Field `json:"fields"` // fields in this oneof
}

// FieldLabel represents field labels
type FieldLabel string

const (
	LabelOptional FieldLabel = "optional"
	LabelRequired FieldLabel = "required"
	LabelRepeated FieldLabel = "repeated"
)

// FieldType represents field type information
type FieldType struct {
	Kind          TypeKind      `json:"kind"`                     // primitive, message, enum, map
	PrimitiveType PrimitiveType `json:"primitive_type,omitempty"` // for primitive types
	MessageType   string        `json:"message_type,omitempty"`   // for message types
	EnumType      string        `json:"enum_type,omitempty"`      // for enum types
	MapKey        *FieldType    `json:"map_key,omitempty"`        // for map key type
	MapValue      *FieldType    `json:"map_value,omitempty"`      // for map value type
}

// TypeKind represents the kind of field type
type TypeKind string

const (
	KindPrimitive TypeKind = "primitive"
	KindMessage   TypeKind = "message"
	KindEnum      TypeKind = "enum"
	KindMap       TypeKind = "map"
)

// PrimitiveType represents the scalar types of the wire format
type PrimitiveType string

const (
	TypeDouble   PrimitiveType = "double"
	TypeFloat    PrimitiveType = "float"
	TypeInt64    PrimitiveType = "int64"
	TypeUint64   PrimitiveType = "uint64"
	TypeInt32    PrimitiveType = "int32"
	TypeFixed64  PrimitiveType = "fixed64"
	TypeFixed32  PrimitiveType = "fixed32"
	TypeBool     PrimitiveType = "bool"
	TypeString   PrimitiveType = "string"
	TypeBytes    PrimitiveType = "bytes"
	TypeUint32   PrimitiveType = "uint32"
	TypeSfixed32 PrimitiveType = "sfixed32"
	TypeSfixed64 PrimitiveType = "sfixed64"
	TypeSint32   PrimitiveType = "sint32"
	TypeSint64   PrimitiveType = "sint64"
)

var packedEligible = map[PrimitiveType]struct{}{
	TypeDouble:   {},
	TypeFloat:    {},
	TypeInt64:    {},
	TypeUint64:   {},
	TypeInt32:    {},
	TypeFixed64:  {},
	TypeFixed32:  {},
	TypeBool:     {},
	TypeUint32:   {},
	TypeSfixed32: {},
	TypeSfixed64: {},
	TypeSint32:   {},
	TypeSint64:   {},
}

// IsPackedType reports whether a repeated field of this primitive type may
// use the packed form. Strings, bytes and messages never pack.
func IsPackedType(t PrimitiveType) bool {
	_, ok := packedEligible[t]
	return ok
}

// Enum represents an enum definition
type Enum struct {
	Name       string       `json:"name"`        // "Status"
	Values     []*EnumValue `json:"values"`      // enum values
	AllowAlias bool         `json:"allow_alias"` // allow_alias option
}

// EnumValue represents an enum value
type EnumValue struct {
	Name   string `json:"name"`   // "ACTIVE"
	Number int32  `json:"number"` // 1
}

// Service represents a service definition
type Service struct {
	Name    string    `json:"name"`    // "UserService"
	Methods []*Method `json:"methods"` // service methods
}

// Method represents a service method
type Method struct {
	Name            string `json:"name"`             // "GetUser"
	InputType       string `json:"input_type"`       // "GetUserRequest"
	OutputType      string `json:"output_type"`      // "GetUserResponse"
	ClientStreaming bool   `json:"client_streaming"` // stream input
	ServerStreaming bool   `json:"server_streaming"` // stream output
}
