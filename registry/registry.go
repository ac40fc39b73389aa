// Package registry stores the schema of loaded message types. The codec
// engines look definitions up here when they need to encode or decode a
// message by name.
package registry

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	protoparser "github.com/yoheimuta/go-protoparser/v4"
	"github.com/yoheimuta/go-protoparser/v4/parser"

	"github.com/lightproto/lightwire/schema"
	"github.com/lightproto/lightwire/wire"
)

// Registry holds fully-qualified symbol tables for messages, enums and
// services. After LoadSchema returns the tables are read-only, every field's
// tag bytes are precomputed, and the registry is safe for unlimited
// concurrent readers.
type Registry struct {
	repo     *schema.ProtoRepo
	messages map[string]*schema.Message // fully qualified name -> message
	enums    map[string]*schema.Enum    // fully qualified name -> enum
	services map[string]*schema.Service // fully qualified name -> service
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		repo:     &schema.ProtoRepo{ProtoFiles: make(map[string]*schema.ProtoFile)},
		messages: make(map[string]*schema.Message),
		enums:    make(map[string]*schema.Enum),
		services: make(map[string]*schema.Service),
	}
}

// LoadSchema parses the .proto file at protoPath, or every .proto file under
// it when it names a directory, and merges the definitions into the registry.
func (r *Registry) LoadSchema(protoPath string) error {
	info, err := os.Stat(protoPath)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	if !info.IsDir() {
		if !strings.HasSuffix(protoPath, ".proto") {
			return fmt.Errorf("file %s is not a .proto file", protoPath)
		}
		if err := r.loadProtoFile(protoPath); err != nil {
			return fmt.Errorf("failed to load proto file %s: %w", protoPath, err)
		}
	} else {
		err := filepath.WalkDir(protoPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".proto") {
				return nil
			}
			if err := r.loadProtoFile(path); err != nil {
				return fmt.Errorf("failed to load proto file %s: %w", path, err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to walk directory: %w", err)
		}
	}

	return r.buildSymbolTable()
}

// loadProtoFile parses one file with go-protoparser and converts its AST into
// the schema model.
func (r *Registry) loadProtoFile(filePath string) error {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	parsed, err := protoparser.Parse(bytes.NewBuffer(content))
	if err != nil {
		return fmt.Errorf("failed to parse: %w", err)
	}

	protoFile := &schema.ProtoFile{
		Name:   filepath.Base(filePath),
		Syntax: "proto3",
	}
	if parsed.Syntax != nil && strings.Contains(parsed.Syntax.ProtobufVersion, "proto2") {
		protoFile.Syntax = "proto2"
	}

	for _, body := range parsed.ProtoBody {
		switch b := body.(type) {
		case *parser.Package:
			protoFile.Package = b.Name
		case *parser.Import:
			protoFile.Imports = append(protoFile.Imports, strings.Trim(b.Location, `"`))
		case *parser.Message:
			msg, err := convertMessage(b)
			if err != nil {
				return err
			}
			protoFile.Messages = append(protoFile.Messages, msg)
		case *parser.Enum:
			enum, err := convertEnum(b)
			if err != nil {
				return err
			}
			protoFile.Enums = append(protoFile.Enums, enum)
		case *parser.Service:
			protoFile.Services = append(protoFile.Services, convertService(b))
		}
	}

	r.repo.ProtoFiles[filePath] = protoFile
	return nil
}

// ===== AST CONVERSION =====

var primitiveTypes = map[string]schema.PrimitiveType{
	"double":   schema.TypeDouble,
	"float":    schema.TypeFloat,
	"int64":    schema.TypeInt64,
	"uint64":   schema.TypeUint64,
	"int32":    schema.TypeInt32,
	"fixed64":  schema.TypeFixed64,
	"fixed32":  schema.TypeFixed32,
	"bool":     schema.TypeBool,
	"string":   schema.TypeString,
	"bytes":    schema.TypeBytes,
	"uint32":   schema.TypeUint32,
	"sfixed32": schema.TypeSfixed32,
	"sfixed64": schema.TypeSfixed64,
	"sint32":   schema.TypeSint32,
	"sint64":   schema.TypeSint64,
}

// convertType maps a .proto type name to field type information. Named types
// are recorded as messages here; the enum pass of buildSymbolTable corrects
// the kind once every enum name is known.
func convertType(typeName string) schema.FieldType {
	if pt, ok := primitiveTypes[typeName]; ok {
		return schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: pt}
	}
	return schema.FieldType{Kind: schema.KindMessage, MessageType: strings.TrimPrefix(typeName, ".")}
}

func convertMessage(m *parser.Message) (*schema.Message, error) {
	msg := &schema.Message{Name: m.MessageName}

	for _, body := range m.MessageBody {
		switch b := body.(type) {
		case *parser.Field:
			field, err := convertField(b)
			if err != nil {
				return nil, fmt.Errorf("message %s: %w", m.MessageName, err)
			}
			msg.Fields = append(msg.Fields, field)
		case *parser.MapField:
			field, err := convertMapField(b)
			if err != nil {
				return nil, fmt.Errorf("message %s: %w", m.MessageName, err)
			}
			msg.Fields = append(msg.Fields, field)
		case *parser.Oneof:
			group, err := convertOneof(b)
			if err != nil {
				return nil, fmt.Errorf("message %s: %w", m.MessageName, err)
			}
			msg.OneofGroups = append(msg.OneofGroups, group)
		case *parser.Message:
			nested, err := convertMessage(b)
			if err != nil {
				return nil, err
			}
			msg.NestedTypes = append(msg.NestedTypes, nested)
		case *parser.Enum:
			nested, err := convertEnum(b)
			if err != nil {
				return nil, err
			}
			msg.NestedEnums = append(msg.NestedEnums, nested)
		}
	}
	return msg, nil
}

func convertField(f *parser.Field) (*schema.Field, error) {
	number, err := parseFieldNumber(f.FieldNumber, f.FieldName)
	if err != nil {
		return nil, err
	}

	field := &schema.Field{
		Name:   f.FieldName,
		Number: number,
		Label:  schema.LabelOptional,
		Type:   convertType(f.Type),
	}
	if f.IsRepeated {
		field.Label = schema.LabelRepeated
	}
	if f.IsRequired {
		field.Label = schema.LabelRequired
	}
	field.Packed = fieldOptionBool(f.FieldOptions, "packed")
	return field, nil
}

func convertMapField(f *parser.MapField) (*schema.Field, error) {
	number, err := parseFieldNumber(f.FieldNumber, f.MapName)
	if err != nil {
		return nil, err
	}

	keyType := convertType(f.KeyType)
	valueType := convertType(f.Type)
	return &schema.Field{
		Name:   f.MapName,
		Number: number,
		Label:  schema.LabelOptional,
		Type: schema.FieldType{
			Kind:     schema.KindMap,
			MapKey:   &keyType,
			MapValue: &valueType,
		},
	}, nil
}

func convertOneof(o *parser.Oneof) (*schema.Oneof, error) {
	group := &schema.Oneof{Name: o.OneofName}
	for _, f := range o.OneofFields {
		number, err := parseFieldNumber(f.FieldNumber, f.FieldName)
		if err != nil {
			return nil, err
		}
		group.Fields = append(group.Fields, &schema.Field{
			Name:   f.FieldName,
			Number: number,
			Label:  schema.LabelOptional,
			Type:   convertType(f.Type),
		})
	}
	return group, nil
}

func convertEnum(e *parser.Enum) (*schema.Enum, error) {
	enum := &schema.Enum{Name: e.EnumName}
	for _, body := range e.EnumBody {
		switch b := body.(type) {
		case *parser.EnumField:
			number, err := strconv.ParseInt(b.Number, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("enum %s value %s: bad number %q", e.EnumName, b.Ident, b.Number)
			}
			enum.Values = append(enum.Values, &schema.EnumValue{
				Name:   b.Ident,
				Number: int32(number),
			})
		case *parser.Option:
			if b.OptionName == "allow_alias" && b.Constant == "true" {
				enum.AllowAlias = true
			}
		}
	}
	return enum, nil
}

func convertService(s *parser.Service) *schema.Service {
	service := &schema.Service{Name: s.ServiceName}
	for _, body := range s.ServiceBody {
		rpc, ok := body.(*parser.RPC)
		if !ok {
			continue
		}
		method := &schema.Method{Name: rpc.RPCName}
		if rpc.RPCRequest != nil {
			method.InputType = rpc.RPCRequest.MessageType
			method.ClientStreaming = rpc.RPCRequest.IsStream
		}
		if rpc.RPCResponse != nil {
			method.OutputType = rpc.RPCResponse.MessageType
			method.ServerStreaming = rpc.RPCResponse.IsStream
		}
		service.Methods = append(service.Methods, method)
	}
	return service
}

func parseFieldNumber(raw, fieldName string) (int32, error) {
	number, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || number < 1 || wire.FieldNumber(number) > wire.MaxFieldNumber {
		return 0, fmt.Errorf("field %s: bad field number %q", fieldName, raw)
	}
	return int32(number), nil
}

func fieldOptionBool(opts []*parser.FieldOption, name string) bool {
	for _, opt := range opts {
		if opt.OptionName == name && opt.Constant == "true" {
			return true
		}
	}
	return false
}

// ===== SYMBOL TABLE =====

// buildSymbolTable registers all names, fixes up enum-typed fields, and
// freezes every message: field-number index built, per-field tag bytes
// derived once. Everything after this is read-only.
func (r *Registry) buildSymbolTable() error {
	// Pass 1: register all message and enum names.
	for _, protoFile := range r.repo.ProtoFiles {
		pkg := protoFile.Package
		for _, msg := range protoFile.Messages {
			r.registerMessage(pkg, "", msg)
		}
		for _, enum := range protoFile.Enums {
			r.enums[r.getFullName(pkg, enum.Name)] = enum
		}
		for _, service := range protoFile.Services {
			r.services[r.getFullName(pkg, service.Name)] = service
		}
	}

	// Pass 2: named field types registered as enums are really enums.
	for _, msg := range r.messages {
		r.resolveFieldKinds(msg)
	}

	// Pass 3: freeze - precompute tag bytes and field-number indexes.
	for name, msg := range r.messages {
		if err := r.freezeMessage(name, msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) registerMessage(pkg, parent string, msg *schema.Message) {
	name := msg.Name
	if parent != "" {
		name = parent + "." + msg.Name
	}
	r.messages[r.getFullName(pkg, name)] = msg

	for _, nested := range msg.NestedTypes {
		r.registerMessage(pkg, name, nested)
	}
	for _, nestedEnum := range msg.NestedEnums {
		r.enums[r.getFullName(pkg, name+"."+nestedEnum.Name)] = nestedEnum
	}
}

// resolveFieldKinds rewrites KindMessage fields whose type name resolves to a
// registered enum.
func (r *Registry) resolveFieldKinds(msg *schema.Message) {
	fix := func(ft *schema.FieldType) {
		if ft == nil {
			return
		}
		if ft.Kind == schema.KindMessage {
			if _, err := r.GetEnum(ft.MessageType); err == nil {
				if _, err := r.GetMessage(ft.MessageType); err != nil {
					ft.Kind = schema.KindEnum
					ft.EnumType = ft.MessageType
					ft.MessageType = ""
				}
			}
		}
	}
	for _, f := range msg.Fields {
		fix(&f.Type)
		fix(f.Type.MapKey)
		fix(f.Type.MapValue)
	}
	for _, g := range msg.OneofGroups {
		for _, f := range g.Fields {
			fix(&f.Type)
		}
	}
}

func (r *Registry) freezeMessage(name string, msg *schema.Message) error {
	seen := make(map[int32]string, len(msg.Fields))
	freeze := func(f *schema.Field) error {
		if prev, dup := seen[f.Number]; dup {
			return fmt.Errorf("message %s: fields %s and %s share number %d", name, prev, f.Name, f.Number)
		}
		seen[f.Number] = f.Name
		f.WireTag = wire.AppendTag(nil, wire.FieldNumber(f.Number), wire.FieldWireType(f))
		return nil
	}
	for _, f := range msg.Fields {
		if err := freeze(f); err != nil {
			return err
		}
	}
	for _, g := range msg.OneofGroups {
		for _, f := range g.Fields {
			if err := freeze(f); err != nil {
				return err
			}
		}
	}
	msg.BuildIndex()
	return nil
}

func (r *Registry) getFullName(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

// ===== LOOKUPS =====

// GetMessage retrieves a message definition by name. A bare name matches any
// registered message whose fully-qualified name ends with it.
func (r *Registry) GetMessage(name string) (*schema.Message, error) {
	if msg, exists := r.messages[name]; exists {
		return msg, nil
	}
	for fullName, msg := range r.messages {
		if strings.HasSuffix(fullName, "."+name) {
			return msg, nil
		}
	}
	return nil, fmt.Errorf("message not found: %s", name)
}

// GetEnum retrieves an enum definition by name
func (r *Registry) GetEnum(name string) (*schema.Enum, error) {
	if enum, exists := r.enums[name]; exists {
		return enum, nil
	}
	for fullName, enum := range r.enums {
		if strings.HasSuffix(fullName, "."+name) {
			return enum, nil
		}
	}
	return nil, fmt.Errorf("enum not found: %s", name)
}

// GetService retrieves a service definition by name
func (r *Registry) GetService(name string) (*schema.Service, error) {
	if service, exists := r.services[name]; exists {
		return service, nil
	}
	for fullName, service := range r.services {
		if strings.HasSuffix(fullName, "."+name) {
			return service, nil
		}
	}
	return nil, fmt.Errorf("service not found: %s", name)
}

// ListMessages returns all registered message names
func (r *Registry) ListMessages() []string {
	names := make([]string, 0, len(r.messages))
	for name := range r.messages {
		names = append(names, name)
	}
	return names
}

// ListEnums returns all registered enum names
func (r *Registry) ListEnums() []string {
	names := make([]string, 0, len(r.enums))
	for name := range r.enums {
		names = append(names, name)
	}
	return names
}

// ListServices returns all registered service names
func (r *Registry) ListServices() []string {
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	return names
}
