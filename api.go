// Package lightwire is a length-delimited binary message codec. Hand-written
// message types implement the Marshaler/Unmarshaler capability contracts over
// precomputed field tags; the Lightwire type offers schema-aware encoding and
// decoding of loaded .proto definitions without generated code.
package lightwire

import (
	"fmt"

	"github.com/lightproto/lightwire/registry"
	"github.com/lightproto/lightwire/wire"
)

// ===== CAPABILITY CONTRACTS =====

// Marshaler is the "can be serialized" capability: the type appends itself
// into an encoder using its own field-number assignments.
type Marshaler = wire.Marshaler

// Unmarshaler is the "can be deserialized" capability: the type constructs
// itself field by field from a decoder. Kept independent of Marshaler so that
// request-only and response-only types carry just the code they need.
type Unmarshaler = wire.Unmarshaler

// Marshal encodes m into a fresh buffer.
func Marshal(m Marshaler) ([]byte, error) {
	e := wire.NewEncoder()
	if err := m.MarshalWire(e); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// Unmarshal decodes data into m. Decoding is all-or-nothing: on error m may
// hold partially assigned fields but the error must be treated as fatal for
// the value. An empty input is a valid all-default message.
func Unmarshal(data []byte, m Unmarshaler) error {
	return m.UnmarshalWire(wire.NewDecoder(data))
}

// ===== SCHEMA-AWARE API =====

// Lightwire provides schema-aware codec operations without generated code.
type Lightwire struct {
	registry *registry.Registry
}

// New creates a new Lightwire instance with an empty schema registry.
func New() *Lightwire {
	return &Lightwire{
		registry: registry.NewRegistry(),
	}
}

// LoadSchema parses the .proto file or directory at path into the registry.
func (l *Lightwire) LoadSchema(path string) error {
	return l.registry.LoadSchema(path)
}

// Parse decodes wire bytes into a field-name keyed map using the named
// message's schema.
func (l *Lightwire) Parse(data []byte, messageType string) (map[string]interface{}, error) {
	msg, err := l.registry.GetMessage(messageType)
	if err != nil {
		return nil, fmt.Errorf("message type not found: %s", messageType)
	}
	return wire.DecodeMessage(data, msg, l.registry)
}

// Marshal encodes a field-name keyed map to wire bytes using the named
// message's schema.
func (l *Lightwire) Marshal(data map[string]interface{}, messageType string) ([]byte, error) {
	msg, err := l.registry.GetMessage(messageType)
	if err != nil {
		return nil, fmt.Errorf("message type not found: %s", messageType)
	}
	return wire.EncodeMessage(data, msg, l.registry)
}

// ===== REGISTRY ACCESS =====

func (l *Lightwire) GetRegistry() *registry.Registry { return l.registry }
func (l *Lightwire) ListMessages() []string          { return l.registry.ListMessages() }
func (l *Lightwire) ListEnums() []string             { return l.registry.ListEnums() }
func (l *Lightwire) ListServices() []string          { return l.registry.ListServices() }
