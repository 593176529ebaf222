package cache

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/GX-mob/gx-service-template/internal/core/ports"
)

// FieldType is the wire type of one schema field.
type FieldType uint8

const (
	String FieldType = iota + 1
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Time
	Bytes
	StringList
	IntList
)

func (t FieldType) String() string {
	switch t {
	case String:
		return "string"
	case Bool:
		return "bool"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Time:
		return "time"
	case Bytes:
		return "bytes"
	case StringList:
		return "[]string"
	case IntList:
		return "[]int64"
	default:
		return fmt.Sprintf("FieldType(%d)", uint8(t))
	}
}

// Field declares one named, typed field of a namespace schema.
type Field struct {
	Name string
	Type FieldType
}

// Codec encodes the projected documents of one namespace.
type Codec interface {
	Encode(doc ports.Document) ([]byte, error)
	Decode(b []byte) (ports.Document, error)
}

type namespaceSchema struct {
	fields []Field
	codec  Codec
}

// SchemaRegistry holds the optional binary schema of each namespace.
// Namespaces without a schema use JSON. Registration happens at startup,
// before the first write to the namespace.
type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]*namespaceSchema
}

func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{schemas: make(map[string]*namespaceSchema)}
}

// Register declares fields for namespace and builds its msgpack codec.
func (r *SchemaRegistry) Register(namespace string, fields ...Field) error {
	codec, err := newMsgpackCodec(fields)
	if err != nil {
		return fmt.Errorf("schema %s: %w", namespace, err)
	}
	return r.RegisterCodec(namespace, fields, codec)
}

// RegisterCodec declares fields for namespace with a caller-supplied codec.
func (r *SchemaRegistry) RegisterCodec(namespace string, fields []Field, codec Codec) error {
	if namespace == "" {
		return fmt.Errorf("schema: empty namespace")
	}
	if len(fields) == 0 || codec == nil {
		return fmt.Errorf("schema %s: fields and codec are required", namespace)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[namespace]; exists {
		return fmt.Errorf("schema %s: already registered", namespace)
	}
	r.schemas[namespace] = &namespaceSchema{fields: append([]Field(nil), fields...), codec: codec}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *SchemaRegistry) MustRegister(namespace string, fields ...Field) {
	if err := r.Register(namespace, fields...); err != nil {
		panic(err)
	}
}

func (r *SchemaRegistry) lookup(namespace string) *namespaceSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schemas[namespace]
}

// Fields returns the declared fields of namespace, or nil when it has no schema.
func (r *SchemaRegistry) Fields(namespace string) []Field {
	if s := r.lookup(namespace); s != nil {
		return append([]Field(nil), s.fields...)
	}
	return nil
}

// Sanitize projects doc onto the fields declared for namespace, dropping
// everything else. Documents of schemaless namespaces pass through.
func (r *SchemaRegistry) Sanitize(namespace string, doc ports.Document) ports.Document {
	s := r.lookup(namespace)
	if s == nil {
		return doc
	}
	out := make(ports.Document, len(s.fields))
	for _, f := range s.fields {
		if v, ok := doc[f.Name]; ok {
			out[f.Name] = v
		}
	}
	return out
}

// Encode serializes a sanitized document with the namespace codec.
func (r *SchemaRegistry) Encode(namespace string, doc ports.Document) ([]byte, error) {
	if s := r.lookup(namespace); s != nil {
		return s.codec.Encode(doc)
	}
	return json.Marshal(doc)
}

// Decode parses a payload written by Encode. Failures wrap ErrCorruptPayload.
func (r *SchemaRegistry) Decode(namespace string, b []byte) (ports.Document, error) {
	var (
		doc ports.Document
		err error
	)
	if s := r.lookup(namespace); s != nil {
		doc, err = s.codec.Decode(b)
	} else {
		err = json.Unmarshal(b, &doc)
	}
	if err != nil {
		return nil, corrupt(namespace, err)
	}
	if doc == nil {
		return nil, corrupt(namespace, fmt.Errorf("empty document"))
	}
	return doc, nil
}
