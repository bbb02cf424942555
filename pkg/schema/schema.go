package schema

import (
	"encoding/json"
	"fmt"
)

// DataType identifies the column types a producer can register. The
// values are the names producers send on the wire, in both JSON and
// MessagePack payloads.
type DataType string

const (
	Int    DataType = "Int"
	Float  DataType = "Float"
	Time   DataType = "Time"
	String DataType = "String"
	Binary DataType = "Binary"
	Bool   DataType = "Bool"
	Double DataType = "Double"
)

// Valid reports whether the type is one conductor supports.
func (d DataType) Valid() bool {
	switch d {
	case Int, Float, Time, String, Binary, Bool, Double:
		return true
	}
	return false
}

// QuestType returns the QuestDB column type used when creating a
// producer's data table.
func (d DataType) QuestType() string {
	switch d {
	case Int:
		return "long"
	case Float:
		return "float"
	case Time:
		return "timestamp"
	case Binary:
		return "binary"
	case Bool:
		return "boolean"
	case Double:
		return "double"
	default:
		return "string"
	}
}

// SQLiteType returns the column type used by the embedded SQLite backend.
func (d DataType) SQLiteType() string {
	switch d {
	case Int:
		return "INTEGER"
	case Float, Double:
		return "REAL"
	case Time:
		return "DATETIME"
	case Binary:
		return "BLOB"
	case Bool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// ParseDataType parses the wire name of a data type.
func ParseDataType(name string) (DataType, error) {
	t := DataType(name)
	if !t.Valid() {
		return "", fmt.Errorf("unknown data type %q", name)
	}
	return t, nil
}

// Schema maps column names to their declared types.
type Schema map[string]DataType

// Validate checks that every declared type is supported.
func (s Schema) Validate() error {
	for col, t := range s {
		if !t.Valid() {
			return fmt.Errorf("column %q has unknown data type %q", col, t)
		}
	}
	return nil
}

// JSONString serializes the schema for storage in the producers table.
func (s Schema) JSONString() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to serialize schema: %w", err)
	}
	return string(data), nil
}

// ParseJSON deserializes a schema stored as JSON.
func ParseJSON(data string) (Schema, error) {
	var s Schema
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Builder provides fluent schema construction.
type Builder struct {
	schema Schema
}

// NewBuilder creates an empty schema builder.
func NewBuilder() *Builder {
	return &Builder{schema: make(Schema)}
}

// NewBuilderWithCapacity pre-sizes the underlying map.
func NewBuilderWithCapacity(n int) *Builder {
	return &Builder{schema: make(Schema, n)}
}

// Add registers a column with an explicit type.
func (b *Builder) Add(name string, t DataType) *Builder {
	b.schema[name] = t
	return b
}

func (b *Builder) AddInt(name string) *Builder    { return b.Add(name, Int) }
func (b *Builder) AddFloat(name string) *Builder  { return b.Add(name, Float) }
func (b *Builder) AddTime(name string) *Builder   { return b.Add(name, Time) }
func (b *Builder) AddString(name string) *Builder { return b.Add(name, String) }
func (b *Builder) AddBinary(name string) *Builder { return b.Add(name, Binary) }
func (b *Builder) AddBool(name string) *Builder   { return b.Add(name, Bool) }
func (b *Builder) AddDouble(name string) *Builder { return b.Add(name, Double) }

// Build returns the accumulated schema.
func (b *Builder) Build() Schema {
	return b.schema
}
