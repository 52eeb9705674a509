package schema

import "strings"

// Kind is the coercion family a column's declared type falls into.
// It is resolved once when the table is introspected.
type Kind int

const (
	KindOther Kind = iota
	KindInteger
	KindText
	KindBoolean
	KindTimestamp
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindText:
		return "text"
	case KindBoolean:
		return "boolean"
	case KindTimestamp:
		return "timestamp"
	case KindJSON:
		return "json"
	default:
		return "other"
	}
}

var kindByType = map[string]Kind{
	"smallint":  KindInteger,
	"integer":   KindInteger,
	"bigint":    KindInteger,
	"int":       KindInteger,
	"int2":      KindInteger,
	"int4":      KindInteger,
	"int8":      KindInteger,
	"tinyint":   KindInteger,
	"mediumint": KindInteger,
	"serial":    KindInteger,
	"bigserial": KindInteger,

	"text":              KindText,
	"character varying": KindText,
	"varchar":           KindText,
	"character":         KindText,
	"char":              KindText,
	"bpchar":            KindText,
	"tinytext":          KindText,
	"mediumtext":        KindText,
	"longtext":          KindText,
	"citext":            KindText,
	"name":              KindText,

	"boolean": KindBoolean,
	"bool":    KindBoolean,

	"date":                        KindTimestamp,
	"timestamp":                   KindTimestamp,
	"timestamp without time zone": KindTimestamp,
	"timestamp with time zone":    KindTimestamp,
	"timestamptz":                 KindTimestamp,
	"datetime":                    KindTimestamp,

	"json":  KindJSON,
	"jsonb": KindJSON,
}

// KindFor maps a catalog type name to its Kind. Matching is exact and
// case-insensitive; anything unrecognised is KindOther.
func KindFor(dataType string) Kind {
	return kindByType[strings.ToLower(strings.TrimSpace(dataType))]
}

// Column describes a single column of the destination table.
type Column struct {
	Name     string
	DataType string // catalog name: integer, character varying, jsonb, ...
	Kind     Kind
	Nullable bool
	Ordinal  int

	// Unique is set when a primary key or unique constraint covers the column.
	Unique bool
}

// Table is an introspected destination table.
type Table struct {
	Schema  string
	Name    string
	Columns []Column
}

// Lookup returns the column with the given name.
func (t *Table) Lookup(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Types returns column name to declared type.
func (t *Table) Types() map[string]string {
	m := make(map[string]string, len(t.Columns))
	for _, c := range t.Columns {
		m[c.Name] = c.DataType
	}
	return m
}

// Kinds returns column name to resolved Kind.
func (t *Table) Kinds() map[string]Kind {
	m := make(map[string]Kind, len(t.Columns))
	for _, c := range t.Columns {
		m[c.Name] = c.Kind
	}
	return m
}

// QualifiedName renders schema.table for logs and errors.
func (t *Table) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}
