// Package batch holds the in-memory tabular form a roster travels in between
// the LMS, object storage and the destination table.
package batch

import "math"

// Record is one row keyed by column name. A nil value is a missing cell.
type Record map[string]any

// Batch is an ordered set of records sharing one column list.
// Columns keeps the header order; it drives the upsert column list.
type Batch struct {
	Columns []string
	Records []Record
}

// New returns an empty batch with the given columns.
func New(columns ...string) *Batch {
	return &Batch{Columns: columns}
}

// Len returns the number of records.
func (b *Batch) Len() int {
	return len(b.Records)
}

// HasColumn reports whether name is one of the batch columns.
func (b *Batch) HasColumn(name string) bool {
	return b.columnIndex(name) >= 0
}

// Append adds a record. Keys not already in Columns are not registered.
func (b *Batch) Append(rec Record) {
	b.Records = append(b.Records, rec)
}

// Values returns the column's values in record order.
func (b *Batch) Values(column string) []any {
	vals := make([]any, len(b.Records))
	for i, r := range b.Records {
		vals[i] = r[column]
	}
	return vals
}

// SetValues replaces a column's values. len(vals) must equal Len().
func (b *Batch) SetValues(column string, vals []any) {
	for i, r := range b.Records {
		r[column] = vals[i]
	}
}

// RenameColumn renames a column in the header and every record.
// Renaming onto an existing column replaces it.
func (b *Batch) RenameColumn(from, to string) {
	i := b.columnIndex(from)
	if i < 0 || from == to {
		return
	}
	if j := b.columnIndex(to); j >= 0 {
		b.DropColumn(to)
		if j < i {
			i--
		}
	}
	b.Columns[i] = to
	for _, r := range b.Records {
		if v, ok := r[from]; ok {
			r[to] = v
			delete(r, from)
		}
	}
}

// DropColumn removes a column from the header and every record.
func (b *Batch) DropColumn(name string) {
	i := b.columnIndex(name)
	if i < 0 {
		return
	}
	b.Columns = append(b.Columns[:i], b.Columns[i+1:]...)
	for _, r := range b.Records {
		delete(r, name)
	}
}

func (b *Batch) columnIndex(name string) int {
	for i, c := range b.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// missingLiterals are the cell spellings treated as "no value".
var missingLiterals = map[string]bool{
	"":     true,
	"nan":  true,
	"NaN":  true,
	"NULL": true,
	"null": true,
	"None": true,
	"N/A":  true,
	"NA":   true,
	"<NA>": true,
	"#N/A": true,
}

// IsMissing reports whether v denotes a missing value: nil, a float NaN,
// or one of the textual missing markers.
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	case string:
		return missingLiterals[x]
	default:
		return false
	}
}
