// Package coerce converts the loosely typed cells of a batch into values that
// match the declared column types of the destination table.
package coerce

import (
	"github.com/koustreak/rostersync/internal/batch"
	"github.com/koustreak/rostersync/internal/errs"
	"github.com/koustreak/rostersync/internal/logger"
	"github.com/koustreak/rostersync/internal/schema"
)

// Coercer converts batch columns to their table types.
type Coercer struct {
	log *logger.Logger
}

// New returns a Coercer. A nil logger discards output.
func New(log *logger.Logger) *Coercer {
	if log == nil {
		log = logger.Nop()
	}
	return &Coercer{log: log}
}

// Coerce rewrites every batch column that the table declares so that its
// values belong to the column's type domain (or are nil for NULL).
//
// The pass is all-or-nothing: converted columns are staged and only written
// back once every column has succeeded. On the first failure the batch is
// left exactly as it was and a *errs.CoercionError is returned.
//
// Table columns absent from the batch are skipped. Batch columns absent from
// the table are left untouched.
func (c *Coercer) Coerce(b *batch.Batch, t *schema.Table) error {
	type staged struct {
		column string
		kind   schema.Kind
		values []any
	}
	var out []staged

	for _, name := range b.Columns {
		col, ok := t.Lookup(name)
		if !ok {
			continue
		}

		values := b.Values(name)
		for i, v := range values {
			cv, err := convert(stripNumericArtifact(v), col.Kind)
			if err != nil {
				return &errs.CoercionError{Column: name, DeclaredType: col.DataType, Cause: err}
			}
			values[i] = cv
		}
		out = append(out, staged{column: name, kind: col.Kind, values: values})
	}

	for _, s := range out {
		b.SetValues(s.column, s.values)
		c.log.With().
			Str("column", s.column).
			Str("kind", s.kind.String()).
			Logger().
			Debug("converted column")
	}
	return nil
}

func convert(v any, k schema.Kind) (any, error) {
	switch k {
	case schema.KindInteger:
		return toInteger(v)
	case schema.KindText:
		return toText(v)
	case schema.KindBoolean:
		return toBoolean(v)
	case schema.KindTimestamp:
		return toTimestamp(v), nil
	case schema.KindJSON:
		return toJSON(v)
	default:
		return toOther(v), nil
	}
}
