package database

import (
	"fmt"
	"strings"

	"github.com/koustreak/rostersync/internal/errs"
)

// Dialect controls which SQL placeholder and quoting style the builder emits.
type Dialect int

const (
	// DialectPostgres uses $1, $2, … placeholders and "double quoted" identifiers.
	DialectPostgres Dialect = iota

	// DialectMySQL uses ? placeholders and `backtick quoted` identifiers.
	DialectMySQL
)

func (d Dialect) String() string {
	if d == DialectMySQL {
		return "mysql"
	}
	return "postgres"
}

// UpsertBuilder constructs a parameterized insert-or-replace statement for a
// single row using a fluent API. Values are never interpolated into the SQL
// string; Args orders them to match the placeholders.
//
// Usage (Postgres):
//
//	b := Upsert("department_members", DialectPostgres).
//	    Schema("public").
//	    Columns("lms_user_id", "first_name").
//	    OnConflict("lms_user_id")
//	sql, err := b.Build()
//	// INSERT INTO "public"."department_members" ("lms_user_id", "first_name")
//	// VALUES ($1, $2) ON CONFLICT ("lms_user_id")
//	// DO UPDATE SET "first_name" = EXCLUDED."first_name"
type UpsertBuilder struct {
	table    string
	schema   string
	dialect  Dialect
	columns  []string
	conflict string
}

// Upsert starts a new UpsertBuilder for the given table and dialect.
func Upsert(table string, d Dialect) *UpsertBuilder {
	return &UpsertBuilder{table: table, dialect: d}
}

// Schema qualifies the table with a schema (Postgres) or database (MySQL).
func (b *UpsertBuilder) Schema(schema string) *UpsertBuilder {
	b.schema = schema
	return b
}

// Columns sets the inserted columns, in placeholder order.
func (b *UpsertBuilder) Columns(cols ...string) *UpsertBuilder {
	b.columns = cols
	return b
}

// OnConflict names the unique column used for conflict detection.
func (b *UpsertBuilder) OnConflict(column string) *UpsertBuilder {
	b.conflict = column
	return b
}

// Build produces the SQL string. It fails with ErrKindInvalidInput when the
// column list is empty, repeats a column, or does not contain the conflict key.
func (b *UpsertBuilder) Build() (string, error) {
	if b.table == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "upsert: table name is required")
	}
	if len(b.columns) == 0 {
		return "", errs.New(errs.ErrKindInvalidInput, "upsert: no columns to insert")
	}
	if b.conflict == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "upsert: conflict column is required")
	}

	seen := make(map[string]bool, len(b.columns))
	quoted := make([]string, len(b.columns))
	holders := make([]string, len(b.columns))
	for i, c := range b.columns {
		if c == "" {
			return "", errs.New(errs.ErrKindInvalidInput, "upsert: empty column name")
		}
		if seen[c] {
			return "", errs.Newf(errs.ErrKindInvalidInput, "upsert: duplicate column %q", c)
		}
		seen[c] = true
		quoted[i] = b.quote(c)
		holders[i] = b.placeholder(i + 1)
	}
	if !seen[b.conflict] {
		return "", errs.Newf(errs.ErrKindInvalidInput, "upsert: conflict column %q is not among the inserted columns", b.conflict)
	}

	// --- SET list: every non-key column takes the incoming value ---
	var set []string
	for _, c := range b.columns {
		if c != b.conflict {
			set = append(set, b.assignIncoming(c))
		}
	}
	if len(set) == 0 {
		// Key-only batches still take the update path so that a conflict is
		// reported as a written row rather than silently skipped.
		set = append(set, b.assignIncoming(b.conflict))
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(b.target())
	sb.WriteString(" (")
	sb.WriteString(strings.Join(quoted, ", "))
	sb.WriteString(") VALUES (")
	sb.WriteString(strings.Join(holders, ", "))
	sb.WriteString(")")

	if b.dialect == DialectMySQL {
		sb.WriteString(" ON DUPLICATE KEY UPDATE ")
	} else {
		sb.WriteString(fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET ", b.quote(b.conflict)))
	}
	sb.WriteString(strings.Join(set, ", "))

	return sb.String(), nil
}

// Args returns the values of rec in column order, ready to bind.
// Missing keys bind as NULL.
func (b *UpsertBuilder) Args(rec map[string]any) []any {
	args := make([]any, len(b.columns))
	for i, c := range b.columns {
		args[i] = rec[c]
	}
	return args
}

func (b *UpsertBuilder) assignIncoming(col string) string {
	if b.dialect == DialectMySQL {
		return fmt.Sprintf("%s = VALUES(%s)", b.quote(col), b.quote(col))
	}
	return fmt.Sprintf("%s = EXCLUDED.%s", b.quote(col), b.quote(col))
}

func (b *UpsertBuilder) target() string {
	if b.schema == "" {
		return b.quote(b.table)
	}
	return b.quote(b.schema) + "." + b.quote(b.table)
}

// placeholder returns the correct parameter placeholder for the dialect.
// Postgres: $1, $2, …   MySQL: ? (index is ignored)
func (b *UpsertBuilder) placeholder(idx int) string {
	if b.dialect == DialectMySQL {
		return "?"
	}
	return fmt.Sprintf("$%d", idx)
}

func (b *UpsertBuilder) quote(name string) string {
	return QuoteIdent(b.dialect, name)
}

// QuoteIdent wraps a SQL identifier in the dialect's quote character,
// doubling any embedded quote. This safely handles reserved words and
// mixed-case names.
func QuoteIdent(d Dialect, name string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
