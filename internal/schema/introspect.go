package schema

import (
	"context"
	"fmt"

	"github.com/koustreak/rostersync/internal/database"
	"github.com/koustreak/rostersync/internal/errs"
)

// PgIntrospector implements Introspector for PostgreSQL using information_schema
type PgIntrospector struct {
	db database.DB
}

// NewPgIntrospector creates a new Postgres schema introspector
func NewPgIntrospector(db database.DB) *PgIntrospector {
	return &PgIntrospector{db: db}
}

const pgColumnsQuery = `
	SELECT
		c.column_name::text,
		c.data_type::text,
		c.is_nullable = 'YES'           AS is_nullable,
		c.ordinal_position::int,
		COALESCE(k.is_unique, false)    AS is_unique
	FROM information_schema.columns c

	-- Primary key / unique constraint membership
	LEFT JOIN (
		SELECT kcu.column_name, true AS is_unique
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
		  AND tc.table_schema = $1
		  AND tc.table_name   = $2
		GROUP BY kcu.column_name
	) k ON k.column_name = c.column_name

	WHERE c.table_schema = $1 AND c.table_name = $2
	ORDER BY c.ordinal_position`

// GetSchema returns column details for a single table
func (p *PgIntrospector) GetSchema(ctx context.Context, schemaName, tableName string) (*Table, error) {
	rows, err := p.db.Query(ctx, pgColumnsQuery, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("introspect table %s.%s: %w", schemaName, tableName, err)
	}
	defer rows.Close()

	t := &Table{Schema: schemaName, Name: tableName}
	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Name, &col.DataType, &col.Nullable, &col.Ordinal, &col.Unique); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col.Kind = KindFor(col.DataType)
		t.Columns = append(t.Columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(t.Columns) == 0 {
		return nil, errs.Newf(errs.ErrKindSchemaNotFound, "table %s.%s not found or has no columns", schemaName, tableName)
	}
	return t, nil
}
