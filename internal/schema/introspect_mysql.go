package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/rostersync/internal/database"
	"github.com/koustreak/rostersync/internal/errs"
)

// MySQLIntrospector implements Introspector for MySQL using information_schema.
// The schema name is the MySQL database name.
type MySQLIntrospector struct {
	db database.DB
}

// NewMySQLIntrospector creates a new MySQL schema introspector
func NewMySQLIntrospector(db database.DB) *MySQLIntrospector {
	return &MySQLIntrospector{db: db}
}

const mysqlColumnsQuery = `
	SELECT
		COLUMN_NAME,
		DATA_TYPE,
		COLUMN_TYPE,
		IS_NULLABLE = 'YES'           AS is_nullable,
		ORDINAL_POSITION,
		COLUMN_KEY IN ('PRI', 'UNI')  AS is_unique
	FROM information_schema.COLUMNS
	WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
	ORDER BY ORDINAL_POSITION`

// GetSchema returns column details for a single table
func (m *MySQLIntrospector) GetSchema(ctx context.Context, schemaName, tableName string) (*Table, error) {
	rows, err := m.db.Query(ctx, mysqlColumnsQuery, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("introspect table %s.%s: %w", schemaName, tableName, err)
	}
	defer rows.Close()

	t := &Table{Schema: schemaName, Name: tableName}
	for rows.Next() {
		var (
			col        Column
			columnType string
		)
		if err := rows.Scan(&col.Name, &col.DataType, &columnType, &col.Nullable, &col.Ordinal, &col.Unique); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col.Kind = mysqlKind(col.DataType, columnType)
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

// mysqlKind treats tinyint(1), MySQL's BOOLEAN alias, as a boolean column.
func mysqlKind(dataType, columnType string) Kind {
	if strings.EqualFold(strings.TrimSpace(columnType), "tinyint(1)") {
		return KindBoolean
	}
	return KindFor(dataType)
}
