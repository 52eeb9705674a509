// Package schema reads the column layout of a destination table from the
// database catalog.
package schema

import (
	"context"

	"github.com/koustreak/rostersync/internal/database"
)

// Introspector is the interface for reading a table's columns and types
type Introspector interface {
	// GetSchema returns the columns of schemaName.tableName in ordinal order.
	// A table that does not exist (or has no visible columns) yields an
	// ErrKindSchemaNotFound error.
	GetSchema(ctx context.Context, schemaName, tableName string) (*Table, error)
}

// New returns the introspector matching the connection's dialect.
func New(db database.DB) Introspector {
	if db.Dialect() == database.DialectMySQL {
		return NewMySQLIntrospector(db)
	}
	return NewPgIntrospector(db)
}
