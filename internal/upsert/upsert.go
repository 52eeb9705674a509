// Package upsert writes a batch into a destination table as insert-or-replace
// keyed on one unique column, inside a single transaction.
package upsert

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/rostersync/internal/batch"
	"github.com/koustreak/rostersync/internal/database"
	"github.com/koustreak/rostersync/internal/errs"
	"github.com/koustreak/rostersync/internal/logger"
)

// Engine upserts batches through a database.DB.
type Engine struct {
	db  database.DB
	log *logger.Logger
}

// New returns an Engine bound to db. A nil logger discards output.
func New(db database.DB, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{db: db, log: log}
}

// Upsert inserts every record of b into schemaName.table, replacing the
// non-key columns of any existing row whose uniqueKey matches. All records
// are written in one transaction: either every record lands or none does.
//
// It returns the number of records written. An empty batch is a no-op.
// Precondition failures are ErrKindInvalidInput; anything that goes wrong
// once the transaction is open is ErrKindUpsert.
func (e *Engine) Upsert(ctx context.Context, b *batch.Batch, table, schemaName, uniqueKey string) (int64, error) {
	if b.Len() == 0 {
		return 0, nil
	}
	if err := CheckKey(b, uniqueKey); err != nil {
		return 0, err
	}

	builder := database.Upsert(table, e.db.Dialect()).
		Schema(schemaName).
		Columns(b.Columns...).
		OnConflict(uniqueKey)

	stmt, err := builder.Build()
	if err != nil {
		return 0, err
	}

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return 0, errs.Wrap(errs.ErrKindUpsert, "upsert: begin transaction", err)
	}
	// no-op once committed
	defer func() { _ = tx.Rollback(ctx) }()

	for i, rec := range b.Records {
		if _, err := tx.Exec(ctx, stmt, builder.Args(rec)...); err != nil {
			return 0, errs.Wrap(errs.ErrKindUpsert,
				fmt.Sprintf("upsert: record %d (%s=%v)", i, uniqueKey, rec[uniqueKey]), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, errs.Wrap(errs.ErrKindUpsert, "upsert: commit", err)
	}

	written := int64(b.Len())
	e.log.With().
		Str("table", schemaName+"."+table).
		Str("unique_key", uniqueKey).
		Int("records", int(written)).
		Logger().
		Info("upserted batch")

	return written, nil
}

// CheckKey verifies that key is a column of b and that every record carries
// a usable value for it. Missing markers and blank strings count as absent.
// Run it on the raw batch: coercion turns a missing text value into a
// placeholder that would otherwise pass as a key.
func CheckKey(b *batch.Batch, key string) error {
	if key == "" {
		return errs.New(errs.ErrKindInvalidInput, "upsert: unique key is required")
	}
	if !b.HasColumn(key) {
		return errs.Newf(errs.ErrKindInvalidInput, "upsert: unique key %q is not a batch column", key)
	}
	for i, rec := range b.Records {
		if keyMissing(rec[key]) {
			return errs.Newf(errs.ErrKindInvalidInput, "upsert: record %d has no value for unique key %q", i, key)
		}
	}
	return nil
}

func keyMissing(v any) bool {
	if batch.IsMissing(v) {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
