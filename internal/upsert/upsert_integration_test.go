//go:build integration

package upsert_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/koustreak/rostersync/internal/batch"
	"github.com/koustreak/rostersync/internal/coerce"
	"github.com/koustreak/rostersync/internal/database"
	pgdriver "github.com/koustreak/rostersync/internal/database/postgres"
	"github.com/koustreak/rostersync/internal/errs"
	"github.com/koustreak/rostersync/internal/schema"
	"github.com/koustreak/rostersync/internal/upsert"
)

const createMembers = `
	CREATE TABLE IF NOT EXISTS public.department_members (
		lms_user_id   integer PRIMARY KEY,
		first_name    varchar(8),
		is_active     boolean,
		date_added    timestamptz,
		custom_fields jsonb
	)`

var (
	pgContainer testcontainers.Container
	dsn         string
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgC, err := postgres.Run(ctx, "postgres:17",
		postgres.WithDatabase("rostersync"),
		postgres.WithUsername("rostersync"),
		postgres.WithPassword("rostersync"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to start PostgreSQL container: %v", err))
	}
	pgContainer = pgC

	dsn, err = pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(fmt.Sprintf("failed to get PostgreSQL connection string: %v", err))
	}

	code := m.Run()
	_ = pgContainer.Terminate(ctx)
	os.Exit(code)
}

func connect(t *testing.T) database.DB {
	t.Helper()
	ctx := context.Background()

	db, err := pgdriver.New(ctx, database.DefaultConfig(dsn))
	require.NoError(t, err)
	t.Cleanup(db.Close)

	exec(t, db, createMembers)
	exec(t, db, `TRUNCATE public.department_members`)
	return db
}

func exec(t *testing.T, db database.DB, sql string) {
	t.Helper()
	ctx := context.Background()
	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, sql)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
}

func rows(t *testing.T, db database.DB) []map[string]any {
	t.Helper()
	rs, err := db.Query(context.Background(),
		`SELECT lms_user_id, first_name, is_active, date_added FROM public.department_members ORDER BY lms_user_id`)
	require.NoError(t, err)
	defer rs.Close()

	var out []map[string]any
	for rs.Next() {
		var id, name, active, added any
		require.NoError(t, rs.Scan(&id, &name, &active, &added))
		out = append(out, map[string]any{
			"lms_user_id": id,
			"first_name":  name,
			"is_active":   active,
			"date_added":  added,
		})
	}
	require.NoError(t, rs.Err())
	return out
}

// load runs the same steps as a real load: introspect, coerce, normalize, upsert.
func load(t *testing.T, db database.DB, b *batch.Batch) (int64, error) {
	t.Helper()
	ctx := context.Background()

	tbl, err := schema.New(db).GetSchema(ctx, "public", "department_members")
	require.NoError(t, err)
	require.NoError(t, coerce.New(nil).Coerce(b, tbl))
	require.NoError(t, coerce.NormalizeDatetimes(b, []string{"date_added"}))

	return upsert.New(db, nil).Upsert(ctx, b, "department_members", "public", "lms_user_id")
}

func roster(names ...string) *batch.Batch {
	b := batch.New("lms_user_id", "first_name", "is_active", "date_added", "custom_fields")
	for i, n := range names {
		b.Append(batch.Record{
			"lms_user_id":   fmt.Sprintf("%d.0", i+1),
			"first_name":    n,
			"is_active":     "true",
			"date_added":    "01-15-2023 09:30:00",
			"custom_fields": `{"shirtSize":"M"}`,
		})
	}
	return b
}

func TestIntegration_SchemaNotFound(t *testing.T) {
	db := connect(t)

	_, err := schema.New(db).GetSchema(context.Background(), "public", "no_such_table")
	require.Error(t, err)
	assert.True(t, errs.IsSchemaNotFound(err))
}

func TestIntegration_UpsertIsIdempotent(t *testing.T) {
	db := connect(t)

	n, err := load(t, db, roster("ada", "grace", "linus"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	first := rows(t, db)

	n, err = load(t, db, roster("ada", "grace", "linus"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, first, rows(t, db))

	require.Len(t, first, 3)
	assert.Equal(t, time.Date(2023, 1, 15, 9, 30, 0, 0, time.UTC), first[0]["date_added"].(time.Time).UTC())
	assert.Equal(t, true, first[0]["is_active"])
}

func TestIntegration_UniqueKeyConflictUpdates(t *testing.T) {
	db := connect(t)

	_, err := load(t, db, roster("ada"))
	require.NoError(t, err)

	b := roster("lovelace")
	b.Records[0]["is_active"] = "no"
	_, err = load(t, db, b)
	require.NoError(t, err)

	got := rows(t, db)
	require.Len(t, got, 1)
	assert.Equal(t, "lovelace", got[0]["first_name"])
	assert.Equal(t, false, got[0]["is_active"])
}

func TestIntegration_FailedBatchWritesNothing(t *testing.T) {
	db := connect(t)

	names := []string{"a", "b", "c", "d", "far-too-long-for-the-column", "f", "g", "h", "i", "j"}
	_, err := load(t, db, roster(names...))
	require.Error(t, err)
	assert.True(t, errs.IsUpsert(err))

	assert.Empty(t, rows(t, db))
}
