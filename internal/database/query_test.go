package database

import (
	"testing"

	"github.com/koustreak/rostersync/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertBuilder_Postgres(t *testing.T) {
	sql, err := Upsert("department_members", DialectPostgres).
		Schema("public").
		Columns("lms_user_id", "first_name", "date_hired").
		OnConflict("lms_user_id").
		Build()
	require.NoError(t, err)

	assert.Equal(t,
		`INSERT INTO "public"."department_members" ("lms_user_id", "first_name", "date_hired") VALUES ($1, $2, $3)`+
			` ON CONFLICT ("lms_user_id") DO UPDATE SET "first_name" = EXCLUDED."first_name", "date_hired" = EXCLUDED."date_hired"`,
		sql)
}

func TestUpsertBuilder_MySQL(t *testing.T) {
	sql, err := Upsert("department_members", DialectMySQL).
		Schema("tracking").
		Columns("lms_user_id", "email_address").
		OnConflict("lms_user_id").
		Build()
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO `tracking`.`department_members` (`lms_user_id`, `email_address`) VALUES (?, ?)"+
			" ON DUPLICATE KEY UPDATE `email_address` = VALUES(`email_address`)",
		sql)
}

func TestUpsertBuilder_KeyOnly(t *testing.T) {
	sql, err := Upsert("t", DialectPostgres).Columns("id").OnConflict("id").Build()
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "t" ("id") VALUES ($1) ON CONFLICT ("id") DO UPDATE SET "id" = EXCLUDED."id"`, sql)
}

func TestUpsertBuilder_Invalid(t *testing.T) {
	tests := []struct {
		name string
		b    *UpsertBuilder
	}{
		{"no table", Upsert("", DialectPostgres).Columns("a").OnConflict("a")},
		{"no columns", Upsert("t", DialectPostgres).OnConflict("a")},
		{"no conflict key", Upsert("t", DialectPostgres).Columns("a")},
		{"key not inserted", Upsert("t", DialectPostgres).Columns("a", "b").OnConflict("c")},
		{"duplicate column", Upsert("t", DialectPostgres).Columns("a", "a").OnConflict("a")},
		{"empty column", Upsert("t", DialectPostgres).Columns("a", "").OnConflict("a")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.b.Build()
			require.Error(t, err)
			assert.True(t, errs.IsInvalidInput(err))
		})
	}
}

func TestUpsertBuilder_Args(t *testing.T) {
	b := Upsert("t", DialectPostgres).Columns("id", "name", "age").OnConflict("id")
	args := b.Args(map[string]any{"id": int64(1), "name": "Ada", "ignored": true})
	assert.Equal(t, []any{int64(1), "Ada", nil}, args)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"we""ird"`, QuoteIdent(DialectPostgres, `we"ird`))
	assert.Equal(t, "`we``ird`", QuoteIdent(DialectMySQL, "we`ird"))
}

func TestDriverDialect(t *testing.T) {
	assert.Equal(t, DialectMySQL, DriverMySQL.Dialect())
	assert.Equal(t, DialectPostgres, DriverPostgres.Dialect())
	assert.Equal(t, DialectPostgres, Driver("").Dialect())
}
