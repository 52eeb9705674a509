package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/rostersync/internal/database"
	"github.com/koustreak/rostersync/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySQLState(t *testing.T) {
	tests := []struct {
		code string
		want errs.ErrKind
	}{
		{"42P01", errs.ErrKindSchemaNotFound},
		{"3F000", errs.ErrKindSchemaNotFound},
		{"08006", errs.ErrKindConnectionFailed},
		{"28P01", errs.ErrKindConnectionFailed},
		{"57P01", errs.ErrKindConnectionFailed},
		{"42501", errs.ErrKindPermissionDenied},
		{"23505", errs.ErrKindQueryFailed},
		{"22P02", errs.ErrKindQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, classifySQLState(tt.code))
		})
	}
}

func TestMapError(t *testing.T) {
	assert.Nil(t, mapError(nil, "noop"))

	assert.True(t, errs.IsTimeout(mapError(context.DeadlineExceeded, "slow")))
	assert.True(t, errs.IsNotFound(mapError(pgx.ErrNoRows, "none")))
	assert.True(t, errs.IsConnectionFailed(mapError(errors.New("dial tcp: refused"), "ping")))

	pgErr := &pgconn.PgError{Code: "23505", Message: "duplicate key value"}
	mapped := mapError(fmt.Errorf("exec: %w", pgErr), "exec failed")
	assert.True(t, errs.IsQueryFailed(mapped))
	assert.Contains(t, mapped.Error(), "duplicate key value")
}

func TestNew_InvalidDSN(t *testing.T) {
	_, err := New(context.Background(), &database.Config{DSN: "postgres://%zz"})
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
}
