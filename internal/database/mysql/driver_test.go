package mysql

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/rostersync/internal/database"
	"github.com/koustreak/rostersync/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyMySQLCode(t *testing.T) {
	tests := []struct {
		code uint16
		want errs.ErrKind
	}{
		{1045, errs.ErrKindConnectionFailed},
		{1040, errs.ErrKindConnectionFailed},
		{1146, errs.ErrKindSchemaNotFound},
		{1049, errs.ErrKindSchemaNotFound},
		{1142, errs.ErrKindPermissionDenied},
		{1062, errs.ErrKindQueryFailed},
		{1366, errs.ErrKindQueryFailed},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyMySQLCode(tt.code), "code %d", tt.code)
	}
}

func TestMapError(t *testing.T) {
	assert.Nil(t, mapError(nil, "noop"))
	assert.True(t, errs.IsTimeout(mapError(context.Canceled, "cancelled")))
	assert.True(t, errs.IsNotFound(mapError(sql.ErrNoRows, "none")))
	assert.True(t, errs.IsConnectionFailed(mapError(errors.New("i/o timeout"), "dial")))

	mapped := mapError(&gomysql.MySQLError{Number: 1146, Message: "Table 'x.y' doesn't exist"}, "introspect")
	assert.True(t, errs.IsSchemaNotFound(mapped))
	assert.Contains(t, mapped.Error(), "doesn't exist")
}

func TestNew_InvalidDSN(t *testing.T) {
	_, err := New(context.Background(), &database.Config{DSN: "not a dsn"})
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
}
