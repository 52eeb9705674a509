package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"schema not found", New(ErrKindSchemaNotFound, "no table"), IsSchemaNotFound},
		{"connection", Wrap(ErrKindConnectionFailed, "dial", errors.New("refused")), IsConnectionFailed},
		{"column not found", New(ErrKindColumnNotFound, "date_hired"), IsColumnNotFound},
		{"upsert", Wrap(ErrKindUpsert, "rolled back", errors.New("boom")), IsUpsert},
		{"coercion struct", &CoercionError{Column: "age", DeclaredType: "integer", Cause: errors.New("bad")}, IsCoercion},
		{"wrapped by fmt", fmt.Errorf("load: %w", New(ErrKindTimeout, "slow")), IsTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
		})
	}
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, ErrKindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, ErrKindUnknown, KindOf(nil))
}

func TestKindOf_OutermostWins(t *testing.T) {
	inner := &CoercionError{Column: "x", DeclaredType: "boolean", Cause: errors.New("maybe")}
	outer := Wrap(ErrKindQueryFailed, "load failed", inner)

	assert.Equal(t, ErrKindQueryFailed, KindOf(outer))

	var ce *CoercionError
	assert.True(t, errors.As(outer, &ce))
	assert.Equal(t, "x", ce.Column)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(ErrKindConnectionFailed, "down")))
	assert.True(t, Retryable(New(ErrKindTimeout, "slow")))
	assert.False(t, Retryable(New(ErrKindUpsert, "rolled back")))
	assert.False(t, Retryable(&CoercionError{Column: "a", DeclaredType: "integer", Cause: errors.New("x")}))
}

func TestErrorString(t *testing.T) {
	err := Wrap(ErrKindUpsert, "transaction rolled back", errors.New("duplicate key"))
	assert.Equal(t, "[upsert_failed] transaction rolled back: duplicate key", err.Error())

	ce := &CoercionError{Column: "age", DeclaredType: "integer", Cause: errors.New("3.5 is not integral")}
	assert.Equal(t, `[coercion_failed] failed to convert column "age" to integer: 3.5 is not integral`, ce.Error())
}
