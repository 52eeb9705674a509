package minio

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/koustreak/rostersync/internal/errs"
	"github.com/koustreak/rostersync/internal/filestore"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"no such key", miniogo.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, errs.ErrKindNotFound},
		{"no such bucket", miniogo.ErrorResponse{Code: "NoSuchBucket"}, errs.ErrKindNotFound},
		{"access denied", miniogo.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, errs.ErrKindPermissionDenied},
		{"bare 401", miniogo.ErrorResponse{StatusCode: http.StatusUnauthorized}, errs.ErrKindPermissionDenied},
		{"slow down", miniogo.ErrorResponse{Code: "SlowDown", StatusCode: http.StatusServiceUnavailable}, errs.ErrKindTimeout},
		{"bad key", miniogo.ErrorResponse{Code: "KeyTooLongError", StatusCode: http.StatusBadRequest}, errs.ErrKindInvalidInput},
		{"server error", miniogo.ErrorResponse{Code: "InternalError", StatusCode: http.StatusInternalServerError}, errs.ErrKindQueryFailed},
		{"network", errors.New("dial tcp: connection refused"), errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapError(tt.err, "op").Kind)
		})
	}

	assert.Nil(t, mapError(nil, "op"))
}

func TestCredentialsFor(t *testing.T) {
	static := credentialsFor(&filestore.Config{AccessKey: "AKIA", SecretKey: "secret"})
	v, err := static.Get()
	assert.NoError(t, err)
	assert.Equal(t, "AKIA", v.AccessKeyID)

	assert.NotNil(t, credentialsFor(&filestore.Config{}))
}
