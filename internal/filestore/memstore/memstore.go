// Package memstore is an in-memory filestore.Store used by tests.
package memstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/koustreak/rostersync/internal/errs"
	"github.com/koustreak/rostersync/internal/filestore"
)

// Store keeps objects in a map keyed by bucket and key.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]map[string]entry

	// PutErr, when set, is returned by every PutObject.
	PutErr error
	Closed bool
}

type entry struct {
	data []byte
	info filestore.ObjectInfo
}

var _ filestore.Store = (*Store)(nil)

// New returns a store holding the given empty buckets.
func New(buckets ...string) *Store {
	s := &Store{buckets: make(map[string]map[string]entry)}
	for _, b := range buckets {
		s.buckets[b] = make(map[string]entry)
	}
	return s
}

// Seed stores data at bucket/key, creating the bucket when needed.
func (s *Store) Seed(bucket, key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buckets[bucket] == nil {
		s.buckets[bucket] = make(map[string]entry)
	}
	s.buckets[bucket][key] = newEntry(key, data, "text/csv")
}

// Bytes returns the stored content of bucket/key, or nil.
func (s *Store) Bytes(bucket, key string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buckets[bucket][key].data
}

func (s *Store) Ping(_ context.Context, bucket string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.buckets[bucket]; !ok {
		return errs.Newf(errs.ErrKindNotFound, "bucket %q does not exist", bucket)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

func (s *Store) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	e, err := s.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	info := e.info
	return &object{Reader: bytes.NewReader(e.data), info: &info}, nil
}

func (s *Store) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, contentType string) (*filestore.ObjectInfo, error) {
	if s.PutErr != nil {
		return nil, s.PutErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to read upload", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	objects, ok := s.buckets[bucket]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "bucket %q does not exist", bucket)
	}
	e := newEntry(key, data, contentType)
	objects[key] = e
	info := e.info
	return &info, nil
}

func (s *Store) StatObject(_ context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	e, err := s.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	info := e.info
	return &info, nil
}

func (s *Store) lookup(bucket, key string) (entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects, ok := s.buckets[bucket]
	if !ok {
		return entry{}, errs.Newf(errs.ErrKindNotFound, "bucket %q does not exist", bucket)
	}
	e, ok := objects[key]
	if !ok {
		return entry{}, errs.Newf(errs.ErrKindNotFound, "object %s/%s does not exist", bucket, key)
	}
	return e, nil
}

func newEntry(key string, data []byte, contentType string) entry {
	sum := md5.Sum(data)
	return entry{
		data: data,
		info: filestore.ObjectInfo{
			Key:          key,
			Size:         int64(len(data)),
			ContentType:  contentType,
			ETag:         hex.EncodeToString(sum[:]),
			LastModified: time.Now().UTC(),
		},
	}
}

type object struct {
	*bytes.Reader
	info *filestore.ObjectInfo
}

func (o *object) Close() error                 { return nil }
func (o *object) Info() *filestore.ObjectInfo { return o.info }
