// Package dbtest provides an in-memory database.DB for unit tests.
package dbtest

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/koustreak/rostersync/internal/database"
)

// Exec records one statement executed inside a fake transaction.
type Exec struct {
	SQL  string
	Args []any
}

// Result is the canned answer for a query.
type Result struct {
	Columns []string
	Rows    [][]any
	Err     error
}

// DB is a scriptable database.DB. Queries return Result; transactions record
// every Exec and fail on demand.
type DB struct {
	mu sync.Mutex

	DialectValue database.Dialect
	Result       Result
	PingErr      error
	BeginErr     error
	CommitErr    error

	// FailExecAt makes the n-th Exec (1-based) of a transaction return ExecErr.
	FailExecAt int
	ExecErr    error

	Queries    []Exec
	Execs      []Exec
	Committed  int
	RolledBack int
	Closed     bool
}

var _ database.DB = (*DB)(nil)

func (d *DB) Dialect() database.Dialect { return d.DialectValue }

func (d *DB) Ping(context.Context) error { return d.PingErr }

func (d *DB) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
}

func (d *DB) Query(_ context.Context, sql string, args ...any) (database.Rows, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Queries = append(d.Queries, Exec{SQL: sql, Args: args})
	if d.Result.Err != nil {
		return nil, d.Result.Err
	}
	return &rows{cols: d.Result.Columns, data: d.Result.Rows, pos: -1}, nil
}

func (d *DB) Begin(context.Context) (database.Tx, error) {
	if d.BeginErr != nil {
		return nil, d.BeginErr
	}
	return &tx{db: d}, nil
}

type tx struct {
	db      *DB
	pending []Exec
	done    bool
}

func (t *tx) Exec(_ context.Context, sql string, args ...any) (int64, error) {
	t.pending = append(t.pending, Exec{SQL: sql, Args: args})
	if t.db.FailExecAt > 0 && len(t.pending) == t.db.FailExecAt {
		return 0, t.db.ExecErr
	}
	return 1, nil
}

func (t *tx) Commit(context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.db.CommitErr != nil {
		return t.db.CommitErr
	}
	t.done = true
	t.db.Execs = append(t.db.Execs, t.pending...)
	t.db.Committed++
	return nil
}

func (t *tx) Rollback(context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	t.db.RolledBack++
	return nil
}

type rows struct {
	cols []string
	data [][]any
	pos  int
}

func (r *rows) Next() bool {
	r.pos++
	return r.pos < len(r.data)
}

func (r *rows) Columns() ([]string, error) { return r.cols, nil }
func (r *rows) Close()                     {}
func (r *rows) Err() error                 { return nil }

func (r *rows) Scan(dest ...any) error {
	cur := r.data[r.pos]
	if len(dest) != len(cur) {
		return fmt.Errorf("dbtest: scan got %d destinations for %d values", len(dest), len(cur))
	}
	for i, v := range cur {
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(v))
	}
	return nil
}
