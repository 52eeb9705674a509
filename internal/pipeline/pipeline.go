// Package pipeline drives the two rostersync stages end to end: extract
// (LMS to object storage) and load (object storage to the database).
//
// A run never panics or returns an error to its trigger. It always ends in an
// Outcome; failures are logged with the run id and forwarded to the notifier.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/koustreak/rostersync/internal/config"
	"github.com/koustreak/rostersync/internal/database"
	"github.com/koustreak/rostersync/internal/database/mysql"
	"github.com/koustreak/rostersync/internal/database/postgres"
	"github.com/koustreak/rostersync/internal/errs"
	"github.com/koustreak/rostersync/internal/filestore"
	"github.com/koustreak/rostersync/internal/filestore/minio"
	"github.com/koustreak/rostersync/internal/logger"
	"github.com/koustreak/rostersync/internal/notify"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Outcome is what a trigger gets back from a run.
type Outcome struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// OK reports whether the run succeeded.
func (o Outcome) OK() bool { return o.Status == StatusOK }

// DBFactory opens a database connection for one run.
type DBFactory func(ctx context.Context, cfg *database.Config) (database.DB, error)

// StoreFactory opens an object store client for one run.
type StoreFactory func(ctx context.Context, cfg *filestore.Config) (filestore.Store, error)

// Deps are the collaborators shared by the stages. Zero fields fall back to
// the real drivers, a log-only notifier and the global logger.
type Deps struct {
	OpenDB    DBFactory
	OpenStore StoreFactory
	Notifier  notify.Notifier
	Log       *logger.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = logger.Global()
	}
	if d.OpenDB == nil {
		d.OpenDB = OpenDB
	}
	if d.OpenStore == nil {
		d.OpenStore = OpenStore
	}
	if d.Notifier == nil {
		d.Notifier = notify.NewLog(d.Log)
	}
	return d
}

// OpenDB connects to the database engine named by cfg.Driver.
func OpenDB(ctx context.Context, cfg *database.Config) (database.DB, error) {
	switch cfg.Driver {
	case database.DriverMySQL:
		db, err := mysql.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return db, nil
	case database.DriverPostgres, "":
		db, err := postgres.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unsupported database driver %q", cfg.Driver)
	}
}

// OpenStore connects to the object store in cfg.
func OpenStore(ctx context.Context, cfg *filestore.Config) (filestore.Store, error) {
	switch cfg.Provider {
	case filestore.ProviderMinIO, "":
		s, err := minio.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unsupported storage provider %q", cfg.Provider)
	}
}

// stageError tags an error with the step of the run it came from.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func at(stage string, err error) error {
	return &stageError{stage: stage, err: err}
}

// runner holds what both stages need to report a run.
type runner struct {
	cfg  *config.Config
	deps Deps
}

// fail logs err, forwards "<job> failed: <message>" to the notifier and
// builds the failed Outcome. A notifier error is logged and otherwise ignored.
func (r *runner) fail(ctx context.Context, log *logger.Logger, job string, err error) Outcome {
	fields := map[string]interface{}{
		"kind":      errs.KindOf(err).String(),
		"retryable": errs.Retryable(err),
	}
	var se *stageError
	if errors.As(err, &se) {
		fields["stage"] = se.stage
	}
	log.ErrorWith("run failed", err, fields)

	// the alert still goes out when the trigger's context is gone
	nctx := context.WithoutCancel(ctx)
	if nerr := r.deps.Notifier.Notify(nctx, fmt.Sprintf("%s failed: %s", job, err)); nerr != nil {
		log.ErrorWith("failed to send notification", nerr, nil)
	}

	return Outcome{Status: StatusFailed, Message: err.Error()}
}

func succeed(log *logger.Logger, msg string) Outcome {
	log.Info(msg)
	return Outcome{Status: StatusOK, Message: msg}
}

func closeStore(log *logger.Logger, s filestore.Store) {
	if err := s.Close(); err != nil {
		log.WarnWith("failed to close object store", err, nil)
	}
}
