package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/koustreak/rostersync/internal/batch"
	"github.com/koustreak/rostersync/internal/coerce"
	"github.com/koustreak/rostersync/internal/config"
	"github.com/koustreak/rostersync/internal/filestore"
	"github.com/koustreak/rostersync/internal/logger"
	"github.com/koustreak/rostersync/internal/schema"
	"github.com/koustreak/rostersync/internal/upsert"
)

// Loader runs stage two: CSV in object storage to the destination table.
type Loader struct {
	runner
}

// NewLoader returns a Loader for cfg.
func NewLoader(cfg *config.Config, deps Deps) *Loader {
	return &Loader{runner{cfg: cfg, deps: deps.withDefaults()}}
}

// Run fetches the CSV, introspects the destination table, coerces and
// normalizes the batch, and upserts it in one transaction.
func (l *Loader) Run(ctx context.Context) Outcome {
	job := l.cfg.Jobs.Load
	log := l.deps.Log.ForRun(job, uuid.NewString())
	log.Info("load started")

	n, err := l.load(ctx, log)
	if err != nil {
		return l.fail(ctx, log, job, err)
	}

	db := l.cfg.Database
	return succeed(log, fmt.Sprintf("upserted %d records into %s.%s", n, db.Schema, db.Table))
}

func (l *Loader) load(ctx context.Context, log *logger.Logger) (int64, error) {
	st := l.cfg.Storage
	dbc := l.cfg.Database

	store, err := l.deps.OpenStore(ctx, &st)
	if err != nil {
		return 0, at("fetch", err)
	}
	defer closeStore(log, store)

	b, err := l.fetch(ctx, store, st.Bucket, st.Key)
	if err != nil {
		return 0, at("fetch", err)
	}
	log.With().Str("object", st.Bucket+"/"+st.Key).Int("records", b.Len()).Logger().Info("fetched roster")

	if err := upsert.CheckKey(b, dbc.UniqueKey); err != nil {
		return 0, at("validate", err)
	}

	db, err := l.deps.OpenDB(ctx, &dbc.Config)
	if err != nil {
		return 0, at("connect", err)
	}
	defer db.Close()

	table, err := schema.New(db).GetSchema(ctx, dbc.Schema, dbc.Table)
	if err != nil {
		return 0, at("introspect", err)
	}
	if col, ok := table.Lookup(dbc.UniqueKey); ok && !col.Unique {
		log.With().Str("unique_key", dbc.UniqueKey).Logger().
			Warn("unique key has no unique constraint; conflicts will not be detected")
	}

	if err := coerce.New(log).Coerce(b, table); err != nil {
		return 0, at("coerce", err)
	}
	if err := coerce.NormalizeDatetimes(b, dbc.DatetimeColumns); err != nil {
		return 0, at("normalize", err)
	}

	n, err := upsert.New(db, log).Upsert(ctx, b, dbc.Table, dbc.Schema, dbc.UniqueKey)
	if err != nil {
		return 0, at("upsert", err)
	}
	return n, nil
}

func (l *Loader) fetch(ctx context.Context, store filestore.Store, bucket, key string) (*batch.Batch, error) {
	obj, err := store.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	return batch.ReadCSV(obj)
}
