package pipeline

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/koustreak/rostersync/internal/batch"
	"github.com/koustreak/rostersync/internal/config"
	"github.com/koustreak/rostersync/internal/lms"
	"github.com/koustreak/rostersync/internal/logger"
)

const csvContentType = "text/csv"

// Extractor runs stage one: LMS roster to a CSV object.
type Extractor struct {
	runner
}

// NewExtractor returns an Extractor for cfg.
func NewExtractor(cfg *config.Config, deps Deps) *Extractor {
	return &Extractor{runner{cfg: cfg, deps: deps.withDefaults()}}
}

// Run pulls the department's users, flattens and renames them, folds the
// custom fields into one column and writes the result to object storage.
func (e *Extractor) Run(ctx context.Context) Outcome {
	job := e.cfg.Jobs.Extract
	log := e.deps.Log.ForRun(job, uuid.NewString())
	log.Info("extract started")

	n, err := e.extract(ctx, log)
	if err != nil {
		return e.fail(ctx, log, job, err)
	}

	st := e.cfg.Storage
	return succeed(log, fmt.Sprintf("wrote %d users to %s/%s", n, st.Bucket, st.Key))
}

func (e *Extractor) extract(ctx context.Context, log *logger.Logger) (int, error) {
	client := lms.New(&e.cfg.LMS, log)

	token, err := client.Authenticate(ctx)
	if err != nil {
		return 0, at("authenticate", err)
	}

	users, err := client.ListUsers(ctx, token, e.cfg.LMS.DepartmentFilter)
	if err != nil {
		return 0, at("list users", err)
	}

	b, err := lms.Flatten(users)
	if err != nil {
		return 0, at("flatten", err)
	}
	lms.Rename(b, lms.DefaultColumnNames)
	lms.ConsolidateCustomFields(b)

	var buf bytes.Buffer
	if err := batch.WriteCSV(&buf, b); err != nil {
		return 0, at("encode", err)
	}

	st := e.cfg.Storage
	store, err := e.deps.OpenStore(ctx, &st)
	if err != nil {
		return 0, at("store", err)
	}
	defer closeStore(log, store)

	if _, err := store.PutObject(ctx, st.Bucket, st.Key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), csvContentType); err != nil {
		return 0, at("store", err)
	}

	info, err := store.StatObject(ctx, st.Bucket, st.Key)
	if err != nil {
		return 0, at("store", err)
	}
	log.With().
		Str("object", st.Bucket+"/"+st.Key).
		Str("etag", info.ETag).
		Int("bytes", int(info.Size)).
		Int("columns", len(b.Columns)).
		Logger().
		Info("stored roster")

	return b.Len(), nil
}
