package coerce

import (
	"strings"
	"time"

	"github.com/koustreak/rostersync/internal/batch"
	"github.com/koustreak/rostersync/internal/errs"
)

// NormalizeDatetimes re-reads the named columns strictly in DatetimeLayout and
// pins every value to UTC. Values that do not match become nil; values that
// are already timestamps are converted to UTC.
//
// Every name is checked before anything is changed: a column missing from the
// batch fails with ErrKindColumnNotFound and leaves the batch untouched.
func NormalizeDatetimes(b *batch.Batch, columns []string) error {
	for _, name := range columns {
		if !b.HasColumn(name) {
			return errs.Newf(errs.ErrKindColumnNotFound, "datetime column %q is not in the batch", name)
		}
	}

	for _, name := range columns {
		for _, rec := range b.Records {
			rec[name] = normalizeDatetime(rec[name])
		}
	}
	return nil
}

func normalizeDatetime(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC()
	case string:
		t, err := time.ParseInLocation(DatetimeLayout, strings.TrimSpace(x), time.UTC)
		if err != nil {
			return nil
		}
		return t
	default:
		return nil
	}
}
