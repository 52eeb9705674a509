package batch

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/koustreak/rostersync/internal/errs"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV decodes a headed CSV document into a Batch. Every value is kept as
// a string except missing markers, which become nil. A row whose field count
// differs from the header is rejected with its line number.
func ReadCSV(r io.Reader) (*Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "read csv", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errs.New(errs.ErrKindInvalidInput, "csv has no header row")
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "parse csv header", err)
	}

	seen := make(map[string]bool, len(header))
	for _, h := range header {
		if seen[h] {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "csv header repeats column %q", h)
		}
		seen[h] = true
	}

	b := New(header...)
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "parse csv", err)
		}
		if len(fields) != len(header) {
			line, _ := cr.FieldPos(0)
			return nil, errs.Newf(errs.ErrKindInvalidInput,
				"csv line %d has %d fields, header has %d", line, len(fields), len(header))
		}

		rec := make(Record, len(header))
		for i, f := range fields {
			if IsMissing(f) {
				rec[header[i]] = nil
			} else {
				rec[header[i]] = f
			}
		}
		b.Append(rec)
	}

	return b, nil
}

// WriteCSV encodes b with a header row. Missing values become empty cells.
func WriteCSV(w io.Writer, b *Batch) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(b.Columns); err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, "write csv header", err)
	}

	row := make([]string, len(b.Columns))
	for n, rec := range b.Records {
		for i, c := range b.Columns {
			cell, err := formatCell(rec[c])
			if err != nil {
				return errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("encode record %d column %q", n, c), err)
			}
			row[i] = cell
		}
		if err := cw.Write(row); err != nil {
			return errs.Wrap(errs.ErrKindQueryFailed, "write csv row", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, "flush csv", err)
	}
	return nil
}

func formatCell(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		if math.IsNaN(x) {
			return "", nil
		}
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case time.Time:
		return x.Format(time.RFC3339), nil
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		out, err := sonic.ConfigStd.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(out), nil
	default:
		return fmt.Sprint(v), nil
	}
}
