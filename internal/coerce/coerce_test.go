package coerce

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/koustreak/rostersync/internal/batch"
	"github.com/koustreak/rostersync/internal/errs"
	"github.com/koustreak/rostersync/internal/logger"
	"github.com/koustreak/rostersync/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func table(cols ...schema.Column) *schema.Table {
	for i := range cols {
		cols[i].Kind = schema.KindFor(cols[i].DataType)
		cols[i].Ordinal = i + 1
	}
	return &schema.Table{Schema: "public", Name: "department_members", Columns: cols}
}

func oneColumn(name string, values ...any) *batch.Batch {
	b := batch.New(name)
	for _, v := range values {
		b.Append(batch.Record{name: v})
	}
	return b
}

func TestStripNumericArtifact(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{42.0, "42"},
		{-7.0, "-7"},
		{3.5, 3.5},
		{"42.0", "42"},
		{"+3.0", "+3"},
		{"42.05", "42.05"},
		{"v1.0", "v1.0"},
		{"1.0.0", "1.0.0"},
		{int64(5), int64(5)},
		{nil, nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, stripNumericArtifact(tt.in), "input %#v", tt.in)
	}
	assert.True(t, math.IsNaN(stripNumericArtifact(math.NaN()).(float64)))
}

func TestCoerce_Integer(t *testing.T) {
	b := oneColumn("lms_user_id", "12345.0", 42.0, "7", int64(9), nil, "abc", "NaN", " 11 ")

	require.NoError(t, New(nil).Coerce(b, table(schema.Column{Name: "lms_user_id", DataType: "integer"})))

	assert.Equal(t,
		[]any{int64(12345), int64(42), int64(7), int64(9), nil, nil, nil, int64(11)},
		b.Values("lms_user_id"))
}

func TestCoerce_IntegerRefusesLossyValues(t *testing.T) {
	tests := []struct {
		name  string
		value any
		cause error
	}{
		{"fractional string", "3.5", errFractional},
		{"fractional float", 2.25, errFractional},
		{"overflow", "99999999999999999999", errOutOfRange},
		{"infinite", math.Inf(1), errOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := oneColumn("headcount", tt.value)
			err := New(nil).Coerce(b, table(schema.Column{Name: "headcount", DataType: "bigint"}))
			require.Error(t, err)
			assert.True(t, errs.IsCoercion(err))
			assert.True(t, errors.Is(err, tt.cause))
		})
	}
}

func TestCoerce_Text(t *testing.T) {
	hired := time.Date(2023, 1, 15, 9, 30, 0, 0, time.UTC)
	b := oneColumn("first_name", "Ada", nil, "nan", "<NA>", "None", "", int64(7), true, hired, "  padded ", 12.0)

	require.NoError(t, New(nil).Coerce(b, table(schema.Column{Name: "first_name", DataType: "character varying"})))

	assert.Equal(t,
		[]any{"Ada", " ", " ", " ", " ", " ", "7", "true", "2023-01-15T09:30:00Z", "  padded ", "12"},
		b.Values("first_name"))
}

func TestCoerce_Boolean(t *testing.T) {
	b := oneColumn("is_active", "true", "F", " yes ", "n", "1", "0", "On", "off", true, int64(0), 1.0, nil, "NaN")

	require.NoError(t, New(nil).Coerce(b, table(schema.Column{Name: "is_active", DataType: "boolean"})))

	assert.Equal(t,
		[]any{true, false, true, false, true, false, true, false, true, false, true, nil, nil},
		b.Values("is_active"))
}

func TestCoerce_BooleanRejectsUnknownLiteral(t *testing.T) {
	for _, v := range []any{"maybe", int64(2), 0.5} {
		b := oneColumn("is_active", v)
		err := New(nil).Coerce(b, table(schema.Column{Name: "is_active", DataType: "boolean"}))
		require.Error(t, err, "value %#v", v)
		assert.True(t, errs.IsCoercion(err))
	}
}

func TestCoerce_Timestamp(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	b := oneColumn("last_login_date",
		"2023-01-15T09:30:00Z",
		"2023-01-15T09:30:00-05:00",
		"2023-01-15 09:30:00",
		"01-15-2023 09:30:00",
		"2023-01-15",
		time.Date(2023, 1, 15, 4, 30, 0, 0, est),
		"not a date",
		nil,
	)

	require.NoError(t, New(nil).Coerce(b, table(schema.Column{Name: "last_login_date", DataType: "timestamp with time zone"})))

	vals := b.Values("last_login_date")
	want := time.Date(2023, 1, 15, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, want, vals[0])
	assert.Equal(t, want.Add(5*time.Hour), vals[1])
	assert.Equal(t, want, vals[2])
	assert.Equal(t, want, vals[3])
	assert.Equal(t, time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC), vals[4])
	assert.Equal(t, want, vals[5])
	assert.Nil(t, vals[6])
	assert.Nil(t, vals[7])

	for _, v := range vals[:6] {
		assert.Equal(t, time.UTC, v.(time.Time).Location())
	}
}

func TestCoerce_JSON(t *testing.T) {
	b := oneColumn("custom_fields",
		`{"shirtSize":"M"}`,
		`[1,2]`,
		map[string]any{"team": "blue"},
		"plain",
		nil,
		"NaN",
		`{broken`,
	)

	require.NoError(t, New(nil).Coerce(b, table(schema.Column{Name: "custom_fields", DataType: "jsonb"})))

	assert.Equal(t,
		[]any{`{"shirtSize":"M"}`, `[1,2]`, `{"team":"blue"}`, `"plain"`, nil, nil, `"{broken"`},
		b.Values("custom_fields"))
}

func TestCoerce_JSONSurvivesCSVRoundTrip(t *testing.T) {
	src := batch.New("custom_fields")
	src.Append(batch.Record{"custom_fields": map[string]any{"customFields.shirtSize": "M"}})

	var buf bytes.Buffer
	require.NoError(t, batch.WriteCSV(&buf, src))
	b, err := batch.ReadCSV(&buf)
	require.NoError(t, err)

	require.NoError(t, New(nil).Coerce(b, table(schema.Column{Name: "custom_fields", DataType: "jsonb"})))
	assert.Equal(t, []any{`{"customFields.shirtSize":"M"}`}, b.Values("custom_fields"))
}

func TestCoerce_OtherOnlyStripsArtifacts(t *testing.T) {
	b := oneColumn("salary", "1200.0", "1200.50", "NULL", nil)

	require.NoError(t, New(nil).Coerce(b, table(schema.Column{Name: "salary", DataType: "numeric"})))

	assert.Equal(t, []any{"1200", "1200.50", nil, nil}, b.Values("salary"))
}

func TestCoerce_IsAtomic(t *testing.T) {
	b := batch.New("lms_user_id", "first_name", "headcount")
	b.Append(batch.Record{"lms_user_id": "1.0", "first_name": nil, "headcount": "3"})
	b.Append(batch.Record{"lms_user_id": "2.0", "first_name": "Ada", "headcount": "3.5"})

	tbl := table(
		schema.Column{Name: "lms_user_id", DataType: "integer"},
		schema.Column{Name: "first_name", DataType: "text"},
		schema.Column{Name: "headcount", DataType: "integer"},
	)

	err := New(nil).Coerce(b, tbl)
	require.Error(t, err)

	var ce *errs.CoercionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "headcount", ce.Column)
	assert.Equal(t, "integer", ce.DeclaredType)
	assert.Contains(t, err.Error(), `failed to convert column "headcount" to integer`)

	// earlier columns were not written back
	assert.Equal(t, []any{"1.0", "2.0"}, b.Values("lms_user_id"))
	assert.Equal(t, []any{nil, "Ada"}, b.Values("first_name"))
}

func TestCoerce_ColumnCoverage(t *testing.T) {
	b := batch.New("lms_user_id", "extra")
	b.Append(batch.Record{"lms_user_id": "5", "extra": "42.0"})

	tbl := table(
		schema.Column{Name: "lms_user_id", DataType: "integer"},
		schema.Column{Name: "first_name", DataType: "text"},
	)

	require.NoError(t, New(nil).Coerce(b, tbl))

	assert.Equal(t, batch.Record{"lms_user_id": int64(5), "extra": "42.0"}, b.Records[0])
	assert.Equal(t, []string{"lms_user_id", "extra"}, b.Columns)
}

func TestCoerce_LogsEachColumn(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.New(&logger.Config{Level: "debug", Format: "json", Output: buf})

	b := oneColumn("lms_user_id", "1")
	require.NoError(t, New(log).Coerce(b, table(schema.Column{Name: "lms_user_id", DataType: "integer"})))

	assert.Contains(t, buf.String(), `"column":"lms_user_id"`)
	assert.Contains(t, buf.String(), `"kind":"integer"`)
}

func TestCoerce_Idempotent(t *testing.T) {
	tbl := table(
		schema.Column{Name: "lms_user_id", DataType: "integer"},
		schema.Column{Name: "first_name", DataType: "text"},
		schema.Column{Name: "is_active", DataType: "boolean"},
		schema.Column{Name: "date_added", DataType: "timestamp"},
		schema.Column{Name: "custom_fields", DataType: "json"},
	)
	b := batch.New("lms_user_id", "first_name", "is_active", "date_added", "custom_fields")
	b.Append(batch.Record{
		"lms_user_id":   "10.0",
		"first_name":    nil,
		"is_active":     "yes",
		"date_added":    "01-15-2023 09:30:00",
		"custom_fields": `{"a":1}`,
	})

	c := New(nil)
	require.NoError(t, c.Coerce(b, tbl))
	first := batch.Record{}
	for k, v := range b.Records[0] {
		first[k] = v
	}

	require.NoError(t, c.Coerce(b, tbl))
	assert.Equal(t, first, b.Records[0])
}
