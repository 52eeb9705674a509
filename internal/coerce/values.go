package coerce

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/bytedance/sonic"
	"github.com/koustreak/rostersync/internal/batch"
)

var (
	errFractional = errors.New("value has a fractional part")
	errOutOfRange = errors.New("value is out of range for a 64-bit integer")
	errNotBoolean = errors.New("value is not a recognised boolean literal")
)

// wholeWithZeroFraction matches numeric literals such as "42.0" or "-7.0".
var wholeWithZeroFraction = regexp.MustCompile(`^[+-]?\d+\.0$`)

// stripNumericArtifact removes the ".0" a float round-trip leaves on whole
// numbers. Integral floats become their integer text; other values pass
// through unchanged.
func stripNumericArtifact(v any) any {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) && math.Abs(x) < 1<<63 {
			return strconv.FormatInt(int64(x), 10)
		}
	case string:
		if wholeWithZeroFraction.MatchString(x) {
			return strings.TrimSuffix(x, ".0")
		}
	}
	return v
}

// --- integer ---

func toInteger(v any) (any, error) {
	if batch.IsMissing(v) {
		return nil, nil
	}

	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case float64:
		return floatToInt(x)
	case string:
		return parseInteger(x)
	default:
		return parseInteger(fmt.Sprint(v))
	}
}

// parseInteger turns non-numeric text into NULL but refuses numbers it would
// have to truncate.
func parseInteger(s string) (any, error) {
	s = strings.TrimSpace(s)

	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return n, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return nil, errOutOfRange
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return nil, nil
	}
	return floatToInt(f)
}

func floatToInt(f float64) (any, error) {
	if math.IsNaN(f) {
		return nil, nil
	}
	if math.IsInf(f, 0) || math.Abs(f) >= 1<<63 {
		return nil, errOutOfRange
	}
	if f != math.Trunc(f) {
		return nil, errFractional
	}
	return int64(f), nil
}

// --- text ---

const textPlaceholder = " "

var textMissing = map[string]bool{
	"":     true,
	"nan":  true,
	"NaN":  true,
	"<NA>": true,
	"None": true,
	"NULL": true,
	"null": true,
}

func toText(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return textPlaceholder, nil
	case string:
		if textMissing[x] {
			return textPlaceholder, nil
		}
		return x, nil
	case float64:
		if math.IsNaN(x) {
			return textPlaceholder, nil
		}
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case bool:
		return strconv.FormatBool(x), nil
	case time.Time:
		return x.Format(time.RFC3339), nil
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		out, err := sonic.ConfigStd.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(out), nil
	default:
		return fmt.Sprint(v), nil
	}
}

// --- boolean ---

var boolLiterals = map[string]bool{
	"true": true, "t": true, "yes": true, "y": true, "1": true, "on": true,
	"false": false, "f": false, "no": false, "n": false, "0": false, "off": false,
}

func toBoolean(v any) (any, error) {
	if batch.IsMissing(v) {
		return nil, nil
	}

	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return intToBool(x)
	case int:
		return intToBool(int64(x))
	case float64:
		if x == 0 || x == 1 {
			return x == 1, nil
		}
		return nil, errNotBoolean
	case string:
		b, ok := boolLiterals[strings.ToLower(strings.TrimSpace(x))]
		if !ok {
			return nil, fmt.Errorf("%w: %q", errNotBoolean, x)
		}
		return b, nil
	default:
		return nil, errNotBoolean
	}
}

func intToBool(n int64) (any, error) {
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return nil, errNotBoolean
	}
}

// --- timestamp ---

// DatetimeLayout is the fixed MM-DD-YYYY HH:MM:SS format the roster export
// writes its date columns in.
const DatetimeLayout = "01-02-2006 15:04:05"

// timestampLayouts are tried before the general parser so that the export's
// own formats are never read ambiguously.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
	DatetimeLayout,
	"01-02-2006",
}

// toTimestamp parses best effort and always yields UTC. Values that cannot be
// read as a date become NULL.
func toTimestamp(v any) any {
	if batch.IsMissing(v) {
		return nil
	}

	switch x := v.(type) {
	case time.Time:
		return x.UTC()
	case string:
		if t, ok := parseTimestamp(x); ok {
			return t
		}
		return nil
	default:
		if t, ok := parseTimestamp(fmt.Sprint(v)); ok {
			return t
		}
		return nil
	}
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// --- json ---

// toJSON keeps a string that already holds a JSON object or array as is, so
// custom_fields written by the extract stage is stored as an object rather
// than re-encoded as a string scalar. Everything else is JSON-encoded.
func toJSON(v any) (any, error) {
	if batch.IsMissing(v) {
		return nil, nil
	}

	if s, ok := v.(string); ok {
		trimmed := strings.TrimSpace(s)
		if (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) &&
			sonic.ConfigStd.Valid([]byte(trimmed)) {
			return trimmed, nil
		}
	}

	out, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(out), nil
}

// --- other ---

func toOther(v any) any {
	if batch.IsMissing(v) {
		return nil
	}
	return v
}
