package canonical

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tordrt/salesmetrics/internal/db"
	"github.com/tordrt/salesmetrics/internal/resolve"
)

// DataTypeError reports a source value that cannot be coerced to its
// declared type. The offending row is excluded; the run continues.
type DataTypeError struct {
	Entity resolve.Entity
	Field  string
	Row    string
	Value  any
	Err    error
}

func (e *DataTypeError) Error() string {
	return fmt.Sprintf("%s row %s: field %s: cannot coerce %v (%T): %v",
		e.Entity, e.Row, e.Field, e.Value, e.Value, e.Err)
}

func (e *DataTypeError) Unwrap() error { return e.Err }

var errMissing = errors.New("required value is null")

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// row reads canonical fields out of one raw record
type row struct {
	entity  resolve.Entity
	mapping resolve.Mapping
	rec     db.Record
	key     string
}

func newRow(entity resolve.Entity, m resolve.Mapping, rec db.Record, idx int) *row {
	return &row{entity: entity, mapping: m, rec: rec, key: "#" + strconv.Itoa(idx+1)}
}

// keyed replaces the positional row key once the identifier is known
func (r *row) keyed(key string) {
	r.key = key
}

// raw returns the value of a canonical field; ok is false when the column is
// unmapped or the value is null
func (r *row) raw(field string) (any, bool) {
	col, ok := r.mapping.Physical(field)
	if !ok {
		return nil, false
	}
	v := r.rec[col]
	if v == nil {
		return nil, false
	}
	return v, true
}

func (r *row) fail(field string, v any, err error) *DataTypeError {
	return &DataTypeError{Entity: r.entity, Field: field, Row: r.key, Value: v, Err: err}
}

func (r *row) id(field string) (string, error) {
	v, ok := r.raw(field)
	if !ok {
		return "", r.fail(field, nil, errMissing)
	}
	s, err := toID(v)
	if err != nil {
		return "", r.fail(field, v, err)
	}
	if s == "" {
		return "", r.fail(field, v, errMissing)
	}
	return s, nil
}

func (r *row) optID(field string) (*string, error) {
	v, ok := r.raw(field)
	if !ok {
		return nil, nil
	}
	s, err := toID(v)
	if err != nil {
		return nil, r.fail(field, v, err)
	}
	if s == "" {
		return nil, nil
	}
	return &s, nil
}

func (r *row) text(field string) (string, error) {
	v, ok := r.raw(field)
	if !ok {
		return "", nil
	}
	s, err := toText(v)
	if err != nil {
		return "", r.fail(field, v, err)
	}
	return s, nil
}

func (r *row) optText(field string) (*string, error) {
	v, ok := r.raw(field)
	if !ok {
		return nil, nil
	}
	s, err := toText(v)
	if err != nil {
		return nil, r.fail(field, v, err)
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return &s, nil
}

func (r *row) optTime(field string) (*time.Time, error) {
	v, ok := r.raw(field)
	if !ok {
		return nil, nil
	}
	t, err := toTime(v)
	if err != nil {
		return nil, r.fail(field, v, err)
	}
	if t == nil {
		return nil, nil
	}
	return t, nil
}

func (r *row) optDecimal(field string) (*decimal.Decimal, error) {
	v, ok := r.raw(field)
	if !ok {
		return nil, nil
	}
	if s, isText := v.(string); isText && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := toDecimal(v)
	if err != nil {
		return nil, r.fail(field, v, err)
	}
	return &d, nil
}

func toID(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int16:
		return strconv.FormatInt(int64(val), 10), nil
	case int:
		return strconv.Itoa(val), nil
	case float64:
		if val != math.Trunc(val) || math.IsInf(val, 0) || math.IsNaN(val) {
			return "", fmt.Errorf("non-integral identifier")
		}
		return strconv.FormatInt(int64(val), 10), nil
	default:
		return "", fmt.Errorf("unsupported identifier type")
	}
}

func toText(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case int64, int32, int16, int, float64:
		return fmt.Sprint(val), nil
	default:
		return "", fmt.Errorf("unsupported text type")
	}
}

func toTime(v any) (*time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		t := val.UTC()
		return &t, nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				t = t.UTC()
				return &t, nil
			}
		}
		return nil, fmt.Errorf("unrecognized date format")
	default:
		return nil, fmt.Errorf("unsupported date type")
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case decimal.Decimal:
		return val, nil
	case int64:
		return decimal.NewFromInt(val), nil
	case int32:
		return decimal.NewFromInt32(val), nil
	case int16:
		return decimal.NewFromInt(int64(val)), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case float64:
		if math.IsInf(val, 0) || math.IsNaN(val) {
			return decimal.Zero, fmt.Errorf("non-finite number")
		}
		return decimal.NewFromFloat(val), nil
	case float32:
		if math.IsInf(float64(val), 0) || math.IsNaN(float64(val)) {
			return decimal.Zero, fmt.Errorf("non-finite number")
		}
		return decimal.NewFromFloat32(val), nil
	case string:
		return decimal.NewFromString(strings.TrimSpace(val))
	default:
		return decimal.Zero, fmt.Errorf("unsupported numeric type")
	}
}
