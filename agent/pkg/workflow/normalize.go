package workflow

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// NormalizeValue converts a driver value into one of int64, float64,
// string, bool or nil. Decimals become float64, dates become YYYY-MM-DD,
// other timestamps RFC 3339, UUIDs their string form. NaN and Inf become
// nil so the result is JSON-safe.
func NormalizeValue(v any) any {
	if v == nil {
		return nil
	}

	switch val := v.(type) {
	case string:
		return val
	case bool:
		return val
	case int64:
		return val
	case float64:
		return finite(val)
	case float32:
		return finite(float64(val))
	case []byte:
		return string(val)
	case time.Time:
		return formatTime(val)
	case uuid.UUID:
		return val.String()
	case [16]byte:
		return uuid.UUID(val).String()
	case decimal.Decimal:
		f, _ := val.Float64()
		return finite(f)
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		if val.NaN || val.InfinityModifier != pgtype.Finite {
			return nil
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return finite(f.Float64)
	case pgtype.Date:
		if !val.Valid || val.InfinityModifier != pgtype.Finite {
			return nil
		}
		return formatTime(val.Time)
	case pgtype.Timestamp:
		if !val.Valid || val.InfinityModifier != pgtype.Finite {
			return nil
		}
		return formatTime(val.Time)
	case pgtype.Timestamptz:
		if !val.Valid || val.InfinityModifier != pgtype.Finite {
			return nil
		}
		return formatTime(val.Time)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return finite(f)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return NormalizeValue(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return float64(u)
		}
		return int64(u)
	case reflect.Float32, reflect.Float64:
		return finite(rv.Float())
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	}

	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}

// NormalizeRow builds a row map from parallel column and value slices.
func NormalizeRow(columns []string, values []any) map[string]any {
	row := make(map[string]any, len(columns))
	for i, col := range columns {
		if i < len(values) {
			row[col] = NormalizeValue(values[i])
		} else {
			row[col] = nil
		}
	}
	return row
}

func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func formatTime(t time.Time) string {
	u := t.UTC()
	if u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0 {
		return u.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339)
}
