package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type family int

const (
	otherFamily family = iota
	integerFamily
	floatFamily
	decimalFamily
)

// familyOf maps a column type name as reported by any of the drivers, with
// or without length and UNSIGNED, to a value family.
func familyOf(databaseType string) family {
	t := strings.ToUpper(strings.TrimSpace(databaseType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	t = strings.TrimPrefix(t, "UNSIGNED ")
	t = strings.TrimSuffix(t, " UNSIGNED")
	switch t {
	case "INT", "INTEGER", "TINYINT", "SMALLINT", "MEDIUMINT", "BIGINT",
		"INT2", "INT4", "INT8", "YEAR":
		return integerFamily
	case "FLOAT", "DOUBLE", "REAL", "FLOAT4", "FLOAT8", "DOUBLE PRECISION",
		"BINARY_FLOAT", "BINARY_DOUBLE":
		return floatFamily
	case "DECIMAL", "NUMERIC", "NUMBER", "DEC":
		return decimalFamily
	}
	return otherFamily
}

// normalize converts a scanned value into one of nil, string, int64,
// float64, bool or json.Number.
func normalize(v interface{}, databaseType string) interface{} {
	fam := familyOf(databaseType)
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return fromText(string(x), fam)
	case string:
		return fromText(x, fam)
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case uint64:
		if fam == decimalFamily || x > 1<<63-1 {
			return json.Number(strconv.FormatUint(x, 10))
		}
		return int64(x)
	case uint32:
		return int64(x)
	case float64:
		if fam == decimalFamily {
			return json.Number(decimal.NewFromFloat(x).String())
		}
		return x
	case float32:
		return normalize(float64(x), databaseType)
	case bool:
		return x
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case decimal.Decimal:
		return json.Number(x.String())
	case fmt.Stringer:
		return fromText(x.String(), fam)
	}
	return fmt.Sprint(v)
}

func fromText(s string, fam family) interface{} {
	switch fam {
	case integerFamily:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if d, err := decimal.NewFromString(s); err == nil {
			return json.Number(d.String())
		}
	case floatFamily:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case decimalFamily:
		if d, err := decimal.NewFromString(s); err == nil {
			return json.Number(d.String())
		}
	}
	return s
}
