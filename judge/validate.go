package judge

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/elmanelman/sql-judge/engine"
)

// Comparison carries both result sets so the caller can render a diff.
type Comparison struct {
	Equal    bool             `json:"equal"`
	Reason   string           `json:"reason,omitempty"`
	Learner  engine.ResultSet `json:"learner"`
	Expected Expected         `json:"expected"`
}

// Validate compares the rows of learner and expected as multisets of value
// tuples. Row order is ignored, duplicates count, column order inside a row
// matters and column names do not. Numbers compare by decimal value. Any
// failure while comparing makes the sets unequal.
func Validate(learner engine.ResultSet, expected Expected) (c Comparison) {
	c = Comparison{Learner: learner, Expected: expected}
	defer func() {
		if r := recover(); r != nil {
			c.Equal = false
			c.Reason = fmt.Sprintf("comparison failed: %v", r)
		}
	}()

	width := len(expected.Columns)
	if len(learner.Columns) != width {
		c.Reason = fmt.Sprintf("expected %d columns, got %d", width, len(learner.Columns))
		return c
	}
	if len(learner.Rows) != len(expected.Rows) {
		c.Reason = fmt.Sprintf("expected %d rows, got %d", len(expected.Rows), len(learner.Rows))
		return c
	}

	counts := make(map[string]int, len(expected.Rows))
	for _, row := range expected.Rows {
		key, err := rowKey(row, width)
		if err != nil {
			c.Reason = err.Error()
			return c
		}
		counts[key]++
	}
	for i, row := range learner.Rows {
		key, err := rowKey(row, width)
		if err != nil {
			c.Reason = err.Error()
			return c
		}
		if counts[key] == 0 {
			c.Reason = fmt.Sprintf("row %d is not expected", i+1)
			return c
		}
		counts[key]--
	}
	c.Equal = true
	return c
}

// SameOrder reports whether the rows of learner appear in the order of
// expected. It assumes Validate already found them equal.
func SameOrder(learner engine.ResultSet, expected Expected) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	if len(learner.Rows) != len(expected.Rows) {
		return false
	}
	width := len(expected.Columns)
	for i := range expected.Rows {
		want, err := rowKey(expected.Rows[i], width)
		if err != nil {
			return false
		}
		got, err := rowKey(learner.Rows[i], width)
		if err != nil || got != want {
			return false
		}
	}
	return true
}

func rowKey(row []interface{}, width int) (string, error) {
	if len(row) != width {
		return "", fmt.Errorf("row has %d values for %d columns", len(row), width)
	}
	parts := make([]string, len(row))
	for i, v := range row {
		k, err := valueKey(v)
		if err != nil {
			return "", err
		}
		parts[i] = strconv.Quote(k)
	}
	return strings.Join(parts, ","), nil
}

func valueKey(v interface{}) (string, error) {
	switch x := v.(type) {
	case nil:
		return "n", nil
	case bool:
		return "b" + strconv.FormatBool(x), nil
	case string:
		return "s" + x, nil
	case int64:
		return "d" + strconv.FormatInt(x, 10), nil
	case int:
		return "d" + strconv.Itoa(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "f" + strconv.FormatFloat(x, 'g', -1, 64), nil
		}
		return "d" + decimal.NewFromFloat(x).String(), nil
	case json.Number:
		d, err := decimal.NewFromString(string(x))
		if err != nil {
			return "", fmt.Errorf("malformed number %q", string(x))
		}
		return "d" + d.String(), nil
	case decimal.Decimal:
		return "d" + x.String(), nil
	}
	return "", fmt.Errorf("unsupported value %T", v)
}
