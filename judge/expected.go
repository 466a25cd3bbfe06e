package judge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elmanelman/sql-judge/engine"
)

var ErrMalformedExpected = errors.New("malformed expected result")

// Expected is the canonical result of a challenge. Columns keep the order
// the engine returned at generation time.
type Expected struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

func ExpectedFrom(set engine.ResultSet) Expected {
	e := Expected{Columns: set.Columns, Rows: set.Rows}
	if e.Columns == nil {
		e.Columns = []string{}
	}
	if e.Rows == nil {
		e.Rows = [][]interface{}{}
	}
	return e
}

// Encode is deterministic: equal documents encode to equal bytes.
func (e Expected) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ExpectedFrom(engine.ResultSet{Columns: e.Columns, Rows: e.Rows})); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// DecodeExpected reads numbers as json.Number so decimal values survive.
func DecodeExpected(data []byte) (Expected, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Expected{}, ErrNoReference
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var e Expected
	if err := dec.Decode(&e); err != nil {
		return Expected{}, fmt.Errorf("%w: %v", ErrMalformedExpected, err)
	}
	if e.Columns == nil {
		return Expected{}, fmt.Errorf("%w: no columns", ErrMalformedExpected)
	}
	for i, row := range e.Rows {
		if len(row) != len(e.Columns) {
			return Expected{}, fmt.Errorf("%w: row %d has %d values for %d columns", ErrMalformedExpected, i, len(row), len(e.Columns))
		}
	}
	if e.Rows == nil {
		e.Rows = [][]interface{}{}
	}
	return e, nil
}

func (e Expected) ResultSet() engine.ResultSet {
	return engine.ResultSet{Columns: e.Columns, Rows: e.Rows}
}
