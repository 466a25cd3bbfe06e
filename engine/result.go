package engine

import "time"

// ResultSet keeps rows as ordered tuples so duplicate column names do not
// lose values.
type ResultSet struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// Maps is the column->value view of the rows. For duplicate column names
// the rightmost value wins.
func (s ResultSet) Maps() []map[string]interface{} {
	out := make([]map[string]interface{}, len(s.Rows))
	for i, row := range s.Rows {
		m := make(map[string]interface{}, len(s.Columns))
		for j, col := range s.Columns {
			if j < len(row) {
				m[col] = row[j]
			}
		}
		out[i] = m
	}
	return out
}

type Result struct {
	ID     string `json:"id"`
	Engine Engine `json:"engine"`

	// primary result set: the last statement that returned rows
	ResultSet
	RowCount int `json:"row_count"`

	Secondary []ResultSet `json:"secondary,omitempty"`

	RowsAffected    int64 `json:"rows_affected"`
	LastInsertID    int64 `json:"last_insert_id,omitempty"`
	HasLastInsertID bool  `json:"-"`

	Statements int           `json:"statements"`
	Elapsed    time.Duration `json:"elapsed"`
}
