package judge

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/elmanelman/sql-judge/engine"
	"github.com/elmanelman/sql-judge/schema"
	"github.com/elmanelman/sql-judge/sqlscan"
)

type Challenge struct {
	ID             int64      `db:"id" json:"id"`
	Title          string     `db:"title" json:"title"`
	Question       string     `db:"question" json:"question"`
	Hint           string     `db:"hint" json:"hint,omitempty"`
	ReferenceQuery string     `db:"reference_query" json:"-"`
	Engines        EngineList `db:"engines" json:"engines"`
	Expected       []byte     `db:"expected" json:"-"`
	Difficulty     string     `db:"difficulty" json:"difficulty"`
	Visible        bool       `db:"visible" json:"visible"`
	CheckOrder     bool       `db:"check_order" json:"check_order"`

	Restrictions []string         `db:"-" json:"restrictions,omitempty"`
	Tables       []ChallengeTable `db:"-" json:"tables,omitempty"`
}

type ChallengeTable struct {
	ID           int64  `db:"id" json:"id"`
	ChallengeID  int64  `db:"challenge_id" json:"challenge_id"`
	Name         string `db:"name" json:"name"`
	SchemaSQL    string `db:"schema_sql" json:"schema_sql"`
	PracticeSQL  string `db:"practice_sql" json:"practice_sql"`
	GradingSQL   string `db:"grading_sql" json:"grading_sql"`
	DisplayOrder int    `db:"display_order" json:"display_order"`
}

// Dataset returns the raw dataset SQL of flag.
func (t ChallengeTable) Dataset(flag schema.Flag) string {
	if flag == schema.Grading {
		return t.GradingSQL
	}
	return t.PracticeSQL
}

// EngineList is stored as a comma separated column. The first engine is the
// primary one.
type EngineList []engine.Engine

func (l EngineList) Primary() (engine.Engine, error) {
	if len(l) == 0 {
		return "", ErrNoEngines
	}
	return l[0], nil
}

func (l EngineList) Supports(e engine.Engine) bool {
	for _, x := range l {
		if x == e {
			return true
		}
	}
	return false
}

func (l EngineList) Value() (driver.Value, error) {
	parts := make([]string, len(l))
	for i, e := range l {
		parts[i] = string(e)
	}
	return strings.Join(parts, ","), nil
}

func (l *EngineList) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("engine list: unsupported column type %T", src)
	}
	list := EngineList{}
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		e, err := engine.Parse(part)
		if err != nil {
			return err
		}
		list = append(list, e)
	}
	*l = list
	return nil
}

// TableLayout is a challenge table processed for one dialect.
type TableLayout struct {
	Source   ChallengeTable
	Table    schema.Table
	Create   string
	Warnings []schema.Warning
}

// Layout processes the tables of c in display order.
func Layout(c *Challenge, d sqlscan.Dialect) ([]TableLayout, error) {
	tables := make([]ChallengeTable, len(c.Tables))
	copy(tables, c.Tables)
	sort.SliceStable(tables, func(i, j int) bool { return tables[i].DisplayOrder < tables[j].DisplayOrder })

	out := make([]TableLayout, 0, len(tables))
	seen := map[string]bool{}
	for i, t := range tables {
		res, err := schema.ProcessSchema(t.SchemaSQL, c.ID, t.Name, i+1, d)
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", t.Name, err)
		}
		if seen[res.Table.Physical] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTable, res.Table.Name)
		}
		seen[res.Table.Physical] = true
		out = append(out, TableLayout{Source: t, Table: res.Table, Create: res.SQL, Warnings: res.Warnings})
	}
	return out, nil
}

// scopeTables lists the tables a learner query may read.
func scopeTables(layout []TableLayout) []schema.Table {
	tables := make([]schema.Table, len(layout))
	for i, l := range layout {
		tables[i] = l.Table
	}
	return tables
}

var (
	ErrNotFound          = errors.New("not found")
	ErrNoEngines         = errors.New("challenge has no engines")
	ErrUnsupportedEngine = errors.New("engine is not supported by the challenge")
	ErrNoReference       = errors.New("challenge has no expected result")
	ErrDuplicateTable    = errors.New("duplicate challenge table")
	ErrNoTarget          = errors.New("engine is not configured")
)
