package judge

import (
	"context"
	"fmt"

	"github.com/elmanelman/sql-judge/engine"
	"github.com/elmanelman/sql-judge/schema"
	"github.com/elmanelman/sql-judge/sqlscan"
)

// Targets holds the params of the shared database of every configured
// engine.
type Targets map[engine.Engine]engine.Params

func (t Targets) Params(e engine.Engine) (engine.Params, error) {
	p, ok := t[e]
	if !ok {
		return engine.Params{}, fmt.Errorf("%w: %s", ErrNoTarget, e)
	}
	return p, nil
}

type Report struct {
	Engine   engine.Engine    `json:"engine"`
	Tables   []schema.Table   `json:"tables"`
	Warnings []schema.Warning `json:"warnings,omitempty"`
}

func (r *Report) warn(ws ...schema.Warning) {
	for _, w := range ws {
		dup := false
		for _, have := range r.Warnings {
			if have == w {
				dup = true
				break
			}
		}
		if !dup {
			r.Warnings = append(r.Warnings, w)
		}
	}
}

// Materializer loads challenge tables into an engine.
type Materializer struct {
	executor *engine.Executor
}

func NewMaterializer(executor *engine.Executor) *Materializer {
	return &Materializer{executor: executor}
}

// Materialize recreates every table of c in display order and loads its
// practice and grading datasets. Each table is one script on one session.
func (m *Materializer) Materialize(ctx context.Context, c *Challenge, e engine.Engine, p engine.Params) (*Report, error) {
	d, err := engine.DriverFor(e)
	if err != nil {
		return nil, err
	}
	layout, err := Layout(c, d.Dialect())
	if err != nil {
		return nil, err
	}

	report := &Report{Engine: e, Tables: []schema.Table{}}
	for _, l := range layout {
		stmts := []string{d.DropTable(l.Table.Physical), l.Create}
		for _, flag := range []schema.Flag{schema.Practice, schema.Grading} {
			data, err := datasetStatements(l, flag, d.Dialect())
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, data...)
		}
		if _, err := m.executor.ExecuteStatements(ctx, e, p, stmts); err != nil {
			return nil, fmt.Errorf("table %q: %w", l.Table.Name, err)
		}
		report.Tables = append(report.Tables, l.Table)
		report.warn(l.Warnings...)
		report.warn(schema.Lint(d.Dialect(), l.Source.Name, l.Source.SchemaSQL, l.Source.PracticeSQL, l.Source.GradingSQL)...)
	}
	return report, nil
}

// Reload replaces the rows of one dataset, leaving the tables and the other
// dataset in place.
func (m *Materializer) Reload(ctx context.Context, c *Challenge, e engine.Engine, p engine.Params, flag schema.Flag) (*Report, error) {
	if !flag.Valid() {
		return nil, schema.ErrInvalidFlag
	}
	d, err := engine.DriverFor(e)
	if err != nil {
		return nil, err
	}
	layout, err := Layout(c, d.Dialect())
	if err != nil {
		return nil, err
	}

	report := &Report{Engine: e, Tables: []schema.Table{}}
	for _, l := range layout {
		data, err := datasetStatements(l, flag, d.Dialect())
		if err != nil {
			return nil, err
		}
		stmts := append([]string{schema.ClearStatement(l.Table.Physical, flag)}, data...)
		if _, err := m.executor.ExecuteStatements(ctx, e, p, stmts); err != nil {
			return nil, fmt.Errorf("table %q: %w", l.Table.Name, err)
		}
		report.Tables = append(report.Tables, l.Table)
		report.warn(l.Warnings...)
	}
	return report, nil
}

func datasetStatements(l TableLayout, flag schema.Flag, d sqlscan.Dialect) ([]string, error) {
	script, err := schema.ProcessDataset(l.Source.Dataset(flag), l.Table.Physical, flag, l.Table.Columns, d)
	if err != nil {
		return nil, fmt.Errorf("table %q, %s dataset: %w", l.Table.Name, flag, err)
	}
	if script == "" {
		return nil, nil
	}
	stmts, err := sqlscan.Split(script, d)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(stmts))
	for i, s := range stmts {
		texts[i] = s.Text
	}
	return texts, nil
}
