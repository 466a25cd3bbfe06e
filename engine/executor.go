package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/elmanelman/sql-judge/sqlscan"
)

// Executor runs scripts on a fresh connection per call and keeps no engine
// handle between calls, so it is safe for concurrent use.
type Executor struct {
	metrics *metrics
}

func NewExecutor(reg prometheus.Registerer) *Executor {
	return &Executor{metrics: newMetrics(reg)}
}

// Execute splits sqlText into statements and runs them in order on one
// session. The first failing statement aborts the script with a
// *StatementError.
func (x *Executor) Execute(ctx context.Context, e Engine, p Params, sqlText string) (*Result, error) {
	d, err := DriverFor(e)
	if err != nil {
		return nil, err
	}
	stmts, err := sqlscan.Split(sqlText, d.Dialect())
	if err != nil {
		x.metrics.observe(e, outcomeInvalid, 0)
		return nil, &StatementError{Index: 0, Statement: sqlText, Err: err}
	}
	texts := make([]string, len(stmts))
	kinds := make([]bool, len(stmts))
	for i, s := range stmts {
		texts[i] = s.Text
		kinds[i] = returnsRows(s)
	}
	return x.run(ctx, e, d, p, texts, kinds)
}

// ExecuteStatements runs statements the caller already split, such as
// PL/SQL blocks that contain semicolons.
func (x *Executor) ExecuteStatements(ctx context.Context, e Engine, p Params, stmts []string) (*Result, error) {
	d, err := DriverFor(e)
	if err != nil {
		return nil, err
	}
	kinds := make([]bool, len(stmts))
	for i, s := range stmts {
		kinds[i] = classify(s, d.Dialect())
	}
	return x.run(ctx, e, d, p, stmts, kinds)
}

func (x *Executor) run(ctx context.Context, e Engine, d Driver, p Params, stmts []string, rows []bool) (res *Result, err error) {
	start := time.Now()
	defer func() {
		x.metrics.observe(e, outcomeOf(err), time.Since(start))
	}()

	dsn, err := d.DSN(p)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.ConnectContext(ctx, d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnection, e, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	conn, err := db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnection, e, err)
	}
	defer conn.Close()

	res = &Result{ID: uuid.NewString(), Engine: e, Statements: len(stmts)}
	var sets []ResultSet
	for i, stmt := range stmts {
		stmtStart := time.Now()
		kind := "exec"
		if rows[i] {
			kind = "query"
			var set ResultSet
			if set, err = query(ctx, conn, d, stmt); err == nil {
				sets = append(sets, set)
			}
		} else {
			err = exec(ctx, conn, d, stmt, res)
		}
		x.metrics.statements.WithLabelValues(string(e), kind).Observe(time.Since(stmtStart).Seconds())
		if err != nil {
			return nil, &StatementError{Index: i, Statement: stmt, Err: err}
		}
	}

	if n := len(sets); n > 0 {
		res.ResultSet = sets[n-1]
		res.Secondary = sets[:n-1]
	} else {
		res.ResultSet = ResultSet{Columns: []string{}, Rows: [][]interface{}{}}
	}
	res.RowCount = len(res.Rows)
	res.Elapsed = time.Since(start)
	return res, nil
}

func query(ctx context.Context, conn *sqlx.Conn, d Driver, stmt string) (ResultSet, error) {
	rows, err := conn.QueryxContext(ctx, stmt)
	if err != nil {
		return ResultSet{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return ResultSet{}, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return ResultSet{}, err
	}

	set := ResultSet{Columns: cols, Rows: [][]interface{}{}}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return ResultSet{}, err
		}
		for i := range values {
			values[i] = d.Normalize(values[i], types[i].DatabaseTypeName())
		}
		set.Rows = append(set.Rows, values)
	}
	return set, rows.Err()
}

func exec(ctx context.Context, conn *sqlx.Conn, d Driver, stmt string, res *Result) error {
	r, err := conn.ExecContext(ctx, stmt)
	if err != nil {
		return err
	}
	if n, err := r.RowsAffected(); err == nil {
		res.RowsAffected += n
	}
	if d.LastInsertID() {
		if id, err := r.LastInsertId(); err == nil && id != 0 {
			res.LastInsertID = id
			res.HasLastInsertID = true
		}
	}
	return nil
}

func outcomeOf(err error) string {
	var stmtErr *StatementError
	switch {
	case err == nil:
		return outcomeOK
	case errors.As(err, &stmtErr):
		return outcomeStatementError
	case errors.Is(err, ErrConnection):
		return outcomeConnection
	}
	return outcomeInvalid
}
