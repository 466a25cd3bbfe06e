package schema

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/format"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"

	"github.com/elmanelman/sql-judge/sqlscan"
)

// Lint reports authoring problems of one challenge table. MySQL content is
// checked with the TiDB parser; other dialects are only checked for what the
// processors themselves can detect.
func Lint(d sqlscan.Dialect, declaredName, schemaSQL string, datasets ...string) []Warning {
	if d != sqlscan.MySQL {
		return nil
	}
	var warnings []Warning
	warn := func(format string, args ...interface{}) {
		warnings = append(warnings, Warning{Table: declaredName, Message: fmt.Sprintf(format, args...)})
	}

	p := parser.New()
	stmts, _, err := p.ParseSQL(schemaSQL)
	if err != nil {
		warn("schema does not parse as MySQL: %v", err)
	} else {
		for _, stmt := range stmts {
			create, ok := stmt.(*ast.CreateTableStmt)
			if !ok {
				warn("schema contains a %T, only CREATE TABLE is materialized", stmt)
				continue
			}
			if create.Table.Name.O != "" && declaredName != "" && !strings.EqualFold(create.Table.Name.O, declaredName) {
				warn("CREATE TABLE names %q", create.Table.Name.O)
			}
			if create.Select != nil {
				warn("CREATE TABLE ... SELECT cannot carry the flag column")
			}
			for _, col := range create.Cols {
				if col.Name.Name.L == FlagColumn && !hasZeroDefault(col) {
					warn("flag_id is declared without DEFAULT 0")
				}
			}
		}
	}

	for n, dataset := range datasets {
		if strings.TrimSpace(dataset) == "" {
			continue
		}
		stmts, _, err := p.ParseSQL(dataset)
		if err != nil {
			warn("dataset %d does not parse as MySQL: %v", n, err)
			continue
		}
		for _, stmt := range stmts {
			insert, ok := stmt.(*ast.InsertStmt)
			if !ok {
				warn("dataset %d contains a %T, only INSERT is allowed", n, stmt)
				continue
			}
			if name := insertTarget(insert); name != "" && declaredName != "" && !strings.EqualFold(name, declaredName) {
				warn("dataset %d inserts into %q", n, name)
			}
		}
	}
	return warnings
}

func hasZeroDefault(col *ast.ColumnDef) bool {
	for _, opt := range col.Options {
		if opt.Tp != ast.ColumnOptionDefaultValue || opt.Expr == nil {
			continue
		}
		var b strings.Builder
		if err := opt.Expr.Restore(format.NewRestoreCtx(format.DefaultRestoreFlags, &b)); err != nil {
			return false
		}
		return strings.Trim(b.String(), "'") == "0"
	}
	return false
}

func insertTarget(stmt *ast.InsertStmt) string {
	if stmt.Table == nil || stmt.Table.TableRefs == nil {
		return ""
	}
	src, ok := stmt.Table.TableRefs.Left.(*ast.TableSource)
	if !ok {
		return ""
	}
	name, ok := src.Source.(*ast.TableName)
	if !ok {
		return ""
	}
	return name.Name.O
}
