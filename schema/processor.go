package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/elmanelman/sql-judge/sqlscan"
)

// ErrAuthoring is wrapped by every error caused by the challenge content.
var ErrAuthoring = errors.New("schema")

var (
	ErrEmptySchema        = fmt.Errorf("%w: empty schema statement", ErrAuthoring)
	ErrMultipleStatements = fmt.Errorf("%w: expected a single CREATE TABLE statement", ErrAuthoring)
	ErrNoColumnList       = fmt.Errorf("%w: CREATE TABLE without a column list", ErrAuthoring)
	ErrUnbalanced         = fmt.Errorf("%w: unbalanced parentheses in column list", ErrAuthoring)
	ErrNotCreateTable     = fmt.Errorf("%w: not a CREATE TABLE statement", ErrAuthoring)
)

// Result is a processed schema statement.
type Result struct {
	SQL      string
	Table    Table
	Warnings []Warning
}

// constraintWords start table-level entries of a column list.
var constraintWords = []string{
	"CONSTRAINT", "PRIMARY", "UNIQUE", "FOREIGN", "CHECK", "KEY", "INDEX",
	"FULLTEXT", "SPATIAL", "EXCLUDE", "LIKE", "PERIOD",
}

// ProcessSchema rewrites a CREATE TABLE statement so that it creates the
// physical table of the challenge and carries the flag column. When the
// table name cannot be extracted, whatever stands between TABLE and the
// column list is replaced by the physical name of the declared name, or of
// table_<ordinal> when none is declared, and a warning is attached.
func ProcessSchema(raw string, challengeID int64, declaredName string, ordinal int, d sqlscan.Dialect) (Result, error) {
	stmts, err := sqlscan.Split(raw, d)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrAuthoring, err)
	}
	switch len(stmts) {
	case 0:
		return Result{}, ErrEmptySchema
	case 1:
	default:
		return Result{}, ErrMultipleStatements
	}
	stmt := stmts[0]
	toks := stmt.Tokens

	at, ok := tableClause(toks)
	if !ok {
		return Result{}, ErrNotCreateTable
	}

	name := declaredName
	var (
		res      Result
		nameEdit sqlscan.Edit
		open     int
	)
	if nameAt, ok := sqlscan.QualifiedName(toks, at); ok {
		logical := toks[nameAt].Ident()
		if name == "" {
			name = logical
		}
		res.Table = Table{Name: name, Physical: PhysicalName(challengeID, name)}
		if !strings.EqualFold(name, logical) {
			res.Warnings = append(res.Warnings, Warning{
				Table:   name,
				Message: fmt.Sprintf("schema creates %q but the table is declared as %q", logical, name),
			})
		}
		nameEdit = sqlscan.Replace(toks[nameAt], res.Table.Physical)
		open = nameAt + 1
		if open >= len(toks) || !toks[open].IsPunct("(") {
			return Result{}, ErrNoColumnList
		}
	} else {
		open = at
		for open < len(toks) && !toks[open].IsPunct("(") {
			open++
		}
		if open >= len(toks) {
			return Result{}, ErrNoColumnList
		}
		if name == "" {
			name = FallbackName(ordinal)
		}
		res.Table = Table{Name: name, Physical: PhysicalName(challengeID, name)}
		res.Warnings = append(res.Warnings, Warning{
			Table:   name,
			Message: fmt.Sprintf("could not extract a table name, using %s", name),
		})
		if open > at {
			nameEdit = sqlscan.Edit{Pos: toks[at].Pos, End: toks[open-1].End, Text: res.Table.Physical}
		} else {
			nameEdit = sqlscan.Insert(toks[open].Pos, res.Table.Physical+" ")
		}
	}

	entries, err := columnEntries(toks, open)
	if err != nil {
		return Result{}, err
	}

	hasFlag := false
	lastColumn := -1
	for _, e := range entries {
		first := toks[e[0]]
		if first.Is(constraintWords...) {
			continue
		}
		if strings.EqualFold(first.Ident(), FlagColumn) {
			hasFlag = true
			continue
		}
		res.Table.Columns = append(res.Table.Columns, first.Text)
		lastColumn = e[1]
	}
	if lastColumn < 0 && !hasFlag {
		return Result{}, ErrNoColumnList
	}

	edits := []sqlscan.Edit{nameEdit}
	if hasFlag {
		res.Warnings = append(res.Warnings, Warning{
			Table:   name,
			Message: "declares its own flag_id column; it must be NOT NULL DEFAULT 0",
		})
	} else {
		edits = append(edits, sqlscan.Insert(toks[lastColumn].End, ", "+flagColumnDef))
	}
	res.SQL = sqlscan.Apply(stmt.Text, edits)
	return res, nil
}

// TableName extracts the logical table name of a CREATE TABLE statement.
func TableName(raw string, d sqlscan.Dialect) (string, bool) {
	stmts, err := sqlscan.Split(raw, d)
	if err != nil || len(stmts) == 0 {
		return "", false
	}
	toks := stmts[0].Tokens
	at, ok := tableClause(toks)
	if !ok {
		return "", false
	}
	last, ok := sqlscan.QualifiedName(toks, at)
	if !ok {
		return "", false
	}
	return toks[last].Ident(), true
}

// tableClause returns the index of the first token after
// CREATE [OR REPLACE] [TEMPORARY] TABLE [IF NOT EXISTS].
func tableClause(toks []sqlscan.Token) (int, bool) {
	i := 0
	if i >= len(toks) || !toks[i].Is("CREATE") {
		return 0, false
	}
	i++
	if i+1 < len(toks) && toks[i].Is("OR") && toks[i+1].Is("REPLACE") {
		i += 2
	}
	for i < len(toks) && toks[i].Is("TEMP", "TEMPORARY", "GLOBAL", "LOCAL", "UNLOGGED") {
		i++
	}
	if i >= len(toks) || !toks[i].Is("TABLE") {
		return 0, false
	}
	i++
	if i+2 < len(toks) && toks[i].Is("IF") && toks[i+1].Is("NOT") && toks[i+2].Is("EXISTS") {
		i += 3
	}
	return i, true
}

// columnEntries splits the parenthesized list opening at toks[open] into
// comma separated entries, each given as first and last token index.
func columnEntries(toks []sqlscan.Token, open int) ([][2]int, error) {
	var entries [][2]int
	depth := 0
	start := open + 1
	for i := open; i < len(toks); i++ {
		switch {
		case toks[i].IsPunct("("):
			depth++
		case toks[i].IsPunct(")"):
			depth--
			if depth == 0 {
				if i > start {
					entries = append(entries, [2]int{start, i - 1})
				}
				return entries, nil
			}
		case toks[i].IsPunct(",") && depth == 1:
			if i > start {
				entries = append(entries, [2]int{start, i - 1})
			}
			start = i + 1
		}
	}
	return nil, ErrUnbalanced
}
