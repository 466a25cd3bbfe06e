package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/elmanelman/sql-judge/sqlscan"
)

var (
	ErrInvalidFlag  = errors.New("schema: dataset flag must be 1 (practice) or 2 (grading)")
	ErrNotAnInsert  = fmt.Errorf("%w: dataset statements must be INSERT statements", ErrAuthoring)
	ErrInsertTarget = fmt.Errorf("%w: INSERT without a target table", ErrAuthoring)
)

// insertModifiers may appear between INSERT/REPLACE and INTO.
var insertModifiers = []string{
	"OR", "REPLACE", "IGNORE", "ABORT", "FAIL", "ROLLBACK",
	"LOW_PRIORITY", "DELAYED", "HIGH_PRIORITY",
}

// ProcessDataset retargets every INSERT of a dataset at the physical table
// and follows them with an UPDATE that tags the freshly inserted, untagged
// rows with flag. Inserts without a column list get columns injected when
// they are known, so the trailing flag column keeps its default. Empty
// input yields empty output.
func ProcessDataset(raw, physical string, flag Flag, columns []string, d sqlscan.Dialect) (string, error) {
	if !flag.Valid() {
		return "", ErrInvalidFlag
	}
	stmts, err := sqlscan.Split(raw, d)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthoring, err)
	}
	if len(stmts) == 0 {
		return "", nil
	}

	out := make([]string, 0, len(stmts)+1)
	for i, stmt := range stmts {
		text, err := retargetInsert(stmt, physical, columns)
		if err != nil {
			return "", fmt.Errorf("dataset statement %d: %w", i, err)
		}
		out = append(out, text)
	}
	out = append(out, TagStatement(physical, flag))
	return sqlscan.Join(out), nil
}

// TagStatement stamps untagged rows of a physical table with flag.
func TagStatement(physical string, flag Flag) string {
	return fmt.Sprintf("UPDATE %s SET %s = %d WHERE %s = %d", physical, FlagColumn, int(flag), FlagColumn, int(Untagged))
}

// ClearStatement removes the rows of one dataset before it is reloaded.
func ClearStatement(physical string, flag Flag) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %d", physical, FlagColumn, int(flag))
}

func retargetInsert(stmt sqlscan.Statement, physical string, columns []string) (string, error) {
	toks := stmt.Tokens
	if len(toks) == 0 || !toks[0].Is("INSERT", "REPLACE") {
		return "", ErrNotAnInsert
	}
	i := 1
	for i < len(toks) && toks[i].Is(insertModifiers...) {
		i++
	}
	if i >= len(toks) || !toks[i].Is("INTO") {
		return "", ErrInsertTarget
	}
	first := i + 1
	last, ok := sqlscan.QualifiedName(toks, first)
	if !ok {
		return "", ErrInsertTarget
	}

	edits := []sqlscan.Edit{{Pos: toks[first].Pos, End: toks[last].End, Text: physical}}
	next := last + 1
	if next < len(toks) && len(columns) > 0 && toks[next].Is("VALUES", "SELECT", "WITH") {
		edits = append(edits, sqlscan.Insert(toks[last].End, " ("+strings.Join(columns, ", ")+")"))
	}
	return sqlscan.Apply(stmt.Text, edits), nil
}
