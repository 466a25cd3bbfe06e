package engine

import (
	"github.com/elmanelman/sql-judge/sqlscan"
)

var rowKeywords = map[string]bool{
	"SELECT":   true,
	"PRAGMA":   true,
	"EXPLAIN":  true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"VALUES":   true,
	"TABLE":    true,
}

// returnsRows reports whether stmt produces a result set. A WITH statement
// is classified by the statement after its CTE list; any statement with a
// top-level RETURNING produces rows.
func returnsRows(stmt sqlscan.Statement) bool {
	kw := stmt.Keyword()
	if rowKeywords[kw] {
		return true
	}
	depth := 0
	mainFound := kw != "WITH"
	for _, t := range stmt.Tokens {
		switch {
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
		case depth != 0:
		case t.Is("RETURNING"):
			return true
		case !mainFound && t.Is("SELECT", "VALUES", "TABLE"):
			return true
		case !mainFound && t.Is("INSERT", "UPDATE", "DELETE", "MERGE"):
			mainFound = true
		}
	}
	return false
}

// classify lexes a statement that was split by the caller.
func classify(text string, d sqlscan.Dialect) bool {
	toks, err := sqlscan.Lex(text, d)
	if err != nil {
		return false
	}
	return returnsRows(sqlscan.Statement{Text: text, Tokens: sqlscan.Significant(toks)})
}
