package sqlscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(stmts []Statement) []string {
	out := make([]string, len(stmts))
	for i, s := range stmts {
		out[i] = s.Text
	}
	return out
}

func TestSplit(t *testing.T) {
	src := `
		-- seed data
		INSERT INTO t VALUES ('a;b');
		;;
		/* nothing */ ;
		SELECT "x;y" FROM t; SELECT 2`
	stmts, err := Split(src, SQLite)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"INSERT INTO t VALUES ('a;b')",
		`SELECT "x;y" FROM t`,
		"SELECT 2",
	}, texts(stmts))
}

func TestSplitRebasesTokens(t *testing.T) {
	stmts, err := Split("SELECT 1; UPDATE t SET a = 1", Generic)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	second := stmts[1]
	for _, tok := range second.Tokens {
		assert.Equal(t, tok.Text, second.Text[tok.Pos:tok.End])
	}
	assert.Equal(t, "UPDATE", second.Keyword())
}

func TestStatementKeywordThroughParens(t *testing.T) {
	stmts, err := Split("((select 1) union (select 2))", Generic)
	require.NoError(t, err)
	assert.Equal(t, "SELECT", stmts[0].Keyword())
}

func TestSplitEmpty(t *testing.T) {
	stmts, err := Split("  -- only a comment\n", Generic)
	require.NoError(t, err)
	assert.Empty(t, stmts)
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "SELECT 1;\nSELECT 2;", Join([]string{" SELECT 1 ", "", "SELECT 2"}))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "name", QuoteIdent("name", Postgres))
	assert.Equal(t, `"first name"`, QuoteIdent("first name", Postgres))
	assert.Equal(t, "`order`", QuoteIdent("order", MySQL))
}
