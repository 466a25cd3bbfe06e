package judge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elmanelman/sql-judge/sqlscan"
)

func TestViolatedRestriction(t *testing.T) {
	restrictions := []string{"JOIN", "order by", "HAVING"}

	cases := []struct {
		solution string
		want     string
	}{
		{"SELECT * FROM a JOIN b ON a.id = b.id", "JOIN"},
		{"select * from a inner join b using (id)", "JOIN"},
		{"SELECT * FROM a ORDER\n\tBY id", "order by"},
		{"SELECT * FROM a ORDER /* sneaky */ BY id", "order by"},
		{"SELECT dept FROM a GROUP BY dept HAVING COUNT(*) > 1", "HAVING"},
	}
	for _, tc := range cases {
		got, ok := violatedRestriction(tc.solution, restrictions, sqlscan.SQLite)
		assert.True(t, ok, tc.solution)
		assert.Equal(t, tc.want, got, tc.solution)
	}

	allowed := []string{
		"SELECT 'join' FROM a",
		"SELECT \"order\" FROM a -- ORDER BY later",
		"SELECT joined_at FROM a",
		"SELECT * FROM a ORDER_BY",
	}
	for _, solution := range allowed {
		_, ok := violatedRestriction(solution, restrictions, sqlscan.SQLite)
		assert.False(t, ok, solution)
	}

	_, ok := violatedRestriction("SELECT * FROM a JOIN b", nil, sqlscan.SQLite)
	assert.False(t, ok)
}

func TestViolatedRestrictionUnlexable(t *testing.T) {
	got, ok := violatedRestriction("select * from a join b where x = 'open", []string{"join"}, sqlscan.SQLite)
	assert.True(t, ok)
	assert.Equal(t, "join", got)
}

func TestPrepareSelectionSolution(t *testing.T) {
	assert.Equal(t, "SELECT * FROM A WHERE X = 1", prepareSelectionSolution(" select *\n from a\twhere x = 1;; "))
}
