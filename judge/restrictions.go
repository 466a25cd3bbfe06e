package judge

import (
	"strings"

	"github.com/elmanelman/sql-judge/sqlscan"
)

// violatedRestriction returns the first restricted keyword used by
// solution. A restriction may span several words, like "ORDER BY". Literals,
// quoted identifiers and comments are not searched.
func violatedRestriction(solution string, restrictions []string, d sqlscan.Dialect) (string, bool) {
	if len(restrictions) == 0 {
		return "", false
	}
	toks, err := sqlscan.Lex(solution, d)
	if err != nil {
		// unlexable solutions fail later anyway, search the raw text
		prepared := " " + prepareSelectionSolution(solution) + " "
		for _, r := range restrictions {
			if strings.Contains(prepared, " "+strings.ToUpper(strings.TrimSpace(r))+" ") {
				return r, true
			}
		}
		return "", false
	}

	words := sqlscan.Significant(toks)
	for _, r := range restrictions {
		want := strings.Fields(r)
		if len(want) == 0 {
			continue
		}
		for i := range words {
			if matchWords(words[i:], want) {
				return r, true
			}
		}
	}
	return "", false
}

func matchWords(toks []sqlscan.Token, want []string) bool {
	if len(toks) < len(want) {
		return false
	}
	for i, w := range want {
		if !toks[i].Is(w) {
			return false
		}
	}
	return true
}
