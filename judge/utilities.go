package judge

import (
	"strings"
	"unicode"
)

// prepareSelectionSolution upper-cases the solution and folds every run of
// whitespace and semicolons into one space.
func prepareSelectionSolution(query string) string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return unicode.IsSpace(r) || r == ';'
	})
	return strings.ToUpper(strings.Join(fields, " "))
}
