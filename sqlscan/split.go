package sqlscan

import (
	"regexp"
	"strings"
)

// Statement is one statement of a script. Text runs from its first to its
// last significant token; Tokens are the significant tokens with offsets
// relative to Text.
type Statement struct {
	Text   string
	Tokens []Token
}

// Keyword returns the upper-cased leading word of the statement, looking
// through opening parentheses.
func (s Statement) Keyword() string {
	for _, t := range s.Tokens {
		if t.IsPunct("(") {
			continue
		}
		if t.Kind == Word {
			return strings.ToUpper(t.Text)
		}
		return ""
	}
	return ""
}

// Split breaks sql into statements on semicolons that are outside string
// literals, quoted identifiers and comments. Statements that contain only
// whitespace or comments are dropped.
func Split(sql string, d Dialect) ([]Statement, error) {
	toks, err := Lex(sql, d)
	if err != nil {
		return nil, err
	}

	var (
		out     []Statement
		current []Token
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		first, last := current[0], current[len(current)-1]
		text := sql[first.Pos:last.End]
		rebased := make([]Token, len(current))
		for i, t := range current {
			t.Pos -= first.Pos
			t.End -= first.Pos
			rebased[i] = t
		}
		out = append(out, Statement{Text: text, Tokens: rebased})
		current = nil
	}

	for _, t := range toks {
		if t.Trivia() {
			continue
		}
		if t.IsPunct(";") {
			flush()
			continue
		}
		current = append(current, t)
	}
	flush()
	return out, nil
}

// Join renders statements as one script.
func Join(stmts []string) string {
	var b strings.Builder
	for _, s := range stmts {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(s)
		b.WriteString(";")
	}
	return b.String()
}

var simpleIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// QuoteIdent quotes name for d unless it is a plain identifier.
func QuoteIdent(name string, d Dialect) string {
	if simpleIdent.MatchString(name) && !IsReserved(name) {
		return name
	}
	if d == MySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
