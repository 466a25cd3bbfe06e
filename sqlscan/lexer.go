// Package sqlscan is a small SQL-aware lexer. It does not parse SQL; it only
// knows enough about literals, quoted identifiers and comments to let callers
// split scripts and splice text at token boundaries.
package sqlscan

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	Space Kind = iota
	Comment
	Word
	QuotedIdent
	String
	Number
	Param
	Punct
)

func (k Kind) String() string {
	switch k {
	case Space:
		return "space"
	case Comment:
		return "comment"
	case Word:
		return "word"
	case QuotedIdent:
		return "quoted identifier"
	case String:
		return "string"
	case Number:
		return "number"
	case Param:
		return "parameter"
	case Punct:
		return "punctuation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Dialect selects the lexical rules that differ between engines.
type Dialect int

const (
	Generic Dialect = iota
	SQLite
	MySQL
	Postgres
	Oracle
)

// ErrUnterminated is returned when a string, quoted identifier or block
// comment runs to the end of input.
var ErrUnterminated = errors.New("unterminated literal")

// Token is a lexeme with its byte offsets in the source text.
type Token struct {
	Kind Kind
	Text string
	Pos  int
	End  int
}

// Trivia reports whether the token carries no meaning for the statement.
func (t Token) Trivia() bool {
	return t.Kind == Space || t.Kind == Comment
}

// Is reports whether t is an unquoted word equal to one of words,
// ignoring case.
func (t Token) Is(words ...string) bool {
	if t.Kind != Word {
		return false
	}
	for _, w := range words {
		if strings.EqualFold(t.Text, w) {
			return true
		}
	}
	return false
}

// IsPunct reports whether t is the punctuation p.
func (t Token) IsPunct(p string) bool {
	return t.Kind == Punct && t.Text == p
}

// IsIdent reports whether t can name a relation or column.
func (t Token) IsIdent() bool {
	return t.Kind == Word || t.Kind == QuotedIdent
}

// Ident returns the identifier value of a word or quoted identifier with
// the quotes removed and doubled closing quotes collapsed.
func (t Token) Ident() string {
	if t.Kind != QuotedIdent || len(t.Text) < 2 {
		return t.Text
	}
	closing := t.Text[len(t.Text)-1:]
	inner := t.Text[1 : len(t.Text)-1]
	return strings.ReplaceAll(inner, closing+closing, closing)
}

// Lex splits sql into tokens. Every byte of sql belongs to exactly one token.
func Lex(sql string, d Dialect) ([]Token, error) {
	l := &lexer{src: sql, dialect: d}
	for l.pos < len(l.src) {
		if err := l.next(); err != nil {
			return nil, err
		}
	}
	return l.toks, nil
}

// Significant returns the tokens of toks that are not trivia.
func Significant(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for _, t := range toks {
		if !t.Trivia() {
			out = append(out, t)
		}
	}
	return out
}

type lexer struct {
	src     string
	pos     int
	dialect Dialect
	toks    []Token
}

func (l *lexer) peek(n int) byte {
	if l.pos+n < len(l.src) {
		return l.src[l.pos+n]
	}
	return 0
}

func (l *lexer) emit(k Kind, start int) {
	l.toks = append(l.toks, Token{Kind: k, Text: l.src[start:l.pos], Pos: start, End: l.pos})
}

func (l *lexer) next() error {
	start := l.pos
	c := l.src[l.pos]
	switch {
	case isSpace(c):
		for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
			l.pos++
		}
		l.emit(Space, start)
	case c == '-' && l.peek(1) == '-' && l.lineComment(), c == '#' && l.dialect == MySQL:
		for l.pos < len(l.src) && l.src[l.pos] != '\n' {
			l.pos++
		}
		l.emit(Comment, start)
	case c == '/' && l.peek(1) == '*':
		return l.blockComment()
	case c == '\'':
		return l.quoted(String, '\'', l.dialect == MySQL)
	case (c == 'E' || c == 'e') && l.peek(1) == '\'' && l.dialect == Postgres:
		l.pos++
		return l.quotedFrom(start, String, '\'', true)
	case c == '"':
		return l.quoted(QuotedIdent, '"', l.dialect == MySQL)
	case c == '`':
		return l.quoted(QuotedIdent, '`', false)
	case c == '[' && l.dialect != Postgres:
		return l.quoted(QuotedIdent, ']', false)
	case c == '$' && l.dialect == Postgres:
		return l.dollar()
	case isDigit(c), c == '.' && isDigit(l.peek(1)):
		l.number()
		l.emit(Number, start)
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		l.emit(Word, start)
	case c == '?':
		l.pos++
		l.emit(Param, start)
	default:
		l.pos++
		if l.pos < len(l.src) && isOperatorPair(c, l.src[l.pos]) {
			l.pos++
		}
		l.emit(Punct, start)
	}
	return nil
}

// lineComment reports whether the -- at l.pos opens a comment. MySQL
// requires whitespace or a control character after it, so 1--1 is 1 - -1.
func (l *lexer) lineComment() bool {
	if l.dialect != MySQL {
		return true
	}
	c := l.peek(2)
	return l.pos+2 >= len(l.src) || c <= ' ' || c == 0x7f
}

// blockComment consumes /* ... */. Postgres comments nest.
func (l *lexer) blockComment() error {
	start := l.pos
	depth := 0
	for l.pos < len(l.src) {
		switch {
		case l.src[l.pos] == '/' && l.peek(1) == '*' && (depth == 0 || l.dialect == Postgres):
			depth++
			l.pos += 2
		case l.src[l.pos] == '*' && l.peek(1) == '/':
			depth--
			l.pos += 2
			if depth == 0 {
				l.emit(Comment, start)
				return nil
			}
		default:
			l.pos++
		}
	}
	return fmt.Errorf("%w: block comment at offset %d", ErrUnterminated, start)
}

func (l *lexer) quoted(k Kind, closing byte, backslash bool) error {
	return l.quotedFrom(l.pos, k, closing, backslash)
}

// quotedFrom consumes a literal whose opening quote is at l.pos.
func (l *lexer) quotedFrom(start int, k Kind, closing byte, backslash bool) error {
	l.pos++
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		switch {
		case backslash && ch == '\\':
			l.pos += 2
		case ch == closing && l.peek(1) == closing:
			l.pos += 2
		case ch == closing:
			l.pos++
			l.emit(k, start)
			return nil
		default:
			l.pos++
		}
	}
	l.pos = len(l.src)
	return fmt.Errorf("%w: %s at offset %d", ErrUnterminated, k, start)
}

// dollar handles Postgres positional parameters ($1) and dollar-quoted
// strings ($$...$$, $tag$...$tag$).
func (l *lexer) dollar() error {
	start := l.pos
	if isDigit(l.peek(1)) {
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
		l.emit(Param, start)
		return nil
	}
	end := l.pos + 1
	for end < len(l.src) && (isIdentStart(l.src[end]) || isDigit(l.src[end])) && l.src[end] != '$' {
		end++
	}
	if end >= len(l.src) || l.src[end] != '$' {
		l.pos++
		l.emit(Punct, start)
		return nil
	}
	tag := l.src[start : end+1]
	closeAt := strings.Index(l.src[end+1:], tag)
	if closeAt < 0 {
		l.pos = len(l.src)
		return fmt.Errorf("%w: dollar-quoted string at offset %d", ErrUnterminated, start)
	}
	l.pos = end + 1 + closeAt + len(tag)
	l.emit(String, start)
	return nil
}

func (l *lexer) number() {
	for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
		l.pos++
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		n := 1
		if c := l.peek(1); c == '+' || c == '-' {
			n = 2
		}
		if isDigit(l.peek(n)) {
			l.pos += n
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		}
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '$'
}

func isOperatorPair(a, b byte) bool {
	switch string([]byte{a, b}) {
	case "<=", ">=", "<>", "!=", "||", "::", "->", ":=", "==", "<<", ">>":
		return true
	}
	return false
}
