// Package rewrite scopes learner queries to one dataset of the shared
// challenge tables.
//
// The rewriter is a recursive-descent walk over sqlscan tokens. Every
// parenthesized group is consumed as a unit, so window specifications,
// function arguments and column lists are never mistaken for statement
// clauses; subqueries found inside groups, derived tables and CTE bodies are
// scoped as independent SELECT cores. Each core that reads challenge tables
// gets one flag predicate per table, anchored to the table's alias.
package rewrite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/elmanelman/sql-judge/schema"
	"github.com/elmanelman/sql-judge/sqlscan"
)

// Strategy selects how a core is scoped.
type Strategy int

const (
	// Predicate injects alias-anchored predicates into WHERE, and falls back
	// to SubSelect for cores that contain outer joins.
	Predicate Strategy = iota
	// SubSelect replaces every table reference with a flag-filtered
	// derived table.
	SubSelect
)

type Options struct {
	Strategy Strategy
	Dialect  sqlscan.Dialect
}

// Rewrite scopes every statement of raw to flag. tables are the challenge
// tables the query may read; any other relation is refused.
func Rewrite(raw string, flag schema.Flag, tables []schema.Table, opts Options) (string, error) {
	if !flag.Valid() {
		return "", schema.ErrInvalidFlag
	}
	stmts, err := sqlscan.Split(raw, opts.Dialect)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	if len(stmts) == 0 {
		return "", ErrEmptyQuery
	}

	index := make(map[string]schema.Table, 2*len(tables))
	for _, t := range tables {
		index[strings.ToLower(t.Name)] = t
		index[strings.ToLower(t.Physical)] = t
	}

	out := make([]string, len(stmts))
	for i, stmt := range stmts {
		r := &rewriter{
			stmt:   i,
			toks:   stmt.Tokens,
			end:    len(stmt.Text),
			flag:   strconv.Itoa(int(flag)),
			tables: index,
			opts:   opts,
		}
		text, err := r.scrub(stmt.Text)
		if err != nil {
			return "", err
		}
		if err := r.dynamicSQL(); err != nil {
			return "", err
		}
		if err := r.statement(); err != nil {
			return "", err
		}
		out[i] = sqlscan.Apply(text, r.edits)
	}
	return strings.Join(out, ";\n"), nil
}

// scrub blanks the comments between the significant tokens of text, so
// that only what the rewriter has seen reaches the engine. Offsets are
// kept. MySQL executes /*! ... */ comments, which are refused instead.
func (r *rewriter) scrub(text string) (string, error) {
	b := []byte(text)
	for i := 1; i < len(r.toks); i++ {
		gap := text[r.toks[i-1].End:r.toks[i].Pos]
		if strings.TrimSpace(gap) == "" {
			continue
		}
		trivia, err := sqlscan.Lex(gap, r.opts.Dialect)
		if err != nil {
			return "", r.failAt(ErrSyntax, r.toks[i-1].End, "%v", err)
		}
		for _, t := range trivia {
			if t.Kind != sqlscan.Comment {
				continue
			}
			if executable(t.Text, r.opts.Dialect) {
				return "", r.failAt(ErrExecutableComment, r.toks[i-1].End+t.Pos, "%.20s", t.Text)
			}
			for j := t.Pos; j < t.End; j++ {
				if c := gap[j]; c != '\n' && c != '\t' {
					b[r.toks[i-1].End+j] = ' '
				}
			}
		}
	}
	return string(b), nil
}

// executable reports whether the engine runs the body of a comment.
func executable(comment string, d sqlscan.Dialect) bool {
	switch d {
	case sqlscan.MySQL, sqlscan.Generic:
		return strings.HasPrefix(comment, "/*!") || strings.HasPrefix(comment, "/*M!")
	}
	return false
}

// ref is a challenge table read by a core. first and last delimit its
// (possibly qualified) name.
type ref struct {
	table    schema.Table
	first    int
	last     int
	alias    sqlscan.Token
	hasAlias bool

	// hints spans MySQL index hints, which a derived table cannot carry.
	hints sqlscan.Edit
}

// core is one SELECT ... FROM ... WHERE ... unit.
type core struct {
	refs  []ref
	outer bool

	// exposed names are projected with all their columns; "" is a bare *.
	exposed map[string]bool

	hasWhere   bool
	whereStart int
	whereEnd   int
	insertAt   int
}

// ctes holds the CTE names visible to a query.
type ctes struct {
	parent *ctes
	names  map[string]bool
}

func (c *ctes) hides(name string) bool {
	for s := c; s != nil; s = s.parent {
		if s.names[name] {
			return true
		}
	}
	return false
}

const eof sqlscan.Kind = -1

type rewriter struct {
	stmt   int
	toks   []sqlscan.Token
	pos    int
	end    int
	flag   string
	tables map[string]schema.Table
	opts   Options
	edits  []sqlscan.Edit
}

func (r *rewriter) at(i int) sqlscan.Token {
	if i < 0 || i >= len(r.toks) {
		return sqlscan.Token{Kind: eof, Pos: r.end, End: r.end}
	}
	return r.toks[i]
}

func (r *rewriter) cur() sqlscan.Token { return r.at(r.pos) }

func (r *rewriter) done() bool { return r.pos >= len(r.toks) }

func (r *rewriter) prevEnd() int { return r.at(r.pos - 1).End }

func (r *rewriter) fail(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Statement: r.stmt, Pos: r.cur().Pos, Detail: fmt.Sprintf(format, args...)}
}

func (r *rewriter) failAt(kind error, pos int, format string, args ...interface{}) error {
	return &Error{Kind: kind, Statement: r.stmt, Pos: pos, Detail: fmt.Sprintf(format, args...)}
}

func (r *rewriter) expect(p string) error {
	if !r.cur().IsPunct(p) {
		if r.done() {
			return r.fail(ErrUnbalanced, "expected %q before end of statement", p)
		}
		return r.fail(ErrSyntax, "expected %q, found %q", p, r.cur().Text)
	}
	r.pos++
	return nil
}

func (r *rewriter) statement() error {
	if !r.cur().Is("SELECT", "WITH", "VALUES") && !r.cur().IsPunct("(") {
		return r.fail(ErrUnsupportedStatement, "found %q", r.cur().Text)
	}
	if err := r.query(nil); err != nil {
		return err
	}
	if !r.done() {
		if r.cur().IsPunct(")") {
			return r.fail(ErrUnbalanced, "unexpected %q", ")")
		}
		return r.fail(ErrSyntax, "unexpected %q", r.cur().Text)
	}
	return nil
}

// query parses [WITH ...] select-set.
func (r *rewriter) query(scope *ctes) error {
	if r.cur().Is("WITH") {
		var err error
		if scope, err = r.with(scope); err != nil {
			return err
		}
	}
	return r.selectSet(scope)
}

func (r *rewriter) with(outer *ctes) (*ctes, error) {
	r.pos++
	recursive := false
	if r.cur().Is("RECURSIVE") {
		recursive = true
		r.pos++
	}
	scope := &ctes{parent: outer, names: map[string]bool{}}
	for {
		name := r.cur()
		if !name.IsIdent() {
			return nil, r.fail(ErrSyntax, "expected a CTE name")
		}
		r.pos++
		if r.cur().IsPunct("(") {
			if err := r.group(scope); err != nil {
				return nil, err
			}
		}
		if !r.cur().Is("AS") {
			return nil, r.fail(ErrSyntax, "expected AS after CTE %q", name.Text)
		}
		r.pos++
		if r.cur().Is("NOT") {
			r.pos++
		}
		if r.cur().Is("MATERIALIZED") {
			r.pos++
		}
		key := strings.ToLower(name.Ident())
		if recursive {
			scope.names[key] = true
		}
		if err := r.expect("("); err != nil {
			return nil, err
		}
		if err := r.query(scope); err != nil {
			return nil, err
		}
		if err := r.expect(")"); err != nil {
			return nil, err
		}
		scope.names[key] = true
		if !r.cur().IsPunct(",") {
			return scope, nil
		}
		r.pos++
	}
}

func (r *rewriter) selectSet(scope *ctes) error {
	for {
		if err := r.selectCore(scope); err != nil {
			return err
		}
		if !r.cur().Is("UNION", "INTERSECT", "EXCEPT", "MINUS") {
			break
		}
		r.pos++
		if r.cur().Is("ALL", "DISTINCT") {
			r.pos++
		}
	}
	// ORDER BY, LIMIT, OFFSET, FETCH and locking clauses of the whole set.
	return r.until(scope, func(sqlscan.Token) bool { return false })
}

func (r *rewriter) selectCore(scope *ctes) error {
	switch t := r.cur(); {
	case t.IsPunct("("):
		r.pos++
		if err := r.query(scope); err != nil {
			return err
		}
		return r.expect(")")
	case t.Is("VALUES"):
		r.pos++
		return r.until(scope, isCoreEnd)
	case t.Is("SELECT"):
		r.pos++
	default:
		return r.fail(ErrUnsupportedStatement, "found %q", t.Text)
	}

	c := &core{}
	list := r.pos
	if err := r.until(scope, func(t sqlscan.Token) bool { return t.Is("FROM") || isCoreEnd(t) }); err != nil {
		return err
	}
	c.exposed = r.exposed(list, r.pos)
	if r.cur().Is("FROM") {
		r.pos++
		if err := r.fromList(scope, c); err != nil {
			return err
		}
	}
	c.insertAt = r.prevEnd()
	if r.cur().Is("WHERE") {
		r.pos++
		c.hasWhere = true
		c.whereStart = r.cur().Pos
		if err := r.until(scope, isWhereEnd); err != nil {
			return err
		}
		c.whereEnd = r.prevEnd()
	}
	if err := r.until(scope, isCoreEnd); err != nil {
		return err
	}
	r.restrict(c)
	return nil
}

// until consumes tokens of the current level up to stop, a closing
// parenthesis or the end of the statement. Groups are consumed whole.
func (r *rewriter) until(scope *ctes, stop func(sqlscan.Token) bool) error {
	for !r.done() {
		t := r.cur()
		switch {
		case t.IsPunct(")"), stop(t):
			return nil
		case t.IsPunct("("):
			if err := r.group(scope); err != nil {
				return err
			}
		case t.Is("INTO"):
			return r.fail(ErrUnsupportedStatement, "SELECT ... INTO is not allowed")
		case t.Is("SELECT"):
			return r.fail(ErrSyntax, "unexpected SELECT")
		default:
			r.pos++
		}
	}
	return nil
}

// exposed collects the names whose every column the select list
// toks[from:to] projects: qualifiers of alias.*, names used as whole-row
// values such as row_to_json(e), and "" for a bare * at depth 0. Any * that
// is not qualified counts as bare, products included.
func (r *rewriter) exposed(from, to int) map[string]bool {
	out := map[string]bool{}
	depth := 0
	for i := from; i < to; i++ {
		t := r.toks[i]
		switch {
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
		case t.IsPunct("*"):
			switch {
			case i >= from+2 && r.toks[i-1].IsPunct(".") && r.toks[i-2].IsIdent():
				out[strings.ToLower(r.toks[i-2].Ident())] = true
			case depth == 0:
				out[""] = true
			}
		case t.IsIdent() && !r.at(i-1).IsPunct(".") && !r.at(i+1).IsPunct("."):
			out[strings.ToLower(t.Ident())] = true
		}
	}
	return out
}

// group consumes a parenthesized group starting at the current token. A
// group opening with a query is scoped as a subquery; any other group,
// including window specifications after OVER, is passed through with only
// its nested subqueries scoped.
func (r *rewriter) group(scope *ctes) error {
	r.pos++
	if r.cur().Is("SELECT", "WITH", "VALUES") {
		if err := r.query(scope); err != nil {
			return err
		}
		return r.expect(")")
	}
	for {
		t := r.cur()
		switch {
		case r.done():
			return r.fail(ErrUnbalanced, "group is not closed")
		case t.IsPunct(")"):
			r.pos++
			return nil
		case t.IsPunct("("):
			if err := r.group(scope); err != nil {
				return err
			}
		case t.Is("SELECT"):
			return r.fail(ErrSyntax, "SELECT must open its own parentheses")
		default:
			r.pos++
		}
	}
}

func (r *rewriter) fromList(scope *ctes, c *core) error {
	for {
		if err := r.fromItem(scope, c); err != nil {
			return err
		}
		for {
			switch t := r.cur(); {
			case t.Is("ON"):
				r.pos++
				if err := r.until(scope, r.isJoinEnd); err != nil {
					return err
				}
				continue
			case t.Is("USING"):
				r.pos++
				if !r.cur().IsPunct("(") {
					return r.fail(ErrSyntax, "expected a column list after USING")
				}
				if err := r.group(scope); err != nil {
					return err
				}
				continue
			}
			break
		}
		switch t := r.cur(); {
		case t.IsPunct(","):
			r.pos++
		case r.isJoinStart(t):
			outer, err := r.join()
			if err != nil {
				return err
			}
			c.outer = c.outer || outer
		default:
			return nil
		}
	}
}

func (r *rewriter) isJoinStart(t sqlscan.Token) bool {
	if t.Is("LEFT", "RIGHT") && r.at(r.pos+1).IsPunct("(") {
		return false
	}
	return t.Is("JOIN", "INNER", "LEFT", "RIGHT", "FULL", "CROSS", "NATURAL", "STRAIGHT_JOIN")
}

func (r *rewriter) isJoinEnd(t sqlscan.Token) bool {
	return t.IsPunct(",") || r.isJoinStart(t) || isWhereEnd(t) || t.Is("WHERE")
}

// join consumes the join keywords and reports whether the join is outer.
func (r *rewriter) join() (bool, error) {
	outer := false
	for {
		t := r.cur()
		switch {
		case t.Is("JOIN", "STRAIGHT_JOIN"):
			r.pos++
			return outer, nil
		case t.Is("LEFT", "RIGHT", "FULL"):
			outer = true
			r.pos++
		case t.Is("INNER", "OUTER", "CROSS", "NATURAL"):
			r.pos++
		default:
			return false, r.fail(ErrSyntax, "expected JOIN, found %q", t.Text)
		}
	}
}

func (r *rewriter) fromItem(scope *ctes, c *core) error {
	if r.cur().Is("LATERAL") {
		r.pos++
	}
	if r.cur().IsPunct("(") {
		if r.at(r.pos + 1).Is("SELECT", "WITH", "VALUES") {
			if err := r.group(scope); err != nil {
				return err
			}
		} else {
			r.pos++
			if err := r.fromList(scope, c); err != nil {
				return err
			}
			if err := r.expect(")"); err != nil {
				return err
			}
		}
		_, _, err := r.alias(scope)
		return err
	}

	first := r.pos
	last, ok := sqlscan.QualifiedName(r.toks, first)
	if !ok {
		return r.fail(ErrSyntax, "expected a table, found %q", r.cur().Text)
	}
	r.pos = last + 1
	if r.cur().IsPunct("(") {
		// table-valued function
		if err := r.group(scope); err != nil {
			return err
		}
		_, _, err := r.alias(scope)
		return err
	}

	alias, hasAlias, err := r.alias(scope)
	if err != nil {
		return err
	}
	hintFrom := r.pos
	if err := r.indexHints(scope); err != nil {
		return err
	}
	var hints sqlscan.Edit
	if r.pos > hintFrom {
		hints = sqlscan.Edit{Pos: r.at(hintFrom - 1).End, End: r.prevEnd()}
	}

	key := strings.ToLower(r.toks[last].Ident())
	if last == first && scope.hides(key) {
		return nil
	}
	table, known := r.tables[key]
	if !known {
		if last == first && key == "dual" {
			return nil
		}
		at := r.toks[last]
		return &Error{Kind: ErrUnknownTable, Statement: r.stmt, Pos: at.Pos, Detail: at.Text}
	}
	c.refs = append(c.refs, ref{table: table, first: first, last: last, alias: alias, hasAlias: hasAlias, hints: hints})
	return nil
}

func (r *rewriter) alias(scope *ctes) (sqlscan.Token, bool, error) {
	t := r.cur()
	if t.Is("AS") {
		r.pos++
		t = r.cur()
		if !t.IsIdent() {
			return sqlscan.Token{}, false, r.fail(ErrSyntax, "expected an alias after AS")
		}
	} else if !(t.Kind == sqlscan.QuotedIdent || (t.Kind == sqlscan.Word && !sqlscan.IsReserved(t.Text))) {
		return sqlscan.Token{}, false, nil
	}
	r.pos++
	if r.cur().IsPunct("(") {
		if err := r.group(scope); err != nil {
			return sqlscan.Token{}, false, err
		}
	}
	return t, true, nil
}

// indexHints consumes MySQL USE/FORCE/IGNORE INDEX (...) hints, which must
// stay in front of WHERE.
func (r *rewriter) indexHints(scope *ctes) error {
	for r.cur().Is("USE", "FORCE", "IGNORE") && r.at(r.pos+1).Is("INDEX", "KEY") {
		r.pos += 2
		if r.cur().Is("FOR") {
			for !r.done() && !r.cur().IsPunct("(") {
				r.pos++
			}
		}
		if !r.cur().IsPunct("(") {
			return r.fail(ErrSyntax, "expected an index list")
		}
		if err := r.group(scope); err != nil {
			return err
		}
	}
	return nil
}

func isWhereEnd(t sqlscan.Token) bool {
	return isCoreEnd(t) || t.Is("GROUP", "HAVING", "WINDOW", "QUALIFY", "CONNECT", "START")
}

func isCoreEnd(t sqlscan.Token) bool {
	return t.Is("UNION", "INTERSECT", "EXCEPT", "MINUS", "ORDER", "LIMIT", "OFFSET", "FETCH", "FOR")
}

// restrict records the edits that scope every challenge table of c.
func (r *rewriter) restrict(c *core) {
	if len(c.refs) == 0 {
		return
	}
	if r.opts.Strategy == SubSelect || c.outer || c.exposed[""] {
		for _, ref := range c.refs {
			r.wrap(ref)
		}
		return
	}

	var preds []string
	for _, ref := range c.refs {
		if c.exposed[r.refName(ref)] {
			r.wrap(ref)
			continue
		}
		preds = append(preds, r.anchor(ref)+"."+schema.FlagColumn+" = "+r.flag)
	}
	if len(preds) == 0 {
		return
	}
	pred := strings.Join(preds, " AND ")
	if c.hasWhere {
		r.edits = append(r.edits,
			sqlscan.Insert(c.whereStart, "("),
			sqlscan.Insert(c.whereEnd, ") AND "+pred),
		)
		return
	}
	r.edits = append(r.edits, sqlscan.Insert(c.insertAt, " WHERE "+pred))
}

// anchor points the reference at the physical table and returns the name
// its columns are qualified with.
func (r *rewriter) anchor(ref ref) string {
	span := sqlscan.Edit{Pos: r.toks[ref.first].Pos, End: r.toks[ref.last].End, Text: ref.table.Physical}
	name, alias := r.aliasFor(ref, false)
	if alias {
		span.Text += r.aliasSep() + name
	}
	r.edits = append(r.edits, span)
	return name
}

// wrap replaces the reference with a derived table holding only the rows
// of the flag.
func (r *rewriter) wrap(ref ref) {
	cols := "*"
	if len(ref.table.Columns) > 0 {
		cols = strings.Join(ref.table.Columns, ", ")
	}
	text := fmt.Sprintf("(SELECT %s FROM %s WHERE %s = %s)", cols, ref.table.Physical, schema.FlagColumn, r.flag)
	if name, alias := r.aliasFor(ref, true); alias {
		text += r.aliasSep() + name
	}
	r.edits = append(r.edits, sqlscan.Edit{Pos: r.toks[ref.first].Pos, End: r.toks[ref.last].End, Text: text})
	if ref.hints.End > ref.hints.Pos {
		r.edits = append(r.edits, ref.hints)
	}
}

// refName is the lower-cased name columns of ref are qualified with in the
// learner's query.
func (r *rewriter) refName(ref ref) string {
	if ref.hasAlias {
		return strings.ToLower(ref.alias.Ident())
	}
	return strings.ToLower(r.toks[ref.last].Ident())
}

// aliasFor returns the anchor name of ref and whether an alias has to be
// added after the replacement. Derived tables always need one.
func (r *rewriter) aliasFor(ref ref, derived bool) (string, bool) {
	if ref.hasAlias {
		return ref.alias.Text, false
	}
	written := r.toks[ref.last]
	if !derived && strings.EqualFold(written.Ident(), ref.table.Physical) {
		return ref.table.Physical, false
	}
	return written.Text, true
}

// aliasSep separates a table from its alias. Oracle rejects AS there.
func (r *rewriter) aliasSep() string {
	if r.opts.Dialect == sqlscan.Oracle {
		return " "
	}
	return " AS "
}
