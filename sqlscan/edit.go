package sqlscan

import (
	"sort"
	"strings"
)

// Edit replaces src[Pos:End] with Text. Pos == End is an insertion.
type Edit struct {
	Pos  int
	End  int
	Text string
}

// Insert returns an edit that inserts text at pos.
func Insert(pos int, text string) Edit {
	return Edit{Pos: pos, End: pos, Text: text}
}

// Replace returns an edit that replaces the token with text.
func Replace(t Token, text string) Edit {
	return Edit{Pos: t.Pos, End: t.End, Text: text}
}

// Apply applies non-overlapping edits to src. Insertions at the same offset
// keep the order in which they were given.
func Apply(src string, edits []Edit) string {
	if len(edits) == 0 {
		return src
	}
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Pos < sorted[j].Pos })

	var b strings.Builder
	b.Grow(len(src) + 64)
	at := 0
	for _, e := range sorted {
		if e.Pos < at {
			continue
		}
		b.WriteString(src[at:e.Pos])
		b.WriteString(e.Text)
		at = e.End
	}
	b.WriteString(src[at:])
	return b.String()
}

// QualifiedName reads ident(.ident)* starting at toks[i] and returns the
// index of its last token.
func QualifiedName(toks []Token, i int) (last int, ok bool) {
	if i >= len(toks) || !nameToken(toks[i]) {
		return 0, false
	}
	last = i
	for last+2 < len(toks) && toks[last+1].IsPunct(".") && nameToken(toks[last+2]) {
		last += 2
	}
	return last, true
}

func nameToken(t Token) bool {
	return t.Kind == QuotedIdent || (t.Kind == Word && !IsReserved(t.Text))
}
