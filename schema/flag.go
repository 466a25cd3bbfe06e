// Package schema turns instructor-authored table definitions and datasets
// into physically unique, flag-tagged tables shared by every challenge.
package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
)

// Flag tags every materialized row with the dataset it belongs to.
type Flag int

const (
	Untagged Flag = 0
	Practice Flag = 1
	Grading  Flag = 2
)

// FlagColumn is the column appended to every physical table.
const FlagColumn = "flag_id"

// flagColumnDef keeps DEFAULT before NOT NULL so Oracle accepts it too.
const flagColumnDef = FlagColumn + " INTEGER DEFAULT 0 NOT NULL"

func (f Flag) Valid() bool {
	return f == Practice || f == Grading
}

func (f Flag) String() string {
	switch f {
	case Untagged:
		return "untagged"
	case Practice:
		return "practice"
	case Grading:
		return "grading"
	default:
		return fmt.Sprintf("flag(%d)", int(f))
	}
}

// ParseFlag accepts a flag by name or by number.
func ParseFlag(s string) (Flag, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, f := range []Flag{Practice, Grading} {
		if s == f.String() || s == strconv.Itoa(int(f)) {
			return f, nil
		}
	}
	return Untagged, fmt.Errorf("%w: %q", ErrInvalidFlag, s)
}

// Table is one challenge table as both the learner and the engine see it.
type Table struct {
	// Name is the instructor-facing name learners write in queries.
	Name string `json:"name"`
	// Physical is the name materialized in the shared engine.
	Physical string `json:"physical"`
	// Columns are the declared column names as written in the schema,
	// quotes included. The flag column is never listed.
	Columns []string `json:"columns"`
}

// maxPhysicalLen stays under the identifier limits of every engine
// (Postgres 63, MySQL 64, Oracle 128).
const maxPhysicalLen = 60

// PhysicalName derives the globally unique table name for a challenge table.
func PhysicalName(challengeID int64, name string) string {
	s := strings.ReplaceAll(slug.Make(name), "-", "_")
	if s == "" {
		s = "t"
	}
	p := fmt.Sprintf("c%d_%s", challengeID, s)
	if len(p) > maxPhysicalLen {
		p = p[:maxPhysicalLen]
	}
	return strings.TrimRight(p, "_")
}

// FallbackName is the logical name used when a schema statement does not
// yield a table name.
func FallbackName(ordinal int) string {
	return fmt.Sprintf("table_%d", ordinal)
}

// Warning is a non-fatal authoring problem surfaced when content is saved.
type Warning struct {
	Table   string `json:"table,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Table == "" {
		return w.Message
	}
	return w.Table + ": " + w.Message
}
