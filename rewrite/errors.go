package rewrite

import (
	"errors"
	"fmt"
)

// ErrIsolation is wrapped by every refusal. A query that cannot be scoped
// must never run unscoped.
var ErrIsolation = errors.New("query cannot be scoped to its dataset")

var (
	ErrEmptyQuery           = fmt.Errorf("%w: empty query", ErrIsolation)
	ErrUnsupportedStatement = fmt.Errorf("%w: only SELECT queries are allowed", ErrIsolation)
	ErrUnknownTable         = fmt.Errorf("%w: unknown table", ErrIsolation)
	ErrUnbalanced           = fmt.Errorf("%w: unbalanced parentheses", ErrIsolation)
	ErrSyntax               = fmt.Errorf("%w: unrecognized query shape", ErrIsolation)
	ErrExecutableComment    = fmt.Errorf("%w: executable comments are not allowed", ErrIsolation)
	ErrDynamicSQL           = fmt.Errorf("%w: functions that run SQL text are not allowed", ErrIsolation)
)

// Error locates a refusal in the statement being rewritten.
type Error struct {
	Kind      error
	Statement int
	Pos       int
	Detail    string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("statement %d, offset %d: %v", e.Statement, e.Pos, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Kind }
