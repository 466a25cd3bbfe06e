// Package engine executes SQL scripts on the supported database engines and
// normalizes whatever the drivers return into one result shape.
package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/elmanelman/sql-judge/sqlscan"
)

type Engine string

const (
	SQLite   Engine = "sqlite"
	MySQL    Engine = "mysql"
	Postgres Engine = "postgresql"
	Oracle   Engine = "oracle"
)

var (
	ErrUnknownEngine = errors.New("unknown engine")
	ErrInvalidParams = errors.New("invalid connection params")
	ErrConnection    = errors.New("engine connection failed")
	ErrNoNamespaces  = errors.New("engine does not support dedicated namespaces")
)

// Parse accepts an engine identifier in any case. "postgres" is an alias of
// "postgresql".
func Parse(s string) (Engine, error) {
	e := Engine(strings.ToLower(strings.TrimSpace(s)))
	if e == "postgres" {
		e = Postgres
	}
	if _, ok := drivers[e]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEngine, s)
	}
	return e, nil
}

func (e Engine) Dialect() sqlscan.Dialect {
	if d, ok := drivers[e]; ok {
		return d.Dialect()
	}
	return sqlscan.Generic
}

// Params holds what is needed to reach one engine. Database is the database
// name for server engines, the service name for Oracle and the file path for
// SQLite. Schema selects the Postgres search_path.
type Params struct {
	Host     string            `json:"host"`
	Port     string            `json:"port"`
	User     string            `json:"user"`
	Password string            `json:"password"`
	Database string            `json:"database"`
	Schema   string            `json:"schema,omitempty"`
	Options  map[string]string `json:"options,omitempty"`
}
