package engine

import (
	"github.com/elmanelman/sql-judge/sqlscan"
)

// Driver adapts one engine. Engine-specific value types never leave it:
// Normalize turns them into string, int64, float64, bool, json.Number or nil.
type Driver interface {
	// DriverName is the database/sql driver name.
	DriverName() string
	Dialect() sqlscan.Dialect
	DSN(p Params) (string, error)
	// LastInsertID reports whether sql.Result.LastInsertId is meaningful.
	LastInsertID() bool
	DropTable(physical string) string
	Normalize(v interface{}, databaseType string) interface{}
	// Namespace derives the params of a dedicated namespace and returns the
	// statements that create it, to be run with the base params.
	Namespace(base Params, name string) (Params, []string, error)
}

var drivers = map[Engine]Driver{
	SQLite:   sqliteDriver{},
	MySQL:    mysqlDriver{},
	Postgres: postgresDriver{},
	Oracle:   oracleDriver{},
}

// DriverFor returns the driver of e.
func DriverFor(e Engine) (Driver, error) {
	d, ok := drivers[e]
	if !ok {
		return nil, ErrUnknownEngine
	}
	return d, nil
}

// Engines lists the supported engines.
func Engines() []Engine {
	return []Engine{SQLite, MySQL, Postgres, Oracle}
}
