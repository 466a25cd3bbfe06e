package engine

import (
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/elmanelman/sql-judge/sqlscan"
)

const sqliteBusyTimeout = 5000

type sqliteDriver struct{}

func (sqliteDriver) DriverName() string { return "sqlite" }

func (sqliteDriver) Dialect() sqlscan.Dialect { return sqlscan.SQLite }

func (sqliteDriver) DSN(p Params) (string, error) {
	if p.Database == "" {
		return "", fmt.Errorf("%w: sqlite needs a database file", ErrInvalidParams)
	}
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)", p.Database, sqliteBusyTimeout), nil
}

func (sqliteDriver) LastInsertID() bool { return true }

func (sqliteDriver) DropTable(physical string) string {
	return "DROP TABLE IF EXISTS " + physical
}

func (sqliteDriver) Normalize(v interface{}, databaseType string) interface{} {
	return normalize(v, databaseType)
}

// Namespace places the namespace file next to the base database file.
func (sqliteDriver) Namespace(base Params, name string) (Params, []string, error) {
	if base.Database == "" {
		return Params{}, nil, fmt.Errorf("%w: sqlite needs a database file", ErrInvalidParams)
	}
	p := base
	p.Database = filepath.Join(filepath.Dir(base.Database), name+".db")
	return p, nil, nil
}
