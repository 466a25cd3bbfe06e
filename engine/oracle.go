package engine

import (
	"fmt"

	"github.com/godror/godror"

	"github.com/elmanelman/sql-judge/sqlscan"
)

const defaultOraclePort = "1521"

type oracleDriver struct{}

func (oracleDriver) DriverName() string { return "godror" }

func (oracleDriver) Dialect() sqlscan.Dialect { return sqlscan.Oracle }

func (oracleDriver) DSN(p Params) (string, error) {
	if p.Host == "" || p.User == "" || p.Database == "" {
		return "", fmt.Errorf("%w: oracle needs host, user and service", ErrInvalidParams)
	}
	port := p.Port
	if port == "" {
		port = defaultOraclePort
	}
	return fmt.Sprintf("%s/%s@%s:%s/%s", p.User, p.Password, p.Host, port, p.Database), nil
}

func (oracleDriver) LastInsertID() bool { return false }

// DropTable ignores ORA-00942, Oracle has no DROP TABLE IF EXISTS.
func (oracleDriver) DropTable(physical string) string {
	return "BEGIN EXECUTE IMMEDIATE 'DROP TABLE " + physical + " PURGE'; " +
		"EXCEPTION WHEN OTHERS THEN IF SQLCODE != -942 THEN RAISE; END IF; END;"
}

func (oracleDriver) Normalize(v interface{}, databaseType string) interface{} {
	if n, ok := v.(godror.Number); ok {
		return normalize(string(n), "NUMBER")
	}
	return normalize(v, databaseType)
}

// Namespace is not supported: an Oracle schema is a user, which the judge
// does not create.
func (oracleDriver) Namespace(Params, string) (Params, []string, error) {
	return Params{}, nil, ErrNoNamespaces
}
