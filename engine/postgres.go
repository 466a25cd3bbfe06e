package engine

import (
	"fmt"
	"net"
	"net/url"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/elmanelman/sql-judge/sqlscan"
)

const defaultPostgresPort = "5432"

type postgresDriver struct{}

func (postgresDriver) DriverName() string { return "pgx" }

func (postgresDriver) Dialect() sqlscan.Dialect { return sqlscan.Postgres }

func (postgresDriver) DSN(p Params) (string, error) {
	if p.Host == "" || p.User == "" || p.Database == "" {
		return "", fmt.Errorf("%w: postgresql needs host, user and database", ErrInvalidParams)
	}
	port := p.Port
	if port == "" {
		port = defaultPostgresPort
	}

	q := url.Values{}
	for k, v := range p.Options {
		q.Set(k, v)
	}
	if p.Schema != "" {
		q.Set("search_path", p.Schema)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     net.JoinHostPort(p.Host, port),
		Path:     "/" + p.Database,
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

// LastInsertID is false: pgx reports ids only through RETURNING.
func (postgresDriver) LastInsertID() bool { return false }

func (postgresDriver) DropTable(physical string) string {
	return "DROP TABLE IF EXISTS " + physical
}

func (postgresDriver) Normalize(v interface{}, databaseType string) interface{} {
	if b, ok := v.([16]byte); ok {
		return uuid.UUID(b).String()
	}
	return normalize(v, databaseType)
}

func (postgresDriver) Namespace(base Params, name string) (Params, []string, error) {
	p := base
	p.Schema = name
	return p, []string{"CREATE SCHEMA IF NOT EXISTS " + sqlscan.QuoteIdent(name, sqlscan.Postgres)}, nil
}
