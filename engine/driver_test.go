package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elmanelman/sql-judge/sqlscan"
)

func TestParse(t *testing.T) {
	for in, want := range map[string]Engine{
		"sqlite":     SQLite,
		"MySQL":      MySQL,
		"postgres":   Postgres,
		"postgresql": Postgres,
		" oracle ":   Oracle,
	} {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := Parse("mssql")
	assert.ErrorIs(t, err, ErrUnknownEngine)
}

func TestDialects(t *testing.T) {
	assert.Equal(t, sqlscan.SQLite, SQLite.Dialect())
	assert.Equal(t, sqlscan.MySQL, MySQL.Dialect())
	assert.Equal(t, sqlscan.Postgres, Postgres.Dialect())
	assert.Equal(t, sqlscan.Oracle, Oracle.Dialect())
	assert.Equal(t, sqlscan.Generic, Engine("x").Dialect())
}

func TestDSN(t *testing.T) {
	server := Params{Host: "db", User: "judge", Password: "secret", Database: "practice"}

	dsn, err := mysqlDriver{}.DSN(server)
	require.NoError(t, err)
	assert.Equal(t, "judge:secret@tcp(db:3306)/practice", dsn)

	withSchema := server
	withSchema.Port = "6432"
	withSchema.Schema = "c1_u2"
	dsn, err = postgresDriver{}.DSN(withSchema)
	require.NoError(t, err)
	assert.Equal(t, "postgres://judge:secret@db:6432/practice?search_path=c1_u2", dsn)

	dsn, err = oracleDriver{}.DSN(server)
	require.NoError(t, err)
	assert.Equal(t, "judge/secret@db:1521/practice", dsn)

	dsn, err = sqliteDriver{}.DSN(Params{Database: "/var/lib/judge/main.db"})
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/judge/main.db?_pragma=busy_timeout(5000)", dsn)

	for _, d := range []Driver{sqliteDriver{}, mysqlDriver{}, postgresDriver{}, oracleDriver{}} {
		_, err := d.DSN(Params{})
		assert.ErrorIs(t, err, ErrInvalidParams, d.DriverName())
	}
}

func TestNamespace(t *testing.T) {
	base := Params{Host: "db", User: "judge", Database: "practice"}

	p, stmts, err := mysqlDriver{}.Namespace(base, "c1_u2")
	require.NoError(t, err)
	assert.Equal(t, "c1_u2", p.Database)
	assert.Equal(t, []string{"CREATE DATABASE IF NOT EXISTS c1_u2"}, stmts)

	p, stmts, err = postgresDriver{}.Namespace(base, "c1_u2")
	require.NoError(t, err)
	assert.Equal(t, "practice", p.Database)
	assert.Equal(t, "c1_u2", p.Schema)
	assert.Equal(t, []string{"CREATE SCHEMA IF NOT EXISTS c1_u2"}, stmts)

	p, stmts, err = sqliteDriver{}.Namespace(Params{Database: "/data/main.db"}, "c1_u2")
	require.NoError(t, err)
	assert.Equal(t, "/data/c1_u2.db", p.Database)
	assert.Empty(t, stmts)

	_, _, err = oracleDriver{}.Namespace(base, "c1_u2")
	assert.ErrorIs(t, err, ErrNoNamespaces)
}

func TestDropTable(t *testing.T) {
	assert.Equal(t, "DROP TABLE IF EXISTS c1_t", sqliteDriver{}.DropTable("c1_t"))
	assert.Contains(t, oracleDriver{}.DropTable("c1_t"), "'DROP TABLE c1_t PURGE'")
	assert.Contains(t, oracleDriver{}.DropTable("c1_t"), "-942")
}
