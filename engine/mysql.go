package engine

import (
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/elmanelman/sql-judge/sqlscan"
)

const defaultMySQLPort = "3306"

type mysqlDriver struct{}

func (mysqlDriver) DriverName() string { return "mysql" }

func (mysqlDriver) Dialect() sqlscan.Dialect { return sqlscan.MySQL }

func (mysqlDriver) DSN(p Params) (string, error) {
	if p.Host == "" || p.User == "" {
		return "", fmt.Errorf("%w: mysql needs host and user", ErrInvalidParams)
	}
	port := p.Port
	if port == "" {
		port = defaultMySQLPort
	}

	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(p.Host, port)
	cfg.DBName = p.Database
	// DATETIME values stay text so every engine reports them the same way.
	cfg.ParseTime = false
	if len(p.Options) > 0 {
		cfg.Params = make(map[string]string, len(p.Options))
		for k, v := range p.Options {
			cfg.Params[k] = v
		}
	}
	return cfg.FormatDSN(), nil
}

func (mysqlDriver) LastInsertID() bool { return true }

func (mysqlDriver) DropTable(physical string) string {
	return "DROP TABLE IF EXISTS " + physical
}

// Normalize handles the text protocol, which returns most values as bytes.
func (mysqlDriver) Normalize(v interface{}, databaseType string) interface{} {
	if f, ok := v.(float32); ok {
		v, _ = strconv.ParseFloat(strconv.FormatFloat(float64(f), 'g', -1, 32), 64)
	}
	return normalize(v, databaseType)
}

func (mysqlDriver) Namespace(base Params, name string) (Params, []string, error) {
	p := base
	p.Database = name
	return p, []string{"CREATE DATABASE IF NOT EXISTS " + sqlscan.QuoteIdent(name, sqlscan.MySQL)}, nil
}
