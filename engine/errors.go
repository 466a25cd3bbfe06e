package engine

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/godror/godror"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
)

// StatementError reports the first statement of a script that failed. The
// statements after it were not run.
type StatementError struct {
	Index     int
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d: %v", e.Index, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// Code returns the engine's own error code, or "" when the driver exposes
// none.
func (e *StatementError) Code() string {
	var pgErr *pgconn.PgError
	if errors.As(e.Err, &pgErr) {
		return pgErr.Code
	}
	var myErr *mysql.MySQLError
	if errors.As(e.Err, &myErr) {
		return strconv.Itoa(int(myErr.Number))
	}
	var liteErr *sqlite.Error
	if errors.As(e.Err, &liteErr) {
		return strconv.Itoa(liteErr.Code())
	}
	if oraErr, ok := godror.AsOraErr(e.Err); ok {
		return fmt.Sprintf("ORA-%05d", oraErr.Code())
	}
	return ""
}
