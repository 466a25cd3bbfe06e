package judge

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/elmanelman/sql-judge/engine"
)

// ConnectDB opens a pooled connection to the main database.
func ConnectDB(ctx context.Context, e engine.Engine, p engine.Params) (*sqlx.DB, error) {
	d, err := engine.DriverFor(e)
	if err != nil {
		return nil, err
	}
	dsn, err := d.DSN(p)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.ConnectContext(ctx, d.DriverName(), dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
