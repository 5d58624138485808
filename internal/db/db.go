package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// HDb is the shared, read-mostly database handle. The embedded pool is the
// only mutable state shared between requests.
type HDb struct {
	*sqlx.DB
	queryTimeout time.Duration
	validateSQL  bool
}

type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// QueryTimeout bounds a single ExecuteQuery call; zero means no bound
	// beyond the caller's context.
	QueryTimeout time.Duration
	ValidateSQL  bool
}

// NewHDb opens a pool for the given driver ("postgres" for lib/pq, "pgx" for
// pgx stdlib). The driver must be registered by the caller's imports.
func NewHDb(driverName, dataSourceUrl string, opts Options) (*HDb, error) {
	db, err := sqlx.Open(driverName, dataSourceUrl)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	return NewHDbFromSqlx(db, opts), nil
}

// NewHDbFromSqlx wraps an existing handle, mostly useful with sqlmock.
func NewHDbFromSqlx(db *sqlx.DB, opts Options) *HDb {
	return &HDb{DB: db, queryTimeout: opts.QueryTimeout, validateSQL: opts.ValidateSQL}
}

func (hdb *HDb) HealthCheck(ctx context.Context) error {
	if err := hdb.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}
