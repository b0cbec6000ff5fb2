// Package persistence opens the bun database the accounts repositories run
// on and applies the embedded schema migrations.
package persistence

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/samber/oops"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Logger is satisfied by accounts.Logger.
type Logger interface {
	Debug(format string, args ...any)
}

// Config selects the database.
type Config struct {
	Dialect      string
	DSN          string
	MaxOpenConns int
	// QueryLogger logs every statement at debug level when set.
	QueryLogger Logger
}

// Open connects to the configured database and pings it.
func Open(ctx context.Context, cfg Config) (*bun.DB, error) {
	var db *bun.DB

	switch cfg.Dialect {
	case DialectSQLite, "":
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
		if err != nil {
			return nil, openError(err, cfg)
		}
		if isMemoryDSN(cfg.DSN) {
			// every connection to :memory: is a separate database
			sqldb.SetMaxOpenConns(1)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DialectPostgres:
		connConfig, err := pgx.ParseConfig(cfg.DSN)
		if err != nil {
			return nil, openError(err, cfg)
		}
		db = bun.NewDB(stdlib.OpenDB(*connConfig), pgdialect.New())
	default:
		return nil, oops.
			In("persistence").
			Code("UNKNOWN_DIALECT").
			With("dialect", cfg.Dialect).
			Errorf("unknown database dialect %q", cfg.Dialect)
	}

	if cfg.MaxOpenConns > 0 && !isMemoryDSN(cfg.DSN) {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if cfg.QueryLogger != nil {
		db.AddQueryHook(queryLogger{logger: cfg.QueryLogger})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, openError(err, cfg)
	}

	return db, nil
}

func openError(err error, cfg Config) error {
	return oops.
		In("persistence").
		Code("DATABASE_OPEN").
		With("dialect", cfg.Dialect).
		Wrapf(err, "failed to open database")
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

type queryLogger struct {
	logger Logger
}

var _ bun.QueryHook = queryLogger{}

func (h queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if event.Err != nil && event.Err != sql.ErrNoRows {
		h.logger.Debug("query failed after %s: %s: %v", time.Since(event.StartTime), event.Query, event.Err)
		return
	}
	h.logger.Debug("query took %s: %s", time.Since(event.StartTime), event.Query)
}
