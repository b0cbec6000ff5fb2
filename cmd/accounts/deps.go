package main

import (
	"context"

	"github.com/samber/oops"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-accounts/config"
	"github.com/goliatone/go-accounts/logging"
	"github.com/goliatone/go-accounts/persistence"
)

// deps holds what every subcommand needs: the loaded configuration, the
// logger and an open database.
type deps struct {
	cfg    *config.Config
	logger *logging.Logger
	db     *bun.DB
}

func loadDeps(ctx context.Context, configFile string) (*deps, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
	})
	if err != nil {
		return nil, err
	}

	dbCfg := persistence.Config{
		Dialect: cfg.Database.Dialect,
		DSN:     cfg.Database.DSN,
	}
	if cfg.Database.Debug {
		dbCfg.QueryLogger = logger.Named("db")
	}

	db, err := persistence.Open(ctx, dbCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}

	return &deps{cfg: cfg, logger: logger, db: db}, nil
}

func (d *deps) Close() error {
	return d.db.Close()
}
