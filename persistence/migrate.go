package persistence

import (
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/goliatone/go-accounts"
)

// Migrator applies the embedded account migrations for the dialect of db.
// The database handle stays owned by the caller.
type Migrator struct {
	m      *migrate.Migrate
	source source.Driver
}

// NewMigrator prepares the migrations matching db's dialect.
func NewMigrator(db *bun.DB) (*Migrator, error) {
	var (
		dir      string
		driver   database.Driver
		err      error
		instance = db.DB
	)

	switch db.Dialect().Name() {
	case dialect.SQLite:
		dir = "sqlite"
		driver, err = migratesqlite.WithInstance(instance, &migratesqlite.Config{})
	case dialect.PG:
		dir = "postgres"
		driver, err = migratepgx.WithInstance(instance, &migratepgx.Config{})
	default:
		return nil, oops.
			In("persistence").
			Code("UNKNOWN_DIALECT").
			With("dialect", db.Dialect().Name().String()).
			Errorf("no migrations for dialect")
	}
	if err != nil {
		return nil, oops.In("persistence").Code("MIGRATION_INIT_FAILED").Wrap(err)
	}

	src, err := iofs.New(accounts.GetMigrationsFS(), dir)
	if err != nil {
		return nil, oops.In("persistence").Code("MIGRATION_SOURCE_FAILED").Wrap(err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dir, driver)
	if err != nil {
		_ = src.Close()
		return nil, oops.In("persistence").Code("MIGRATION_INIT_FAILED").Wrap(err)
	}

	return &Migrator{m: m, source: src}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.In("persistence").Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// Down rolls back every migration. It drops all account tables.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.In("persistence").Code("MIGRATION_DOWN_FAILED").Wrap(err)
	}
	return nil
}

// Version returns the applied version, 0 before the first migration.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, oops.In("persistence").Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Close releases the migration source. It does not close the database.
func (m *Migrator) Close() error {
	return m.source.Close()
}

// Migrate applies all pending migrations to db.
func Migrate(db *bun.DB) error {
	m, err := NewMigrator(db)
	if err != nil {
		return err
	}
	defer m.Close()

	return m.Up()
}
