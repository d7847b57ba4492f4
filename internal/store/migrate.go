package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/talentpipe/inboxsync/internal/store/migrations"
)

// ErrDirtySchema means an earlier migration stopped halfway. The journal is
// left alone; delete journal.db to start over.
var ErrDirtySchema = errors.New("journal schema is dirty")

// MigrateResult reports the schema version after Migrate.
type MigrateResult struct {
	Version uint
	Dirty   bool
	Changed bool
}

func (db *DB) migrator() (*migrate.Migrate, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("journal migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("journal migration driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", source, "sqlite3", driver)
}

// Migrate brings the journal schema up to date. It refuses to touch a dirty
// schema.
func (db *DB) Migrate() (*MigrateResult, error) {
	m, err := db.migrator()
	if err != nil {
		return nil, err
	}

	before, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, fmt.Errorf("journal schema version: %w", err)
	}
	if dirty {
		return &MigrateResult{Version: before, Dirty: true}, fmt.Errorf("%w at version %d", ErrDirtySchema, before)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("migrate journal from version %d: %w", before, err)
	}

	after, dirty, err := m.Version()
	if err != nil {
		return nil, fmt.Errorf("journal schema version: %w", err)
	}
	return &MigrateResult{Version: after, Dirty: dirty, Changed: after != before}, nil
}
