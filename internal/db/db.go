// Package db owns the SQLite report archive and its embedded schema migrations.
package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/emilianohg/umbrella/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotOpen is returned by schema operations before Open.
var ErrNotOpen = errors.New("archive is not open")

var archive *sql.DB

// MigrationStatus describes the archive schema relative to the embedded migrations.
type MigrationStatus struct {
	CurrentVersion uint
	LatestVersion  uint
	Dirty          bool
	Pending        bool
}

func (s MigrationStatus) String() string {
	switch {
	case s.Dirty:
		return fmt.Sprintf("schema v%d is dirty (a migration failed part way)", s.CurrentVersion)
	case s.Pending:
		return fmt.Sprintf("schema v%d, v%d available", s.CurrentVersion, s.LatestVersion)
	}
	return fmt.Sprintf("schema v%d, up to date", s.CurrentVersion)
}

// Open opens the archive at the configured database path without migrating.
func Open() (*sql.DB, error) {
	if archive != nil {
		return archive, nil
	}
	if err := config.EnsureDirectories(); err != nil {
		return nil, err
	}
	path, err := config.DatabasePath()
	if err != nil {
		return nil, err
	}
	return OpenPath(path)
}

// OpenPath opens the archive at path, creating its directory.
func OpenPath(path string) (*sql.DB, error) {
	if archive != nil {
		return archive, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	archive = conn
	return archive, nil
}

// OpenAndMigrate opens the configured archive and brings its schema up to date.
func OpenAndMigrate() (*sql.DB, error) {
	conn, err := Open()
	if err != nil {
		return nil, err
	}
	if err := Migrate(); err != nil {
		return nil, err
	}
	return conn, nil
}

func Close() error {
	if archive == nil {
		return nil
	}
	err := archive.Close()
	archive = nil
	return err
}

// Status reports the applied schema version and whether migrations are pending.
func Status() (MigrationStatus, error) {
	m, src, err := newMigrator()
	if err != nil {
		return MigrationStatus{}, err
	}

	current, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, err
	}
	latest, err := latestVersion(src)
	if err != nil {
		return MigrationStatus{}, err
	}

	return MigrationStatus{
		CurrentVersion: current,
		LatestVersion:  latest,
		Dirty:          dirty,
		Pending:        current < latest,
	}, nil
}

// Migrate applies every pending migration. An up to date schema is not an error.
func Migrate() error {
	m, _, err := newMigrator()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate archive: %w", err)
	}
	return nil
}

func newMigrator() (*migrate.Migrate, source.Driver, error) {
	if archive == nil {
		return nil, nil, ErrNotOpen
	}
	driver, err := sqlite3.WithInstance(archive, &sqlite3.Config{})
	if err != nil {
		return nil, nil, err
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, nil, err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return nil, nil, err
	}
	return m, src, nil
}

// latestVersion walks the migration source to its last version.
func latestVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		if err != nil {
			return 0, err
		}
		v = next
	}
}
