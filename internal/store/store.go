// Package store provides the durable lead and processed-URL repositories.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // sqlite driver (serverless default)
)

func init() {
	// sqlx only knows the mattn "sqlite3" driver name out of the box.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

const (
	// DefaultPingTimeout is the timeout for the startup connectivity check.
	DefaultPingTimeout = 5 * time.Second

	// postgres pool settings, matching a small single-service deployment.
	pgMaxOpenConns    = 10
	pgMaxIdleConns    = 2
	pgConnMaxLifetime = 5 * time.Minute

	// sqliteFileName is the database file created under the data directory.
	sqliteFileName = "goleads.db"

	dataDirPerm = 0o750
)

// Config selects and locates the durable store.
type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	// DataDir holds the sqlite database file.
	DataDir string
	// DSN is the postgres connection string.
	DSN string
}

// Open connects to the configured database and runs migrations.
func Open(cfg Config) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg.DataDir)
	case "postgres":
		db, err = openPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	if migrateErr := Migrate(db); migrateErr != nil {
		db.Close()
		return nil, migrateErr
	}

	return db, nil
}

// openSQLite opens (creating if needed) the sqlite database under dataDir.
// Writes are serialized through a single connection; together with the
// ON CONFLICT claim in the processed-URL repository this is what makes
// CheckAndMark atomic under concurrent callers.
func openSQLite(dataDir string) (*sqlx.DB, error) {
	if err := os.MkdirAll(dataDir, dataDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		filepath.Join(dataDir, sqliteFileName),
	)

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)

	return db, nil
}

// openPostgres connects to a PostgreSQL database.
func openPostgres(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(pgMaxOpenConns)
	db.SetMaxIdleConns(pgMaxIdleConns)
	db.SetConnMaxLifetime(pgConnMaxLifetime)

	return db, nil
}

// Migrate creates the schema if it does not exist. Both tables are
// append-only; nothing ever updates or deletes a processed URL, and leads
// only ever flip their notified flag.
func Migrate(db *sqlx.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS leads (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			text TEXT NOT NULL,
			source_url TEXT NOT NULL UNIQUE,
			phones TEXT NOT NULL DEFAULT '',
			emails TEXT NOT NULL DEFAULT '',
			notified BOOLEAN NOT NULL DEFAULT FALSE,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS processed_urls (
			url TEXT PRIMARY KEY,
			processed_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads (created_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}
