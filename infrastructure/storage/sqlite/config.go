// Package sqlite provides SQLite-backed ledger stores and audit sink.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Config configures SQLite storage.
type Config struct {
	// DSN is the data source name (e.g., "file:ledger.db?mode=rwc").
	DSN string

	// MaxOpenConns caps open connections. One connection serialises writers,
	// which keeps conditional updates and multi-statement transactions free
	// of SQLITE_BUSY lock upgrades. Pooled connections are kept open because
	// pragmas are per connection.
	MaxOpenConns int

	// AutoMigrate creates the ledger tables on Open.
	AutoMigrate bool

	// JournalMode is the journal_mode pragma, WAL unless set.
	JournalMode string

	// BusyTimeout is how long a statement waits on a locked database.
	BusyTimeout time.Duration

	// TablePrefix is prepended to every table name.
	TablePrefix string
}

// Option configures SQLite storage.
type Option func(*Config)

// WithDSN sets the data source name.
func WithDSN(dsn string) Option {
	return func(c *Config) { c.DSN = dsn }
}

// WithTablePrefix sets the table name prefix.
func WithTablePrefix(prefix string) Option {
	return func(c *Config) { c.TablePrefix = prefix }
}

// DefaultConfig returns a single-writer configuration with WAL and full sync.
func DefaultConfig() Config {
	return Config{
		DSN:          "file:ledger.db?mode=rwc",
		MaxOpenConns: 1,
		AutoMigrate:  true,
		JournalMode:  "WAL",
		BusyTimeout:  5 * time.Second,
	}
}

// Errors
var (
	ErrConnectionFailed = errors.New("sqlite: connection failed")
	ErrMigrationFailed  = errors.New("sqlite: migration failed")
)

// Open opens a SQLite database and, when AutoMigrate is set, creates the
// ledger tables.
func Open(ctx context.Context, cfg Config, opts ...Option) (*sql.DB, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: dsn is required", ErrConnectionFailed)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db, cfg); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	if cfg.AutoMigrate {
		if err := Migrate(ctx, db, cfg.TablePrefix); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// applyPragmas sets durability options. Audit rows must survive a crash
// once Append returns, hence synchronous=FULL.
func applyPragmas(ctx context.Context, db *sql.DB, cfg Config) error {
	journal := cfg.JournalMode
	if journal == "" {
		journal = "WAL"
	}
	pragmas := []string{
		"PRAGMA journal_mode=" + journal,
		"PRAGMA synchronous=FULL",
		"PRAGMA foreign_keys=ON",
	}
	if cfg.BusyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout.Milliseconds()))
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Join(ErrMigrationFailed, fmt.Errorf("%s: %w", pragma, err))
		}
	}
	return nil
}
