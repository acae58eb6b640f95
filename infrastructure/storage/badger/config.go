// Package badger provides a BadgerDB-backed append-only audit log.
package badger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/decision-ledger/infrastructure/logging"
)

// Config configures the audit log.
type Config struct {
	// Dir holds the database files. Ignored when InMemory is set.
	Dir string

	// InMemory keeps the log in memory only.
	InMemory bool

	// SyncWrites fsyncs every append. Audit entries must be durable
	// before Append returns, so this is on by default.
	SyncWrites bool

	// ValueLogFileSize caps each value log file in bytes.
	ValueLogFileSize int64

	// GCDiscardRatio and GCInterval drive value log compaction.
	GCDiscardRatio float64
	GCInterval     time.Duration

	// KeyPrefix namespaces entry keys so one database can hold several logs.
	KeyPrefix string

	// Logger receives badger's internal messages. Nil silences them.
	Logger *bolt.Logger
}

// Option configures the audit log.
type Option func(*Config)

// WithDir sets the data directory.
func WithDir(dir string) Option {
	return func(c *Config) { c.Dir = dir }
}

// WithInMemory keeps the log in memory.
func WithInMemory() Option {
	return func(c *Config) { c.InMemory = true }
}

// WithGCInterval sets how often value log compaction runs. Zero disables it.
func WithGCInterval(d time.Duration) Option {
	return func(c *Config) { c.GCInterval = d }
}

// WithKeyPrefix sets the entry key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) { c.KeyPrefix = prefix }
}

// WithLogger forwards badger's messages to l.
func WithLogger(l *bolt.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns a durable configuration.
func DefaultConfig() Config {
	return Config{
		SyncWrites:       true,
		ValueLogFileSize: 64 << 20,
		GCDiscardRatio:   0.5,
		GCInterval:       10 * time.Minute,
		KeyPrefix:        "audit:",
	}
}

// ErrOpenFailed indicates the database could not be opened.
var ErrOpenFailed = errors.New("badger: open audit log failed")

func openDB(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, fmt.Errorf("%w: directory is required", ErrOpenFailed)
	}

	opts := badger.DefaultOptions(cfg.Dir).
		WithNumVersionsToKeep(1).
		WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	} else {
		opts = opts.WithSyncWrites(cfg.SyncWrites)
	}
	if cfg.ValueLogFileSize > 0 {
		opts = opts.WithValueLogFileSize(cfg.ValueLogFileSize)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(badgerLogger{cfg.Logger})
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Join(ErrOpenFailed, err)
	}
	return db, nil
}

// badgerLogger adapts bolt to badger.Logger.
type badgerLogger struct {
	l *bolt.Logger
}

func (b badgerLogger) emit(e *bolt.Event, format string, args ...any) {
	logging.NewEvent(e).
		Add(logging.Component("badger")).
		Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b badgerLogger) Errorf(format string, args ...any)   { b.emit(b.l.Error(), format, args...) }
func (b badgerLogger) Warningf(format string, args ...any) { b.emit(b.l.Warn(), format, args...) }
func (b badgerLogger) Infof(format string, args ...any)    { b.emit(b.l.Debug(), format, args...) }
func (b badgerLogger) Debugf(format string, args ...any)   { b.emit(b.l.Debug(), format, args...) }
