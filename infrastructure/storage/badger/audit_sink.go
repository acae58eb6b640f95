package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/felixgeelhaar/decision-ledger/domain/audit"
)

// AuditSink is a BadgerDB-backed implementation of audit.Sink and audit.Reader.
// Entries are keyed by a monotonically increasing sequence and never rewritten.
type AuditSink struct {
	db        *badger.DB
	keyPrefix string
	mu        sync.Mutex
	closed    bool
	gcStop    chan struct{}
	gcWg      sync.WaitGroup
}

// NewAuditSink opens a BadgerDB audit log with the given configuration.
func NewAuditSink(cfg Config, opts ...Option) (*AuditSink, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &AuditSink{
		db:        db,
		keyPrefix: cfg.KeyPrefix,
		gcStop:    make(chan struct{}),
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.startGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}

	return s, nil
}

// startGC starts the value log garbage collection goroutine.
func (s *AuditSink) startGC(interval time.Duration, discardRatio float64) {
	s.gcWg.Add(1)
	go func() {
		defer s.gcWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.gcStop:
				return
			case <-ticker.C:
				for s.db.RunValueLogGC(discardRatio) == nil {
				}
			}
		}
	}()
}

// Key format: prefix:audit:sequence (8 bytes, big-endian)
func (s *AuditSink) entryKey(seq uint64) []byte {
	seqBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(seqBytes, seq)
	return append([]byte(s.keyPrefix+"audit:"), seqBytes...)
}

func (s *AuditSink) seqKey() []byte {
	return []byte(s.keyPrefix + "audit_seq")
}

// Append assigns the next sequence number and persists the entry.
func (s *AuditSink) Append(ctx context.Context, entry audit.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Serialize sequence assignment; badger transactions alone would
	// surface conflicts to concurrent appenders.
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return audit.ErrSinkClosed
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	return s.db.Update(func(txn *badger.Txn) error {
		var seq uint64
		item, err := txn.Get(s.seqKey())
		if err == nil {
			err = item.Value(func(val []byte) error {
				if len(val) == 8 {
					seq = binary.BigEndian.Uint64(val)
				}
				return nil
			})
			if err != nil {
				return err
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		seq++
		entry.Seq = seq

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := txn.Set(s.entryKey(seq), data); err != nil {
			return err
		}

		seqBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(seqBytes, seq)
		return txn.Set(s.seqKey(), seqBytes)
	})
}

// Query returns entries matching the filter in sequence order.
func (s *AuditSink) Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(s.keyPrefix + "audit:")
	var entries []audit.Entry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var e audit.Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return err
			}
			if !filter.Matches(e) {
				continue
			}
			entries = append(entries, e)
			if filter.Limit > 0 && len(entries) >= filter.Limit {
				break
			}
		}
		return nil
	})

	return entries, err
}

// Count returns the number of stored entries.
func (s *AuditSink) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	prefix := []byte(s.keyPrefix + "audit:")
	var count int64

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}

// Close stops garbage collection and closes the database.
func (s *AuditSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.gcStop)
	s.gcWg.Wait()
	return s.db.Close()
}

var (
	_ audit.Sink   = (*AuditSink)(nil)
	_ audit.Reader = (*AuditSink)(nil)
)
