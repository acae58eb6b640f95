// Package audit provides audit sinks and the recorder that applies the
// configured failure policy.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/felixgeelhaar/decision-ledger/domain/audit"
)

// MemorySink implements audit.Sink and audit.Reader in memory.
type MemorySink struct {
	mu      sync.RWMutex
	entries []audit.Entry
	seq     uint64
	maxLen  int
	closed  bool
}

// MemorySinkOption configures the memory sink.
type MemorySinkOption func(*MemorySink)

// WithMaxEntries sets the maximum number of entries to retain.
func WithMaxEntries(max int) MemorySinkOption {
	return func(s *MemorySink) {
		s.maxLen = max
	}
}

// NewMemorySink creates a new in-memory audit sink.
func NewMemorySink(opts ...MemorySinkOption) *MemorySink {
	s := &MemorySink{
		entries: make([]audit.Entry, 0),
		maxLen:  100000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append records an entry.
func (s *MemorySink) Append(ctx context.Context, entry audit.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return audit.ErrSinkClosed
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.seq++
	entry.Seq = s.seq

	s.entries = append(s.entries, entry)

	// Trim if exceeding max length
	if s.maxLen > 0 && len(s.entries) > s.maxLen {
		s.entries = s.entries[len(s.entries)-s.maxLen:]
	}

	return nil
}

// Query retrieves entries matching the filter.
func (s *MemorySink) Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []audit.Entry
	for _, e := range s.entries {
		if !filter.Matches(e) {
			continue
		}
		result = append(result, e)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

// Entries returns a copy of all entries.
func (s *MemorySink) Entries() []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]audit.Entry, len(s.entries))
	copy(result, s.entries)
	return result
}

// Close rejects further appends.
func (s *MemorySink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// JSONSink writes entries as JSON lines to an io.Writer.
type JSONSink struct {
	mu      sync.Mutex
	writer  io.Writer
	encoder *json.Encoder
}

// NewJSONSink creates a new JSON audit sink.
func NewJSONSink(writer io.Writer) *JSONSink {
	return &JSONSink{
		writer:  writer,
		encoder: json.NewEncoder(writer),
	}
}

// OpenJSONFile opens path for appending and returns a sink writing to it.
func OpenJSONFile(path string) (*JSONSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return NewJSONSink(f), nil
}

// Append writes an entry as one JSON line.
func (s *JSONSink) Append(ctx context.Context, entry audit.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return s.encoder.Encode(entry)
}

// Close closes the writer when it is an io.Closer.
func (s *JSONSink) Close() error {
	if closer, ok := s.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// MultiSink fans entries out to several sinks.
type MultiSink struct {
	sinks []audit.Sink
}

// NewMultiSink creates a sink that writes to every given sink.
func NewMultiSink(sinks ...audit.Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Append writes the entry to all sinks. Every sink is attempted; the
// failures are joined.
func (s *MultiSink) Append(ctx context.Context, entry audit.Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Append(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Query queries the first sink that supports it.
func (s *MultiSink) Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	for _, sink := range s.sinks {
		reader, ok := sink.(audit.Reader)
		if !ok {
			continue
		}
		return reader.Query(ctx, filter)
	}
	return nil, nil
}

// Close closes every sink that implements io.Closer.
func (s *MultiSink) Close() error {
	var errs []error
	for _, sink := range s.sinks {
		if closer, ok := sink.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

var (
	_ audit.Sink   = (*MemorySink)(nil)
	_ audit.Reader = (*MemorySink)(nil)
	_ audit.Sink   = (*JSONSink)(nil)
	_ audit.Sink   = (*MultiSink)(nil)
	_ audit.Reader = (*MultiSink)(nil)
)
