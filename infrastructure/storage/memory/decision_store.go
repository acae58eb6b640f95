// Package memory provides in-memory implementations of the ledger stores.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/felixgeelhaar/decision-ledger/domain/decision"
)

// decisionEntry holds a serialized copy of a decision so callers can never
// mutate stored state through a returned pointer.
type decisionEntry struct {
	data []byte
	seq  uint64
}

func (e *decisionEntry) decode() (*decision.Decision, error) {
	var d decision.Decision
	if err := json.Unmarshal(e.data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DecisionStore is an in-memory implementation of decision.Store.
// Transactions hold the write lock and commit a staged overlay.
type DecisionStore struct {
	decisions map[string]*decisionEntry
	seq       uint64
	mu        sync.RWMutex
}

// NewDecisionStore creates a new in-memory decision store.
func NewDecisionStore() *DecisionStore {
	return &DecisionStore{
		decisions: make(map[string]*decisionEntry),
	}
}

// Get retrieves a decision by ID.
func (s *DecisionStore) Get(ctx context.Context, id string) (*decision.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.decisions[id]
	if !ok {
		return nil, decision.ErrDecisionNotFound
	}
	return entry.decode()
}

// Insert persists a new decision.
func (s *DecisionStore) Insert(ctx context.Context, d *decision.Decision) error {
	return s.WithTx(ctx, func(tx decision.Tx) error {
		return tx.Insert(ctx, d)
	})
}

// UpdateStatus moves id from expected to next.
func (s *DecisionStore) UpdateStatus(ctx context.Context, id string, expected, next decision.Status) error {
	return s.WithTx(ctx, func(tx decision.Tx) error {
		return tx.UpdateStatus(ctx, id, expected, next)
	})
}

// Delete removes id while its status equals expected.
func (s *DecisionStore) Delete(ctx context.Context, id string, expected decision.Status) error {
	return s.WithTx(ctx, func(tx decision.Tx) error {
		return tx.Delete(ctx, id, expected)
	})
}

// WithTx runs fn against a staged copy of the changed records. Nothing is
// visible to other callers until fn returns nil.
func (s *DecisionStore) WithTx(ctx context.Context, fn func(tx decision.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store:   s,
		staged:  make(map[string]*decisionEntry),
		deleted: make(map[string]bool),
		nextSeq: s.seq,
	}
	if err := fn(tx); err != nil {
		return err
	}

	for id := range tx.deleted {
		delete(s.decisions, id)
	}
	for id, entry := range tx.staged {
		s.decisions[id] = entry
	}
	s.seq = tx.nextSeq
	return nil
}

// List returns decisions matching the filter, oldest first unless
// filter.Descending is set.
func (s *DecisionStore) List(ctx context.Context, filter decision.ListFilter) ([]*decision.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type ordered struct {
		d   *decision.Decision
		seq uint64
	}
	var matched []ordered
	for _, entry := range s.decisions {
		d, err := entry.decode()
		if err != nil {
			return nil, err
		}
		if filter.Matches(d) {
			matched = append(matched, ordered{d: d, seq: entry.seq})
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		less := matched[i].seq < matched[j].seq
		if !matched[i].d.CreatedAt.Equal(matched[j].d.CreatedAt) {
			less = matched[i].d.CreatedAt.Before(matched[j].d.CreatedAt)
		}
		if filter.Descending {
			return !less
		}
		return less
	})

	result := make([]*decision.Decision, 0, len(matched))
	for _, m := range matched {
		result = append(result, m.d)
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Successors returns decisions superseding id, oldest first.
func (s *DecisionStore) Successors(ctx context.Context, id string) ([]*decision.Decision, error) {
	all, err := s.List(ctx, decision.ListFilter{})
	if err != nil {
		return nil, err
	}
	var result []*decision.Decision
	for _, d := range all {
		if d.SupersedesID == id {
			result = append(result, d)
		}
	}
	return result, nil
}

// Len returns the number of stored decisions.
func (s *DecisionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.decisions)
}

// memoryTx reads through the staged overlay into the committed map.
// The owning store's write lock is held for the lifetime of the tx.
type memoryTx struct {
	store   *DecisionStore
	staged  map[string]*decisionEntry
	deleted map[string]bool
	nextSeq uint64
}

func (tx *memoryTx) lookup(id string) (*decisionEntry, bool) {
	if tx.deleted[id] {
		return nil, false
	}
	if entry, ok := tx.staged[id]; ok {
		return entry, true
	}
	entry, ok := tx.store.decisions[id]
	return entry, ok
}

func (tx *memoryTx) Get(ctx context.Context, id string) (*decision.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, ok := tx.lookup(id)
	if !ok {
		return nil, decision.ErrDecisionNotFound
	}
	return entry.decode()
}

func (tx *memoryTx) Insert(ctx context.Context, d *decision.Decision) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.ID == "" {
		return decision.ErrInvalidDecision
	}
	if _, exists := tx.lookup(d.ID); exists {
		return decision.ErrDecisionExists
	}

	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	tx.nextSeq++
	delete(tx.deleted, d.ID)
	tx.staged[d.ID] = &decisionEntry{data: data, seq: tx.nextSeq}
	return nil
}

func (tx *memoryTx) UpdateStatus(ctx context.Context, id string, expected, next decision.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry, ok := tx.lookup(id)
	if !ok {
		return decision.ErrDecisionNotFound
	}
	d, err := entry.decode()
	if err != nil {
		return err
	}
	if d.Status != expected {
		return decision.ErrStatusConflict
	}

	d.Status = next
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	tx.staged[id] = &decisionEntry{data: data, seq: entry.seq}
	return nil
}

func (tx *memoryTx) Delete(ctx context.Context, id string, expected decision.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry, ok := tx.lookup(id)
	if !ok {
		return decision.ErrDecisionNotFound
	}
	d, err := entry.decode()
	if err != nil {
		return err
	}
	if d.Status != expected {
		return decision.ErrStatusConflict
	}
	delete(tx.staged, id)
	tx.deleted[id] = true
	return nil
}

// Ensure DecisionStore implements decision.Store
var _ decision.Store = (*DecisionStore)(nil)
