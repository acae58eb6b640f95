package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/felixgeelhaar/decision-ledger/domain/approval"
)

// ApprovalStore is an in-memory implementation of approval.Store.
type ApprovalStore struct {
	requests map[string][]byte
	mu       sync.RWMutex
}

// NewApprovalStore creates a new in-memory approval store.
func NewApprovalStore() *ApprovalStore {
	return &ApprovalStore{
		requests: make(map[string][]byte),
	}
}

// Save persists a new request.
func (s *ApprovalStore) Save(ctx context.Context, r *approval.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.ID == "" {
		return approval.ErrInvalidRequest
	}

	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[r.ID]; exists {
		return approval.ErrRequestExists
	}
	s.requests[r.ID] = data
	return nil
}

// Get retrieves a request by ID.
func (s *ApprovalStore) Get(ctx context.Context, id string) (*approval.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.requests[id]
	s.mu.RUnlock()

	if !ok {
		return nil, approval.ErrRequestNotFound
	}
	return decodeRequest(data)
}

// List returns requests matching the filter ordered by RequestedAt.
func (s *ApprovalStore) List(ctx context.Context, filter approval.ListFilter) ([]*approval.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*approval.Request
	for _, data := range s.requests {
		r, err := decodeRequest(data)
		if err != nil {
			return nil, err
		}
		if filter.Matches(r) {
			result = append(result, r)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].RequestedAt.Equal(result[j].RequestedAt) {
			return result[i].ID < result[j].ID
		}
		less := result[i].RequestedAt.Before(result[j].RequestedAt)
		if filter.Descending {
			return !less
		}
		return less
	})
	return result, nil
}

// CompareAndSwap replaces the stored request only while its status equals expected.
func (s *ApprovalStore) CompareAndSwap(ctx context.Context, r *approval.Request, expected approval.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.requests[r.ID]
	if !ok {
		return approval.ErrRequestNotFound
	}
	stored, err := decodeRequest(current)
	if err != nil {
		return err
	}
	if stored.Status != expected {
		return approval.ErrStatusConflict
	}
	s.requests[r.ID] = data
	return nil
}

// Delete removes a request.
func (s *ApprovalStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[id]; !ok {
		return approval.ErrRequestNotFound
	}
	delete(s.requests, id)
	return nil
}

// Len returns the number of stored requests.
func (s *ApprovalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.requests)
}

func decodeRequest(data []byte) (*approval.Request, error) {
	var r approval.Request
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Ensure ApprovalStore implements approval.Store
var _ approval.Store = (*ApprovalStore)(nil)
