package approval

import (
	"context"
	"time"
)

// Store persists approval requests.
type Store interface {
	// Save persists a new request.
	Save(ctx context.Context, r *Request) error

	// Get retrieves a request by ID.
	Get(ctx context.Context, id string) (*Request, error)

	// List returns requests matching the filter.
	List(ctx context.Context, filter ListFilter) ([]*Request, error)

	// CompareAndSwap replaces the stored request with r only if the stored
	// status equals expected. It returns ErrStatusConflict otherwise.
	CompareAndSwap(ctx context.Context, r *Request, expected Status) error

	// Delete removes a request. It is only used to undo a Save whose audit
	// entry could not be written.
	Delete(ctx context.Context, id string) error
}

// ListFilter filters request queries.
type ListFilter struct {
	// RequesterID keeps only requests authored by this user.
	RequesterID string

	// ExcludeRequesterID drops requests authored by this user.
	ExcludeRequesterID string

	// Status filters by lifecycle state.
	Status []Status

	// ResourceType and ResourceID filter by target resource.
	ResourceType string
	ResourceID   string

	// Category filters by category.
	Category Category

	// ExpiresBefore keeps requests whose deadline is at or before this time.
	ExpiresBefore time.Time

	// Descending orders by RequestedAt newest first.
	Descending bool
}

// Matches reports whether r satisfies the filter predicates.
func (f ListFilter) Matches(r *Request) bool {
	if f.RequesterID != "" && r.RequesterID != f.RequesterID {
		return false
	}
	if f.ExcludeRequesterID != "" && r.RequesterID == f.ExcludeRequesterID {
		return false
	}
	if len(f.Status) > 0 {
		found := false
		for _, s := range f.Status {
			if r.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ResourceType != "" && r.ResourceType != f.ResourceType {
		return false
	}
	if f.ResourceID != "" && r.ResourceID != f.ResourceID {
		return false
	}
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if !f.ExpiresBefore.IsZero() && r.ExpiresAt.After(f.ExpiresBefore) {
		return false
	}
	return true
}
