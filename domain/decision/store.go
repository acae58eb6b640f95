package decision

import "context"

// Tx is the set of operations available inside a store transaction.
// There is deliberately no full-record update: after insert only the status
// column can change.
type Tx interface {
	// Get retrieves a decision by ID.
	Get(ctx context.Context, id string) (*Decision, error)

	// Insert persists a new decision.
	Insert(ctx context.Context, d *Decision) error

	// UpdateStatus moves id from expected to next. It returns
	// ErrStatusConflict when the stored status is not expected.
	UpdateStatus(ctx context.Context, id string, expected, next Status) error

	// Delete removes id only while its status equals expected.
	Delete(ctx context.Context, id string, expected Status) error
}

// Store persists decisions.
type Store interface {
	Tx

	// WithTx runs fn in a single transaction. All writes made through the
	// Tx commit together or not at all.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// List returns decisions matching the filter.
	List(ctx context.Context, filter ListFilter) ([]*Decision, error)

	// Successors returns decisions whose SupersedesID equals id, oldest first.
	Successors(ctx context.Context, id string) ([]*Decision, error)
}

// ListFilter filters decision queries.
type ListFilter struct {
	// SessionID filters by session.
	SessionID string

	// OwnerID filters by author.
	OwnerID string

	// Status filters by lifecycle state.
	Status Status

	// Descending orders newest first.
	Descending bool

	// Limit is the maximum number of results.
	Limit int
}

// Matches reports whether d satisfies the filter predicates.
func (f ListFilter) Matches(d *Decision) bool {
	if f.SessionID != "" && d.SessionID != f.SessionID {
		return false
	}
	if f.OwnerID != "" && d.OwnerID != f.OwnerID {
		return false
	}
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	return true
}
