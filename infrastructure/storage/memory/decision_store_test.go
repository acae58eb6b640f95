package memory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/decision-ledger/domain/decision"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/storage/memory"
)

func newDecision(id, session string, status decision.Status, at time.Time) *decision.Decision {
	return &decision.Decision{
		ID:        id,
		SessionID: session,
		Statement: "statement " + id,
		OwnerID:   "owner",
		Status:    status,
		CreatedAt: at,
	}
}

func TestDecisionStore_InsertAndGet(t *testing.T) {
	t.Parallel()

	store := memory.NewDecisionStore()
	ctx := context.Background()

	d := newDecision("d1", "s1", decision.StatusDraft, time.Now())
	if err := store.Insert(ctx, d); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := store.Get(ctx, "d1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Statement != d.Statement {
		t.Errorf("Statement = %s, want %s", got.Statement, d.Statement)
	}

	// Mutating the returned copy must not reach the store.
	got.Statement = "tampered"
	again, _ := store.Get(ctx, "d1")
	if again.Statement == "tampered" {
		t.Error("store returned shared state")
	}

	if err := store.Insert(ctx, d); !errors.Is(err, decision.ErrDecisionExists) {
		t.Errorf("duplicate Insert() error = %v, want ErrDecisionExists", err)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, decision.ErrDecisionNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrDecisionNotFound", err)
	}
}

func TestDecisionStore_UpdateStatusIsConditional(t *testing.T) {
	t.Parallel()

	store := memory.NewDecisionStore()
	ctx := context.Background()
	_ = store.Insert(ctx, newDecision("d1", "s1", decision.StatusDraft, time.Now()))

	if err := store.UpdateStatus(ctx, "d1", decision.StatusDraft, decision.StatusLocked); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	err := store.UpdateStatus(ctx, "d1", decision.StatusDraft, decision.StatusLocked)
	if !errors.Is(err, decision.ErrStatusConflict) {
		t.Errorf("second UpdateStatus() error = %v, want ErrStatusConflict", err)
	}
}

func TestDecisionStore_ConcurrentLockHasOneWinner(t *testing.T) {
	t.Parallel()

	store := memory.NewDecisionStore()
	ctx := context.Background()
	_ = store.Insert(ctx, newDecision("d1", "s1", decision.StatusDraft, time.Now()))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.UpdateStatus(ctx, "d1", decision.StatusDraft, decision.StatusLocked) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("winners = %d, want 1", wins.Load())
	}
}

func TestDecisionStore_WithTxRollsBack(t *testing.T) {
	t.Parallel()

	store := memory.NewDecisionStore()
	ctx := context.Background()
	_ = store.Insert(ctx, newDecision("d1", "s1", decision.StatusLocked, time.Now()))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx decision.Tx) error {
		next := newDecision("d2", "s1", decision.StatusLocked, time.Now())
		next.SupersedesID = "d1"
		if err := tx.Insert(ctx, next); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, "d1", decision.StatusLocked, decision.StatusSuperseded); err != nil {
			return err
		}
		// Staged writes are visible inside the transaction.
		if _, err := tx.Get(ctx, "d2"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	if _, err := store.Get(ctx, "d2"); !errors.Is(err, decision.ErrDecisionNotFound) {
		t.Errorf("d2 should not exist after rollback, got %v", err)
	}
	d1, _ := store.Get(ctx, "d1")
	if d1.Status != decision.StatusLocked {
		t.Errorf("d1 status = %s, want LOCKED after rollback", d1.Status)
	}
}

func TestDecisionStore_WithTxCommits(t *testing.T) {
	t.Parallel()

	store := memory.NewDecisionStore()
	ctx := context.Background()
	_ = store.Insert(ctx, newDecision("d1", "s1", decision.StatusLocked, time.Now()))

	err := store.WithTx(ctx, func(tx decision.Tx) error {
		next := newDecision("d2", "s1", decision.StatusLocked, time.Now())
		next.SupersedesID = "d1"
		if err := tx.Insert(ctx, next); err != nil {
			return err
		}
		return tx.UpdateStatus(ctx, "d1", decision.StatusLocked, decision.StatusSuperseded)
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}

	successors, err := store.Successors(ctx, "d1")
	if err != nil {
		t.Fatalf("Successors() error = %v", err)
	}
	if len(successors) != 1 || successors[0].ID != "d2" {
		t.Errorf("Successors() = %v, want [d2]", successors)
	}
}

func TestDecisionStore_Delete(t *testing.T) {
	t.Parallel()

	store := memory.NewDecisionStore()
	ctx := context.Background()
	_ = store.Insert(ctx, newDecision("draft", "s1", decision.StatusDraft, time.Now()))
	_ = store.Insert(ctx, newDecision("locked", "s1", decision.StatusLocked, time.Now()))

	if err := store.Delete(ctx, "locked", decision.StatusDraft); !errors.Is(err, decision.ErrStatusConflict) {
		t.Errorf("Delete(locked) error = %v, want ErrStatusConflict", err)
	}
	if err := store.Delete(ctx, "draft", decision.StatusDraft); err != nil {
		t.Fatalf("Delete(draft) error = %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestDecisionStore_ListOrdering(t *testing.T) {
	t.Parallel()

	store := memory.NewDecisionStore()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_ = store.Insert(ctx, newDecision("b", "s1", decision.StatusDraft, base.Add(time.Minute)))
	_ = store.Insert(ctx, newDecision("a", "s1", decision.StatusDraft, base))
	_ = store.Insert(ctx, newDecision("c", "s2", decision.StatusDraft, base.Add(2*time.Minute)))

	tests := []struct {
		name   string
		filter decision.ListFilter
		want   []string
	}{
		{"oldest first", decision.ListFilter{}, []string{"a", "b", "c"}},
		{"newest first", decision.ListFilter{Descending: true}, []string{"c", "b", "a"}},
		{"by session", decision.ListFilter{SessionID: "s1"}, []string{"a", "b"}},
		{"limit", decision.ListFilter{Descending: true, Limit: 1}, []string{"c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("got[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}
