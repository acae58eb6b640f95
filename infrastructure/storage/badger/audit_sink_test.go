package badger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/felixgeelhaar/decision-ledger/domain/audit"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/storage/badger"
)

func newTestAuditSink(t *testing.T) *badger.AuditSink {
	t.Helper()

	sink, err := badger.NewAuditSink(badger.DefaultConfig(), badger.WithInMemory(), badger.WithKeyPrefix("test:"))
	if err != nil {
		t.Fatalf("NewAuditSink failed: %v", err)
	}
	t.Cleanup(func() { _ = sink.Close() })
	return sink
}

func TestAuditSink_AppendAndQuery(t *testing.T) {
	t.Parallel()

	sink := newTestAuditSink(t)
	ctx := context.Background()

	entries := []audit.Entry{
		{UserID: "u1", Action: audit.ActionDecisionCreated, ResourceType: "DecisionLog", ResourceID: "d1"},
		{UserID: "u1", Action: audit.ActionDecisionLocked, ResourceType: "DecisionLog", ResourceID: "d1"},
		{UserID: "u2", Action: audit.ActionApprovalRequested, ResourceType: "Policy", ResourceID: "p1"},
	}
	for _, e := range entries {
		if err := sink.Append(ctx, e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	all, err := sink.Query(ctx, audit.Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	for i, e := range all {
		if e.Seq != uint64(i+1) {
			t.Errorf("entry %d seq = %d, want %d", i, e.Seq, i+1)
		}
		if e.Timestamp.IsZero() {
			t.Errorf("entry %d missing timestamp", i)
		}
	}

	decisions, err := sink.Query(ctx, audit.Filter{ResourceType: "DecisionLog"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(decisions) != 2 {
		t.Errorf("expected 2 decision entries, got %d", len(decisions))
	}

	count, err := sink.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Count = %d, want 3", count)
	}
}

func TestAuditSink_ConcurrentAppends(t *testing.T) {
	t.Parallel()

	sink := newTestAuditSink(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sink.Append(ctx, audit.Entry{Action: audit.ActionApprovalGranted}); err != nil {
				t.Errorf("Append failed: %v", err)
			}
		}()
	}
	wg.Wait()

	all, err := sink.Query(ctx, audit.Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	seen := make(map[uint64]bool)
	for _, e := range all {
		if seen[e.Seq] {
			t.Errorf("duplicate seq %d", e.Seq)
		}
		seen[e.Seq] = true
	}
	if len(seen) != 20 {
		t.Errorf("expected 20 distinct sequences, got %d", len(seen))
	}
}

func TestAuditSink_Closed(t *testing.T) {
	t.Parallel()

	sink, err := badger.NewAuditSink(badger.Config{InMemory: true})
	if err != nil {
		t.Fatalf("NewAuditSink failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	err = sink.Append(context.Background(), audit.Entry{Action: audit.ActionDecisionCreated})
	if !errors.Is(err, audit.ErrSinkClosed) {
		t.Errorf("expected ErrSinkClosed, got %v", err)
	}
}

func TestAuditSink_RequiresDir(t *testing.T) {
	t.Parallel()

	_, err := badger.NewAuditSink(badger.DefaultConfig())
	if !errors.Is(err, badger.ErrOpenFailed) {
		t.Errorf("NewAuditSink() error = %v, want ErrOpenFailed", err)
	}
}
