package statemachine

import (
	"errors"
	"sync"
	"testing"

	"github.com/felixgeelhaar/decision-ledger/domain/approval"
	"github.com/felixgeelhaar/decision-ledger/domain/decision"
)

func TestNewMachines(t *testing.T) {
	t.Parallel()

	if m, err := NewDecisionMachine(); err != nil || m == nil {
		t.Fatalf("NewDecisionMachine() = (%v, %v)", m, err)
	}
	if m, err := NewApprovalMachine(); err != nil || m == nil {
		t.Fatalf("NewApprovalMachine() = (%v, %v)", m, err)
	}
}

func TestDecisionLifecycle_Transition(t *testing.T) {
	t.Parallel()

	lc, err := DecisionLifecycle()
	if err != nil {
		t.Fatalf("DecisionLifecycle() error = %v", err)
	}

	tests := []struct {
		from, to decision.Status
		wantErr  bool
	}{
		{decision.StatusDraft, decision.StatusLocked, false},
		{decision.StatusLocked, decision.StatusSuperseded, false},
		{decision.StatusDraft, decision.StatusSuperseded, true},
		{decision.StatusLocked, decision.StatusLocked, true},
		{decision.StatusSuperseded, decision.StatusLocked, true},
		{decision.StatusLocked, decision.StatusAmended, true},
		{decision.StatusDraft, decision.StatusAmended, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()

			step, err := lc.Transition(string(tt.from), string(tt.to), "test")
			if tt.wantErr {
				if !errors.Is(err, ErrTransitionRejected) {
					t.Errorf("Transition() error = %v, want ErrTransitionRejected", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transition() error = %v", err)
			}
			if step.From != string(tt.from) || step.To != string(tt.to) {
				t.Errorf("step = %+v", step)
			}
		})
	}
}

func TestApprovalLifecycle_Transition(t *testing.T) {
	t.Parallel()

	lc, err := ApprovalLifecycle()
	if err != nil {
		t.Fatalf("ApprovalLifecycle() error = %v", err)
	}

	for _, target := range []approval.Status{approval.StatusApproved, approval.StatusRejected, approval.StatusExpired} {
		step, err := lc.Transition(string(approval.StatusPending), string(target), "resolved")
		if err != nil {
			t.Errorf("PENDING -> %s error = %v", target, err)
			continue
		}
		if step.To != string(target) || step.Reason != "resolved" {
			t.Errorf("step = %+v", step)
		}

		if _, err := lc.Transition(string(target), string(approval.StatusPending), ""); err == nil {
			t.Errorf("%s -> PENDING should be rejected", target)
		}
	}
}

func TestLifecycle_ConcurrentUse(t *testing.T) {
	t.Parallel()

	lc, err := DecisionLifecycle()
	if err != nil {
		t.Fatalf("DecisionLifecycle() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := lc.Transition(string(decision.StatusDraft), string(decision.StatusLocked), ""); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Transition() error = %v", err)
	}
}

func TestEvents(t *testing.T) {
	t.Parallel()

	if e, ok := DecisionEvent(decision.StatusLocked); !ok || e != EventLock {
		t.Errorf("DecisionEvent(LOCKED) = (%s, %v)", e, ok)
	}
	if _, ok := DecisionEvent(decision.StatusAmended); ok {
		t.Error("AMENDED has no event")
	}
	if e, ok := ApprovalEvent(approval.StatusExpired); !ok || e != EventExpire {
		t.Errorf("ApprovalEvent(EXPIRED) = (%s, %v)", e, ok)
	}
	if _, ok := ApprovalEvent(approval.StatusPending); ok {
		t.Error("PENDING has no event")
	}
}
