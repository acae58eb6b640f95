package decision

import (
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/decision-ledger/domain/fault"
)

func TestNewDraft(t *testing.T) {
	t.Parallel()

	d := NewDraft("session-1", "owner-1", Content{Statement: "Use Postgres", Assumptions: "load < 1k rps"})

	if d.ID == "" {
		t.Error("expected non-empty ID")
	}
	if d.Status != StatusDraft {
		t.Errorf("Status = %s, want DRAFT", d.Status)
	}
	if d.SupersedesID != "" {
		t.Errorf("SupersedesID = %s, want empty", d.SupersedesID)
	}
	if d.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if err := d.ValidateNew(); err != nil {
		t.Errorf("ValidateNew() error = %v", err)
	}
}

func TestNewSupersession_StartsLocked(t *testing.T) {
	t.Parallel()

	original := NewDraft("session-1", "owner-1", Content{Statement: "v1"})
	original.Status = StatusLocked

	next := NewSupersession(original, "owner-2", Content{Statement: "v2"})

	if next.Status != StatusLocked {
		t.Errorf("Status = %s, want LOCKED", next.Status)
	}
	if next.SupersedesID != original.ID {
		t.Errorf("SupersedesID = %s, want %s", next.SupersedesID, original.ID)
	}
	if next.SessionID != original.SessionID {
		t.Errorf("SessionID = %s, want %s", next.SessionID, original.SessionID)
	}
	if err := next.ValidateNew(); err != nil {
		t.Errorf("ValidateNew() error = %v", err)
	}
}

func TestValidateNew_RejectsBadCreation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(d *Decision)
	}{
		{"missing statement", func(d *Decision) { d.Statement = "  " }},
		{"missing session", func(d *Decision) { d.SessionID = "" }},
		{"missing owner", func(d *Decision) { d.OwnerID = "" }},
		{"unknown status", func(d *Decision) { d.Status = "ARCHIVED" }},
		{"plain decision created locked", func(d *Decision) { d.Status = StatusLocked }},
		{"supersession created as draft", func(d *Decision) { d.SupersedesID = "other" }},
		{"self supersession", func(d *Decision) { d.Status = StatusLocked; d.SupersedesID = d.ID }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := NewDraft("s", "o", Content{Statement: "x"})
			tt.mutate(d)
			err := d.ValidateNew()
			if !errors.Is(err, fault.ErrInvalidInput) {
				t.Errorf("ValidateNew() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestStatus_Transitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusLocked, true},
		{StatusLocked, StatusSuperseded, true},
		{StatusDraft, StatusSuperseded, false},
		{StatusLocked, StatusDraft, false},
		{StatusSuperseded, StatusDraft, false},
		{StatusSuperseded, StatusLocked, false},
		{StatusLocked, StatusAmended, false},
		{StatusDraft, StatusAmended, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatus_Predicates(t *testing.T) {
	t.Parallel()

	if StatusDraft.IsImmutable() {
		t.Error("DRAFT should be mutable")
	}
	for _, s := range []Status{StatusLocked, StatusSuperseded, StatusAmended} {
		if !s.IsImmutable() {
			t.Errorf("%s should be immutable", s)
		}
	}
	if !StatusSuperseded.IsTerminal() || !StatusAmended.IsTerminal() {
		t.Error("SUPERSEDED and AMENDED should be terminal")
	}
	if StatusLocked.IsTerminal() {
		t.Error("LOCKED can still be superseded")
	}
}

func TestChecks(t *testing.T) {
	t.Parallel()

	d := NewDraft("s", "o", Content{Statement: "x"})
	if err := d.CheckLock(); err != nil {
		t.Errorf("CheckLock() on draft = %v", err)
	}
	if err := d.CheckDelete(); err != nil {
		t.Errorf("CheckDelete() on draft = %v", err)
	}
	if err := d.CheckSupersede(); !errors.Is(err, fault.ErrInvalidState) {
		t.Errorf("CheckSupersede() on draft = %v, want ErrInvalidState", err)
	}

	d.Status = StatusLocked
	err := d.CheckLock()
	if !errors.Is(err, fault.ErrForbidden) {
		t.Fatalf("CheckLock() on locked = %v, want ErrForbidden", err)
	}
	if !strings.Contains(err.Error(), "already immutable") {
		t.Errorf("CheckLock() message = %q, want mention of immutability", err.Error())
	}
	if err := d.CheckDelete(); !errors.Is(err, fault.ErrForbidden) {
		t.Errorf("CheckDelete() on locked = %v, want ErrForbidden", err)
	}
	if err := d.CheckSupersede(); err != nil {
		t.Errorf("CheckSupersede() on locked = %v", err)
	}
}

func TestBuildSupersessionChain(t *testing.T) {
	t.Parallel()

	d1 := &Decision{ID: "d1"}
	d2 := &Decision{ID: "d2", SupersedesID: "d1"}
	d3 := &Decision{ID: "d3", SupersedesID: "d2"}
	d4 := &Decision{ID: "d4"}

	chain := BuildSupersessionChain([]*Decision{d1, d2, d3, d4})

	if len(chain) != 2 {
		t.Fatalf("len(chain) = %d, want 2", len(chain))
	}
	if got := chain["d1"]; len(got) != 1 || got[0] != "d2" {
		t.Errorf("chain[d1] = %v, want [d2]", got)
	}
	if got := chain["d2"]; len(got) != 1 || got[0] != "d3" {
		t.Errorf("chain[d2] = %v, want [d3]", got)
	}
}

func TestListFilter_Matches(t *testing.T) {
	t.Parallel()

	d := &Decision{SessionID: "s1", OwnerID: "o1", Status: StatusLocked}

	if !(ListFilter{}).Matches(d) {
		t.Error("empty filter should match")
	}
	if !(ListFilter{SessionID: "s1", OwnerID: "o1", Status: StatusLocked}).Matches(d) {
		t.Error("exact filter should match")
	}
	if (ListFilter{Status: StatusDraft}).Matches(d) {
		t.Error("status filter should not match")
	}
	if (ListFilter{OwnerID: "o2"}).Matches(d) {
		t.Error("owner filter should not match")
	}
}
