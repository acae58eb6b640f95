package approval

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/decision-ledger/domain/actor"
)

func TestNewRequest(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := NewRequest(CategoryPolicyLock, "Policy", "p-1", "u-1", "lock it", 2*time.Hour, now)

	if r.ID == "" {
		t.Error("expected non-empty ID")
	}
	if r.Status != StatusPending {
		t.Errorf("Status = %s, want PENDING", r.Status)
	}
	if !r.ExpiresAt.Equal(now.Add(2 * time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", r.ExpiresAt, now.Add(2*time.Hour))
	}
	if err := r.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestRequest_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(r *Request)
	}{
		{"missing resource id", func(r *Request) { r.ResourceID = "" }},
		{"blank reason", func(r *Request) { r.Reason = "   " }},
		{"unknown category", func(r *Request) { r.Category = "NOPE" }},
		{"missing requester", func(r *Request) { r.RequesterID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := NewRequest(CategoryADRApproval, "ADR", "a-1", "u-1", "why", time.Hour, time.Now())
			tt.mutate(r)
			if err := r.Validate(); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}

func TestRequest_IsOverdue(t *testing.T) {
	t.Parallel()

	now := time.Now()
	r := NewRequest(CategoryDataAccess, "Dataset", "d-1", "u-1", "why", 0, now)

	if r.IsOverdue(now) {
		t.Error("deadline equal to now is not yet overdue")
	}
	if !r.IsOverdue(now.Add(time.Nanosecond)) {
		t.Error("expected overdue after deadline")
	}
	if r.Expired().IsOverdue(now.Add(time.Hour)) {
		t.Error("expired requests are not overdue")
	}
}

func TestRequest_Resolved(t *testing.T) {
	t.Parallel()

	r := NewRequest(CategoryPolicyLock, "Policy", "p-1", "u-1", "why", time.Hour, time.Now())
	r.Metadata = map[string]any{"k": "v"}

	approved := r.Resolved(Resolution{ApproverID: "u-2", Approved: true, Comments: "ok", At: time.Now()})
	if approved.Status != StatusApproved || approved.ApproverID != "u-2" || approved.RespondedAt == nil {
		t.Errorf("unexpected approved request: %+v", approved)
	}
	if r.Status != StatusPending {
		t.Error("Resolved must not mutate the receiver")
	}

	approved.Metadata["k"] = "changed"
	if r.Metadata["k"] != "v" {
		t.Error("Clone must copy metadata")
	}

	rejected := r.Resolved(Resolution{ApproverID: "u-2", Approved: false, At: time.Now()})
	if rejected.Status != StatusRejected {
		t.Errorf("Status = %s, want REJECTED", rejected.Status)
	}
}

func TestStatus_Transitions(t *testing.T) {
	t.Parallel()

	for _, target := range []Status{StatusApproved, StatusRejected, StatusExpired} {
		if !StatusPending.CanTransitionTo(target) {
			t.Errorf("PENDING -> %s should be valid", target)
		}
		for _, from := range []Status{StatusApproved, StatusRejected, StatusExpired} {
			if from.CanTransitionTo(target) {
				t.Errorf("%s -> %s should be invalid", from, target)
			}
		}
	}
	if StatusPending.IsTerminal() {
		t.Error("PENDING is not terminal")
	}
}

func TestDefaultRules(t *testing.T) {
	t.Parallel()

	rules := DefaultRules()

	tests := []struct {
		category Category
		role     actor.Role
		want     bool
	}{
		{CategoryPolicyLock, actor.RoleAdmin, true},
		{CategoryPolicyLock, actor.RoleDeveloper, false},
		{CategoryADRApproval, actor.RoleDeveloper, true},
		{CategoryHighRiskDecision, actor.RoleDeveloper, true},
		{CategoryHighRiskDecision, actor.RoleUser, false},
		{CategorySecurityException, actor.RoleSuperAdmin, true},
		{CategorySecurityException, actor.RoleClient, false},
		{CategoryDataAccess, actor.RoleAdmin, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.category)+"/"+string(tt.role), func(t *testing.T) {
			t.Parallel()
			if got := Permits(rules, tt.category, tt.role); got != tt.want {
				t.Errorf("Permits() = %v, want %v", got, tt.want)
			}
		})
	}

	for _, c := range Categories() {
		if _, ok := rules.AllowedRoles(c); !ok {
			t.Errorf("default rules missing %s", c)
		}
	}
}

func TestStaticRules_Merge(t *testing.T) {
	t.Parallel()

	base := DefaultRules()
	merged := base.Merge(map[Category][]actor.Role{CategoryPolicyLock: {actor.RoleSuperAdmin}})

	if Permits(merged, CategoryPolicyLock, actor.RoleAdmin) {
		t.Error("override should replace the whole entry")
	}
	if !Permits(base, CategoryPolicyLock, actor.RoleAdmin) {
		t.Error("Merge must not mutate the base table")
	}
	if got := FormatRoles([]actor.Role{actor.RoleAdmin, actor.RoleSuperAdmin}); got != "ADMIN, SUPER_ADMIN" {
		t.Errorf("FormatRoles() = %q", got)
	}
}

func TestListFilter_Matches(t *testing.T) {
	t.Parallel()

	now := time.Now()
	r := NewRequest(CategoryADRApproval, "ADR", "a-1", "u-1", "why", time.Hour, now)

	if !(ListFilter{}).Matches(r) {
		t.Error("empty filter should match")
	}
	if (ListFilter{ExcludeRequesterID: "u-1"}).Matches(r) {
		t.Error("excluded requester should not match")
	}
	if !(ListFilter{Status: []Status{StatusApproved, StatusPending}}).Matches(r) {
		t.Error("status set should match")
	}
	if (ListFilter{ExpiresBefore: now}).Matches(r) {
		t.Error("deadline after bound should not match")
	}
	if !(ListFilter{ExpiresBefore: now.Add(2 * time.Hour)}).Matches(r) {
		t.Error("deadline before bound should match")
	}
	if !r.Matches("ADR", "a-1", "") || r.Matches("ADR", "a-1", CategoryPolicyLock) {
		t.Error("Matches resource/category mismatch")
	}
}
