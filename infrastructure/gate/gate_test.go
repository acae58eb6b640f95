package gate

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/felixgeelhaar/decision-ledger/domain/actor"
	"github.com/felixgeelhaar/decision-ledger/domain/approval"
	"github.com/felixgeelhaar/decision-ledger/domain/fault"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/logging"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/workflow"
)

type stubChecker struct {
	summary workflow.Summary
	err     error
	calls   int
	lastID  string
}

func (s *stubChecker) HasApproval(_ context.Context, _, resourceID string, _ approval.Category) (workflow.Summary, error) {
	s.calls++
	s.lastID = resourceID
	return s.summary, s.err
}

var (
	admin = actor.Actor{ID: "root", Role: actor.RoleSuperAdmin}
	dev   = actor.Actor{ID: "dev", Role: actor.RoleDeveloper}
)

func TestGate_Check(t *testing.T) {
	t.Parallel()

	withID := Request{Params: map[string]string{"id": "p-1"}}

	tests := []struct {
		name    string
		caller  actor.Actor
		need    Requirement
		req     Request
		summary workflow.Summary
		wantErr string
		lookups int
	}{
		{
			name:    "approved",
			caller:  dev,
			need:    Requirement{Category: approval.CategoryPolicyLock, ResourceType: "Policy"},
			req:     withID,
			summary: workflow.Summary{HasApproved: true},
			lookups: 1,
		},
		{
			name:    "pending only",
			caller:  dev,
			need:    Requirement{Category: approval.CategoryPolicyLock, ResourceType: "Policy"},
			req:     withID,
			summary: workflow.Summary{HasPending: true},
			wantErr: "This action requires approval. A request is pending review.",
			lookups: 1,
		},
		{
			name:    "no request",
			caller:  dev,
			need:    Requirement{Category: approval.CategoryPolicyLock, ResourceType: "Policy"},
			req:     withID,
			wantErr: "This action requires two-person approval. Please request approval first.",
			lookups: 1,
		},
		{
			name:    "custom message",
			caller:  dev,
			need:    PolicyLock(""),
			req:     Request{Params: map[string]string{"policyId": "p-1"}},
			wantErr: "Policy lock requires two-person approval",
			lookups: 1,
		},
		{
			name:    "missing resource id",
			caller:  dev,
			need:    Requirement{Category: approval.CategoryPolicyLock, ResourceType: "Policy"},
			req:     Request{},
			wantErr: "resource id not found",
		},
		{
			name:    "anonymous caller",
			need:    Requirement{Category: approval.CategoryPolicyLock, ResourceType: "Policy"},
			req:     withID,
			wantErr: "Authentication required",
		},
		{
			name:   "admin bypass",
			caller: admin,
			need:   Requirement{Category: approval.CategoryPolicyLock, ResourceType: "Policy", AllowAdminBypass: true},
			req:    withID,
		},
		{
			name:    "bypass is opt in",
			caller:  admin,
			need:    Requirement{Category: approval.CategoryPolicyLock, ResourceType: "Policy"},
			req:     withID,
			wantErr: "This action requires two-person approval. Please request approval first.",
			lookups: 1,
		},
		{
			name:    "bypass needs top tier",
			caller:  actor.Actor{ID: "a", Role: actor.RoleAdmin},
			need:    Requirement{Category: approval.CategoryPolicyLock, ResourceType: "Policy", AllowAdminBypass: true},
			req:     withID,
			wantErr: "This action requires two-person approval. Please request approval first.",
			lookups: 1,
		},
		{
			name:    "security exceptions never bypass",
			caller:  admin,
			need:    Requirement{Category: approval.CategorySecurityException, ResourceType: "SecurityException", AllowAdminBypass: true},
			req:     withID,
			wantErr: "This action requires two-person approval. Please request approval first.",
			lookups: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			checker := &stubChecker{summary: tt.summary}
			g := New(checker, WithLogger(logging.New(logging.DiscardConfig())))

			err := g.Check(context.Background(), tt.caller, tt.need, tt.req)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Check() error = %v", err)
				}
			} else {
				if !errors.Is(err, fault.ErrForbidden) {
					t.Fatalf("Check() error = %v, want ErrForbidden", err)
				}
				if err.Error() != tt.wantErr {
					t.Errorf("Check() message = %q, want %q", err.Error(), tt.wantErr)
				}
			}
			if checker.calls != tt.lookups {
				t.Errorf("HasApproval calls = %d, want %d", checker.calls, tt.lookups)
			}
		})
	}
}

func TestGate_CheckerErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("store offline")
	g := New(&stubChecker{err: boom})

	err := g.Check(context.Background(), dev, Requirement{Category: approval.CategoryADRApproval}, Request{Params: map[string]string{"id": "x"}})
	if !errors.Is(err, boom) {
		t.Errorf("Check() error = %v, want %v", err, boom)
	}
}

func TestRequest_ResourceIDOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  Request
		want string
		ok   bool
	}{
		{"params first", Request{Params: map[string]string{"id": "p"}, Body: map[string]any{"id": "b"}, Query: map[string][]string{"id": {"q"}}}, "p", true},
		{"body second", Request{Body: map[string]any{"id": "b"}, Query: map[string][]string{"id": {"q"}}}, "b", true},
		{"query last", Request{Query: map[string][]string{"id": {"q"}}}, "q", true},
		{"empty values skipped", Request{Params: map[string]string{"id": ""}, Body: map[string]any{"id": ""}, Query: map[string][]string{"id": {"", "q"}}}, "q", true},
		{"numeric body", Request{Body: map[string]any{"id": float64(42)}}, "42", true},
		{"absent", Request{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := tt.req.ResourceID("id")
			if got != tt.want || ok != tt.ok {
				t.Errorf("ResourceID() = %q, %v, want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestShorthands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		req      Requirement
		param    string
		category approval.Category
	}{
		{PolicyLock(""), "policyId", approval.CategoryPolicyLock},
		{ADRApproval(""), "adrId", approval.CategoryADRApproval},
		{DecisionApproval(""), "decisionId", approval.CategoryHighRiskDecision},
		{SecurityException(""), "exceptionId", approval.CategorySecurityException},
		{PolicyLock("pid"), "pid", approval.CategoryPolicyLock},
	}
	for _, tt := range tests {
		if tt.req.ResourceIDParam != tt.param {
			t.Errorf("%s param = %s, want %s", tt.category, tt.req.ResourceIDParam, tt.param)
		}
		if tt.req.Category != tt.category {
			t.Errorf("category = %s, want %s", tt.req.Category, tt.category)
		}
		if tt.req.AllowAdminBypass {
			t.Errorf("%s should not allow bypass by default", tt.category)
		}
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	newServer := func(summary workflow.Summary) (http.Handler, *stubChecker) {
		checker := &stubChecker{summary: summary}
		g := New(checker)
		mux := http.NewServeMux()
		mux.Handle("POST /policies/{policyId}/lock", g.Middleware(PolicyLock(""))(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})))
		mux.Handle("POST /policies/lock", g.Middleware(PolicyLock(""))(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n, _ := io.Copy(io.Discard, r.Body)
				w.Header().Set("X-Body-Length", strconv.FormatInt(n, 10))
				w.WriteHeader(http.StatusNoContent)
			})))
		mux.Handle("POST /adrs/finalize", g.Middleware(ADRApproval(""))(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, err := io.ReadAll(r.Body)
				if err != nil || !strings.Contains(string(body), "adr-9") {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})))
		return mux, checker
	}

	t.Run("approved path param", func(t *testing.T) {
		t.Parallel()
		h, checker := newServer(workflow.Summary{HasApproved: true})
		req := httptest.NewRequest(http.MethodPost, "/policies/p-7/lock", nil)
		req = req.WithContext(WithCaller(req.Context(), dev))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
		if checker.lastID != "p-7" {
			t.Errorf("resource id = %q, want p-7", checker.lastID)
		}
	})

	t.Run("denied", func(t *testing.T) {
		t.Parallel()
		h, _ := newServer(workflow.Summary{HasPending: true})
		req := httptest.NewRequest(http.MethodPost, "/policies/p-7/lock", nil)
		req = req.WithContext(WithCaller(req.Context(), dev))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Policy lock requires two-person approval") {
			t.Errorf("body = %s", rec.Body.String())
		}
	})

	t.Run("body id and body restored", func(t *testing.T) {
		t.Parallel()
		h, checker := newServer(workflow.Summary{HasApproved: true})
		req := httptest.NewRequest(http.MethodPost, "/adrs/finalize", strings.NewReader(`{"adrId":"adr-9"}`))
		req = req.WithContext(WithCaller(req.Context(), dev))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
		if checker.lastID != "adr-9" {
			t.Errorf("resource id = %q, want adr-9", checker.lastID)
		}
	})

	t.Run("large body reaches handler whole", func(t *testing.T) {
		t.Parallel()
		h, checker := newServer(workflow.Summary{HasApproved: true})
		payload := `{"notes":"` + strings.Repeat("x", 2*maxBodyPeek) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/policies/lock?policyId=p-8", strings.NewReader(payload))
		req = req.WithContext(WithCaller(req.Context(), dev))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}
		if checker.lastID != "p-8" {
			t.Errorf("resource id = %q, want p-8", checker.lastID)
		}
		if got := rec.Header().Get("X-Body-Length"); got != strconv.Itoa(len(payload)) {
			t.Errorf("handler read %s bytes, want %d", got, len(payload))
		}
	})

	t.Run("large body without id elsewhere", func(t *testing.T) {
		t.Parallel()
		h, checker := newServer(workflow.Summary{HasApproved: true})
		payload := `{"policyId":"p-9","notes":"` + strings.Repeat("x", 2*maxBodyPeek) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/policies/lock", strings.NewReader(payload))
		req = req.WithContext(WithCaller(req.Context(), dev))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", rec.Code)
		}
		if checker.calls != 0 {
			t.Errorf("checker called %d times", checker.calls)
		}
	})

	t.Run("no caller", func(t *testing.T) {
		t.Parallel()
		h, _ := newServer(workflow.Summary{HasApproved: true})
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/policies/p-7/lock", nil))

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})
}

func TestStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{fault.NotFound("x"), http.StatusNotFound},
		{fault.Forbidden("x"), http.StatusForbidden},
		{fault.InvalidInput("x"), http.StatusBadRequest},
		{fault.InvalidState("x"), http.StatusConflict},
		{fault.InvalidTransition("x"), http.StatusConflict},
		{fault.Expired("x"), http.StatusGone},
		{ErrBodyTooLarge, http.StatusRequestEntityTooLarge},
		{errors.New("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.want {
			t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
