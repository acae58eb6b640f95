package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/decision-ledger/domain/audit"
	"github.com/felixgeelhaar/decision-ledger/domain/decision"
	"github.com/felixgeelhaar/decision-ledger/domain/fault"
	"github.com/felixgeelhaar/decision-ledger/domain/resource"
	infraaudit "github.com/felixgeelhaar/decision-ledger/infrastructure/audit"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/ledger"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/logging"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/storage/memory"
)

// failOn fails appends for one action and records everything else.
type failOn struct {
	mu     sync.Mutex
	action audit.Action
	sink   *infraaudit.MemorySink
}

func (f *failOn) Append(ctx context.Context, e audit.Entry) error {
	f.mu.Lock()
	action := f.action
	f.mu.Unlock()
	if e.Action == action {
		return errors.New("audit store unavailable")
	}
	return f.sink.Append(ctx, e)
}

func (f *failOn) set(a audit.Action) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.action = a
}

type fixture struct {
	svc    *ledger.Service
	store  *memory.DecisionStore
	sink   *infraaudit.MemorySink
	failer *failOn
}

func newFixture(t *testing.T, policy infraaudit.Policy, opts ...ledger.Option) *fixture {
	t.Helper()

	store := memory.NewDecisionStore()
	sink := infraaudit.NewMemorySink()
	failer := &failOn{sink: sink}
	logger := logging.New(logging.DiscardConfig())

	registry := resource.NewRegistry()
	registry.Register(resource.TypeSession, memory.NewSessionStore("s1", "s2"))

	recorder := infraaudit.NewRecorder(failer, infraaudit.WithPolicy(policy), infraaudit.WithLogger(logger))
	svc, err := ledger.New(store, registry, recorder, append([]ledger.Option{ledger.WithLogger(logger)}, opts...)...)
	require.NoError(t, err)

	return &fixture{svc: svc, store: store, sink: sink, failer: failer}
}

func (f *fixture) create(t *testing.T, statement string) *decision.Decision {
	t.Helper()
	d, err := f.svc.Create(context.Background(), ledger.CreateInput{SessionID: "s1", Statement: statement, OwnerID: "owner-c"})
	require.NoError(t, err)
	return d
}

func (f *fixture) actions() []audit.Action {
	var out []audit.Action
	for _, e := range f.sink.Entries() {
		out = append(out, e.Action)
	}
	return out
}

func TestCreate(t *testing.T) {
	t.Parallel()
	f := newFixture(t, infraaudit.PolicyRollback)
	ctx := context.Background()

	d := f.create(t, "Adopt event sourcing")
	assert.Equal(t, decision.StatusDraft, d.Status)
	assert.Equal(t, []audit.Action{audit.ActionDecisionCreated}, f.actions())

	_, err := f.svc.Create(ctx, ledger.CreateInput{SessionID: "missing", Statement: "x", OwnerID: "o"})
	assert.ErrorIs(t, err, fault.ErrNotFound)

	_, err = f.svc.Create(ctx, ledger.CreateInput{SessionID: "s1", Statement: "  ", OwnerID: "o"})
	assert.ErrorIs(t, err, fault.ErrInvalidInput)
	assert.Equal(t, 1, f.store.Len())
}

func TestLock_TwiceIsForbidden(t *testing.T) {
	t.Parallel()
	f := newFixture(t, infraaudit.PolicyRollback)
	ctx := context.Background()

	d1 := f.create(t, "Use Postgres")

	locked, err := f.svc.Lock(ctx, d1.ID, "owner-c")
	require.NoError(t, err)
	assert.Equal(t, decision.StatusLocked, locked.Status)

	_, err = f.svc.Lock(ctx, d1.ID, "owner-c")
	require.ErrorIs(t, err, fault.ErrForbidden)
	assert.Contains(t, err.Error(), "already immutable")

	stored, err := f.svc.Get(ctx, d1.ID)
	require.NoError(t, err)
	assert.Equal(t, locked, stored)
	assert.Equal(t, []audit.Action{audit.ActionDecisionCreated, audit.ActionDecisionLocked}, f.actions())
}

func TestUpdateStatus_OnlyLockAllowed(t *testing.T) {
	t.Parallel()
	f := newFixture(t, infraaudit.PolicyRollback)
	ctx := context.Background()

	d := f.create(t, "x")

	_, err := f.svc.UpdateStatus(ctx, d.ID, decision.StatusSuperseded, "owner-c")
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(ctx, d.ID, decision.StatusAmended, "owner-c")
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(ctx, "nope", decision.StatusLocked, "owner-c")
	assert.ErrorIs(t, err, fault.ErrNotFound)

	got, err := f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, decision.StatusDraft, got.Status)
}

func TestLock_AuditFailurePolicy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("rollback", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, infraaudit.PolicyRollback)
		d := f.create(t, "x")
		f.failer.set(audit.ActionDecisionLocked)

		_, err := f.svc.Lock(ctx, d.ID, "owner-c")
		require.Error(t, err)

		got, err := f.svc.Get(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, decision.StatusDraft, got.Status)
	})

	t.Run("log and continue", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, infraaudit.PolicyLogAndContinue)
		d := f.create(t, "x")
		f.failer.set(audit.ActionDecisionLocked)

		locked, err := f.svc.Lock(ctx, d.ID, "owner-c")
		require.NoError(t, err)
		assert.Equal(t, decision.StatusLocked, locked.Status)
	})
}

func TestSupersede_ScenarioAndExport(t *testing.T) {
	t.Parallel()
	f := newFixture(t, infraaudit.PolicyRollback)
	ctx := context.Background()

	d1 := f.create(t, "Monolith first")
	_, err := f.svc.Lock(ctx, d1.ID, "owner-c")
	require.NoError(t, err)

	d2, err := f.svc.Supersede(ctx, ledger.SupersedeInput{OriginalID: d1.ID, Statement: "Split billing out", OwnerID: "owner-c"})
	require.NoError(t, err)
	assert.Equal(t, decision.StatusLocked, d2.Status)
	assert.Equal(t, d1.ID, d2.SupersedesID)
	assert.Equal(t, d1.SessionID, d2.SessionID)

	old, err := f.svc.Get(ctx, d1.ID)
	require.NoError(t, err)
	assert.Equal(t, decision.StatusSuperseded, old.Status)
	assert.Equal(t, d1.Statement, old.Statement)

	export, err := f.svc.ExportForAudit(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, export.TotalDecisions)
	assert.Equal(t, map[string][]string{d1.ID: {d2.ID}}, export.SupersessionChain)
	assert.Equal(t, d1.ID, export.Decisions[0].ID)

	assert.Equal(t, []audit.Action{
		audit.ActionDecisionCreated,
		audit.ActionDecisionLocked,
		audit.ActionDecisionSuperseded,
		audit.ActionDecisionCreatedAsSupersession,
	}, f.actions())

	_, err = f.svc.Supersede(ctx, ledger.SupersedeInput{OriginalID: d1.ID, Statement: "again", OwnerID: "owner-c"})
	assert.ErrorIs(t, err, fault.ErrInvalidState)

	_, err = f.svc.ExportForAudit(ctx, "unknown")
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestSupersede_Preconditions(t *testing.T) {
	t.Parallel()
	f := newFixture(t, infraaudit.PolicyRollback)
	ctx := context.Background()

	_, err := f.svc.Supersede(ctx, ledger.SupersedeInput{OriginalID: "ghost", Statement: "x", OwnerID: "o"})
	assert.ErrorIs(t, err, fault.ErrNotFound)

	draft := f.create(t, "still a draft")
	_, err = f.svc.Supersede(ctx, ledger.SupersedeInput{OriginalID: draft.ID, Statement: "x", OwnerID: "o"})
	assert.ErrorIs(t, err, fault.ErrInvalidState)
}

// A failure after the insert and the status flip must leave neither behind.
func TestSupersede_IsAtomic(t *testing.T) {
	t.Parallel()
	f := newFixture(t, infraaudit.PolicyRollback)
	ctx := context.Background()

	d1 := f.create(t, "v1")
	_, err := f.svc.Lock(ctx, d1.ID, "owner-c")
	require.NoError(t, err)
	before := f.store.Len()

	f.failer.set(audit.ActionDecisionCreatedAsSupersession)
	_, err = f.svc.Supersede(ctx, ledger.SupersedeInput{OriginalID: d1.ID, Statement: "v2", OwnerID: "owner-c"})
	require.Error(t, err)

	assert.Equal(t, before, f.store.Len())
	got, err := f.svc.Get(ctx, d1.ID)
	require.NoError(t, err)
	assert.Equal(t, decision.StatusLocked, got.Status)

	successors, err := f.store.Successors(ctx, d1.ID)
	require.NoError(t, err)
	assert.Empty(t, successors)
}

func TestChain(t *testing.T) {
	t.Parallel()
	f := newFixture(t, infraaudit.PolicyRollback)
	ctx := context.Background()

	d1 := f.create(t, "v1")
	_, err := f.svc.Lock(ctx, d1.ID, "o")
	require.NoError(t, err)
	d2, err := f.svc.Supersede(ctx, ledger.SupersedeInput{OriginalID: d1.ID, Statement: "v2", OwnerID: "o"})
	require.NoError(t, err)
	d3, err := f.svc.Supersede(ctx, ledger.SupersedeInput{OriginalID: d2.ID, Statement: "v3", OwnerID: "o"})
	require.NoError(t, err)

	for _, id := range []string{d1.ID, d2.ID, d3.ID} {
		chain, err := f.svc.Chain(ctx, id)
		require.NoError(t, err)
		require.Len(t, chain, 3)
		assert.Equal(t, []string{d1.ID, d2.ID, d3.ID}, []string{chain[0].ID, chain[1].ID, chain[2].ID})
	}

	_, err = f.svc.Chain(ctx, "ghost")
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestChain_DepthCap(t *testing.T) {
	t.Parallel()
	f := newFixture(t, infraaudit.PolicyRollback, ledger.WithMaxChainDepth(2))
	ctx := context.Background()

	d1 := f.create(t, "v1")
	_, err := f.svc.Lock(ctx, d1.ID, "o")
	require.NoError(t, err)
	d2, err := f.svc.Supersede(ctx, ledger.SupersedeInput{OriginalID: d1.ID, Statement: "v2", OwnerID: "o"})
	require.NoError(t, err)
	_, err = f.svc.Supersede(ctx, ledger.SupersedeInput{OriginalID: d2.ID, Statement: "v3", OwnerID: "o"})
	require.NoError(t, err)

	_, err = f.svc.Chain(ctx, d1.ID)
	assert.ErrorIs(t, err, fault.ErrIntegrity)
}

func TestChain_CycleFailsClosed(t *testing.T) {
	t.Parallel()
	f := newFixture(t, infraaudit.PolicyRollback)
	ctx := context.Background()

	now := time.Now().UTC()
	a := &decision.Decision{ID: "a", SessionID: "s1", Statement: "a", OwnerID: "o", Status: decision.StatusLocked, SupersedesID: "b", CreatedAt: now}
	b := &decision.Decision{ID: "b", SessionID: "s1", Statement: "b", OwnerID: "o", Status: decision.StatusLocked, SupersedesID: "a", CreatedAt: now}
	self := &decision.Decision{ID: "self", SessionID: "s1", Statement: "s", OwnerID: "o", Status: decision.StatusLocked, SupersedesID: "self", CreatedAt: now}
	for _, d := range []*decision.Decision{a, b, self} {
		require.NoError(t, f.store.Insert(ctx, d))
	}

	done := make(chan error, 2)
	go func() {
		_, err := f.svc.Chain(ctx, "a")
		done <- err
	}()
	go func() {
		_, err := f.svc.Chain(ctx, "self")
		done <- err
	}()

	for range 2 {
		select {
		case err := <-done:
			assert.ErrorIs(t, err, fault.ErrIntegrity)
		case <-time.After(5 * time.Second):
			t.Fatal("Chain did not terminate on a cyclic reference")
		}
	}
}

func TestDeleteDraft(t *testing.T) {
	t.Parallel()
	f := newFixture(t, infraaudit.PolicyRollback)
	ctx := context.Background()

	draft := f.create(t, "scratch")
	locked := f.create(t, "keep")
	_, err := f.svc.Lock(ctx, locked.ID, "o")
	require.NoError(t, err)

	err = f.svc.DeleteDraft(ctx, locked.ID, "o")
	assert.ErrorIs(t, err, fault.ErrForbidden)

	require.NoError(t, f.svc.DeleteDraft(ctx, draft.ID, "o"))
	_, err = f.svc.Get(ctx, draft.ID)
	assert.ErrorIs(t, err, fault.ErrNotFound)

	assert.Contains(t, f.actions(), audit.ActionDecisionDeleted)
}

func TestList_NewestFirst(t *testing.T) {
	t.Parallel()
	f := newFixture(t, infraaudit.PolicyRollback)
	ctx := context.Background()

	first := f.create(t, "first")
	second := f.create(t, "second")
	_, err := f.svc.Create(ctx, ledger.CreateInput{SessionID: "s2", Statement: "other", OwnerID: "o"})
	require.NoError(t, err)

	got, err := f.svc.List(ctx, decision.ListFilter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)

	_, err = f.svc.Lock(ctx, first.ID, "o")
	require.NoError(t, err)
	locked, err := f.svc.List(ctx, decision.ListFilter{Status: decision.StatusLocked})
	require.NoError(t, err)
	require.Len(t, locked, 1)
	assert.Equal(t, first.ID, locked[0].ID)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := ledger.New(nil, nil, infraaudit.NewRecorder(infraaudit.NewMemorySink()))
	assert.Error(t, err)
	_, err = ledger.New(memory.NewDecisionStore(), nil, nil)
	assert.Error(t, err)
}
