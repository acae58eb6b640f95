// Package api assembles the decision ledger, the approval workflow and the
// approval gate from configuration.
package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/felixgeelhaar/bolt/v3"
	"github.com/jackc/pgx/v5/pgxpool"

	decisionledger "github.com/felixgeelhaar/decision-ledger"
	"github.com/felixgeelhaar/decision-ledger/domain/actor"
	"github.com/felixgeelhaar/decision-ledger/domain/approval"
	"github.com/felixgeelhaar/decision-ledger/domain/audit"
	domainconfig "github.com/felixgeelhaar/decision-ledger/domain/config"
	"github.com/felixgeelhaar/decision-ledger/domain/decision"
	"github.com/felixgeelhaar/decision-ledger/domain/fault"
	"github.com/felixgeelhaar/decision-ledger/domain/notification"
	"github.com/felixgeelhaar/decision-ledger/domain/resource"
	infraaudit "github.com/felixgeelhaar/decision-ledger/infrastructure/audit"
	infraconfig "github.com/felixgeelhaar/decision-ledger/infrastructure/config"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/directory"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/gate"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/ledger"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/logging"
	infranotify "github.com/felixgeelhaar/decision-ledger/infrastructure/notification"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/resilience"
	badgerstore "github.com/felixgeelhaar/decision-ledger/infrastructure/storage/badger"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/storage/memory"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/storage/postgres"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/storage/sqlite"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/telemetry"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/workflow"
)

// Version is reported by telemetry.
var Version = decisionledger.Version

// System is a fully wired ledger deployment.
type System struct {
	Ledger    *ledger.Service
	Workflow  *workflow.Service
	Gate      *gate.Gate
	Directory actor.Directory
	Sessions  resource.SessionStore
	Resources *resource.Registry

	// AuditLog is nil when no configured sink can be queried.
	AuditLog audit.Reader

	Logger    *bolt.Logger
	Telemetry *telemetry.Provider

	expiryWindow time.Duration
	closers      []func(context.Context) error
}

// Option customises New.
type Option func(*options)

type options struct {
	logger    *bolt.Logger
	directory actor.Directory
	notifier  notification.Dispatcher
	traceOut  io.Writer
}

// WithLogger replaces the logger built from configuration.
func WithLogger(l *bolt.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDirectory replaces the configured actor directory.
func WithDirectory(d actor.Directory) Option {
	return func(o *options) { o.directory = d }
}

// WithNotifier replaces the configured notification dispatcher.
func WithNotifier(n notification.Dispatcher) Option {
	return func(o *options) { o.notifier = n }
}

// WithTraceOutput sets where the stdout span exporter writes.
func WithTraceOutput(w io.Writer) Option {
	return func(o *options) { o.traceOut = w }
}

// stores bundles one persistence backend.
type stores struct {
	decisions decision.Store
	approvals approval.Store
	sessions  resource.SessionStore

	// audit is the backend's own audit table, nil for memory.
	audit audit.Sink
}

// New builds a System. The caller must Close it.
func New(ctx context.Context, cfg *domainconfig.LedgerConfig, opts ...Option) (sys *System, err error) {
	if cfg == nil {
		cfg = domainconfig.Default()
	}
	if errs := domainconfig.NewValidator().Validate(cfg); errs.HasErrors() {
		return nil, fmt.Errorf("%w: %w", domainconfig.ErrValidationFailed, errs)
	}
	built, err := infraconfig.NewBuilder(cfg).Build()
	if err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	sys = &System{expiryWindow: built.ExpiryWarningWindow}
	defer func() {
		if err != nil {
			_ = sys.Close(context.WithoutCancel(ctx))
		}
	}()

	sys.Logger = o.logger
	if sys.Logger == nil {
		sys.Logger = logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: os.Stderr})
	}

	sys.Telemetry, err = telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: Version,
		Exporter:       telemetry.ExporterType(cfg.Telemetry.Exporter),
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Writer:         o.traceOut,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	sys.onClose(sys.Telemetry.Shutdown)
	tracer, metrics := sys.Telemetry.Tracer(), sys.Telemetry.Metrics()

	st, err := sys.openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sys.Sessions = st.sessions

	sink, mirror, err := sys.auditSink(cfg, st)
	if err != nil {
		return nil, err
	}
	recorderOpts := []infraaudit.RecorderOption{
		infraaudit.WithPolicy(infraaudit.Policy(cfg.Audit.FailurePolicy)),
		infraaudit.WithBoundary(boundary("audit", cfg.Resilience)),
		infraaudit.WithLogger(sys.Logger),
		infraaudit.WithMetrics(metrics),
	}
	recorder := infraaudit.NewRecorder(sink, recorderOpts...)

	sys.Resources = resource.NewRegistry(resource.WithStrict(cfg.Resources.Strict))
	sys.Resources.Register(resource.TypeSession, st.sessions)

	sys.Ledger, err = ledger.New(st.decisions, sys.Resources, recorder,
		ledger.WithLogger(sys.Logger),
		ledger.WithTracer(tracer),
		ledger.WithMetrics(metrics),
		ledger.WithTransactionalAudit(st.audit != nil),
		ledger.WithAuditMirror(mirrorRecorder(mirror, recorderOpts)),
	)
	if err != nil {
		return nil, err
	}
	sys.Resources.Register(resource.TypeDecision, decisionChecker(sys.Ledger))

	sys.Directory = o.directory
	if sys.Directory == nil {
		sys.Directory = sys.buildDirectory(ctx, cfg, built.Actors)
	}

	notifier := o.notifier
	if notifier == nil {
		notifier = sys.buildNotifier(cfg, built.Endpoints)
	}
	notifier = infranotify.NewInstrumented(notifier, boundary("notification", cfg.Resilience), metrics)

	sys.Workflow, err = workflow.New(st.approvals, sys.Directory, recorder,
		workflow.WithRules(built.Rules),
		workflow.WithResources(sys.Resources),
		workflow.WithNotifier(notifier),
		workflow.WithLedger(sys.Ledger),
		workflow.WithDirectoryBoundary(boundary("directory", cfg.Resilience)),
		workflow.WithDefaultExpiration(built.DefaultExpiration),
		workflow.WithLogger(sys.Logger),
		workflow.WithTracer(tracer),
		workflow.WithMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}

	sys.Gate = gate.New(sys.Workflow,
		gate.WithLogger(sys.Logger),
		gate.WithTracer(tracer),
		gate.WithMetrics(metrics),
	)

	logging.NewEvent(sys.Logger.Info()).
		Add(logging.Component("api")).
		Add(logging.Str("storage", cfg.Storage.Backend)).
		Add(logging.Str("audit_policy", cfg.Audit.FailurePolicy)).
		Msg("decision ledger ready")
	return sys, nil
}

// RegisterSession records a session decisions can be filed under.
func (s *System) RegisterSession(ctx context.Context, id string) error {
	if id == "" {
		return fault.InvalidInput("session id is required")
	}
	return s.Sessions.Register(ctx, id)
}

// Sweep warns requesters of requests expiring within the configured window.
func (s *System) Sweep(ctx context.Context) (int, error) {
	return s.Workflow.NotifyExpiringSoon(ctx, s.expiryWindow)
}

// Close releases every resource New acquired, newest first.
func (s *System) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *System) onClose(fn func(context.Context) error) {
	s.closers = append(s.closers, fn)
}

func (s *System) onCloseErr(c io.Closer) {
	s.onClose(func(context.Context) error { return c.Close() })
}

func (s *System) openStores(ctx context.Context, cfg *domainconfig.LedgerConfig) (stores, error) {
	switch cfg.Storage.Backend {
	case "", domainconfig.BackendMemory:
		return stores{
			decisions: memory.NewDecisionStore(),
			approvals: memory.NewApprovalStore(),
			sessions:  memory.NewSessionStore(),
		}, nil

	case domainconfig.BackendSQLite:
		var sopts []sqlite.Option
		if dsn := cfg.Storage.SQLite.DSN; dsn != "" {
			sopts = append(sopts, sqlite.WithDSN(dsn))
		}
		db, err := sqlite.Open(ctx, sqlite.DefaultConfig(), sopts...)
		if err != nil {
			return stores{}, err
		}
		s.onCloseErr(db)
		return sqliteStores(db), nil

	case domainconfig.BackendPostgres:
		pcfg := postgres.DefaultConfig()
		pcfg.DSN = cfg.Storage.Postgres.DSN
		if cfg.Storage.Postgres.Schema != "" {
			pcfg.Schema = cfg.Storage.Postgres.Schema
		}
		if cfg.Storage.Postgres.MaxConns > 0 {
			pcfg.MaxConns = cfg.Storage.Postgres.MaxConns
		}
		pool, err := postgres.NewPool(ctx, pcfg)
		if err != nil {
			return stores{}, err
		}
		s.onClose(func(context.Context) error { pool.Close(); return nil })
		if err := postgres.Migrate(ctx, pool, pcfg.Schema); err != nil {
			return stores{}, err
		}
		return postgresStores(pool, pcfg.Schema), nil
	}
	return stores{}, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
}

func sqliteStores(db *sql.DB) stores {
	return stores{
		decisions: sqlite.NewDecisionStore(db, ""),
		approvals: sqlite.NewApprovalStore(db, ""),
		sessions:  sqlite.NewSessionStore(db, ""),
		audit:     sqlite.NewAuditSink(db, ""),
	}
}

func postgresStores(pool *pgxpool.Pool, schema string) stores {
	return stores{
		decisions: postgres.NewDecisionStore(pool, schema),
		approvals: postgres.NewApprovalStore(pool, schema),
		sessions:  postgres.NewSessionStore(pool, schema),
		audit:     postgres.NewAuditSink(pool, schema),
	}
}

// auditSink assembles the configured sinks. It returns the sink every
// recorder write goes to and, when the backend keeps its own audit table,
// the extra sinks that mirror entries the ledger writes inside transactions.
func (s *System) auditSink(cfg *domainconfig.LedgerConfig, st stores) (audit.Sink, audit.Sink, error) {
	var mirrors []audit.Sink
	if cfg.Audit.BadgerDir != "" {
		b, err := badgerstore.NewAuditSink(badgerstore.DefaultConfig(),
			badgerstore.WithDir(cfg.Audit.BadgerDir),
			badgerstore.WithLogger(s.Logger),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("badger audit sink: %w", err)
		}
		s.onCloseErr(b)
		mirrors = append(mirrors, b)
	}
	if cfg.Audit.File != "" {
		f, err := infraaudit.OpenJSONFile(cfg.Audit.File)
		if err != nil {
			return nil, nil, fmt.Errorf("audit file: %w", err)
		}
		s.onCloseErr(f)
		mirrors = append(mirrors, f)
	}

	var primary audit.Sink = infraaudit.NewMemorySink()
	if st.audit != nil {
		primary = st.audit
	}
	if r, ok := primary.(audit.Reader); ok {
		s.AuditLog = r
	}
	if len(mirrors) == 0 {
		return primary, nil, nil
	}

	all := infraaudit.NewMultiSink(append([]audit.Sink{primary}, mirrors...)...)
	if st.audit == nil {
		return all, nil, nil
	}
	return all, infraaudit.NewMultiSink(mirrors...), nil
}

func (s *System) buildDirectory(ctx context.Context, cfg *domainconfig.LedgerConfig, actors []actor.Actor) actor.Directory {
	static := directory.NewStatic(actors...)
	rc := cfg.Directory.Redis
	if !rc.Enabled {
		return static
	}

	cache := directory.NewRedisCache(static,
		directory.WithAddress(rc.Addr),
		directory.WithPassword(rc.Password),
		directory.WithDB(rc.DB),
		directory.WithKeyPrefix(rc.KeyPrefix),
		directory.WithTTL(rc.TTL.Duration()),
	).WithLogger(s.Logger)
	s.onCloseErr(cache)

	if err := cache.Ping(ctx); err != nil {
		logging.NewEvent(s.Logger.Warn()).
			Add(logging.Component("directory")).
			Add(logging.ErrorField(err)).
			Msg("actor cache unreachable, lookups fall through")
	}
	return cache
}

func (s *System) buildNotifier(cfg *domainconfig.LedgerConfig, endpoints []notification.Endpoint) notification.Dispatcher {
	if !cfg.Notification.Enabled || len(endpoints) == 0 {
		return infranotify.NewLogDispatcher(s.Logger)
	}

	sc := infranotify.DefaultSenderConfig()
	if r := cfg.Notification.Retry; r.MaxAttempts > 0 {
		sc.MaxAttempts = r.MaxAttempts
		if r.InitialDelay > 0 {
			sc.InitialDelay = r.InitialDelay.Duration()
		}
		if r.Multiplier > 0 {
			sc.Multiplier = r.Multiplier
		}
	}
	if cb := cfg.Resilience.CircuitBreaker; cb.Threshold > 0 {
		sc.CircuitBreakerThreshold = cb.Threshold
		sc.CircuitBreakerTimeout = cb.Timeout.Duration()
	}

	webhooks := infranotify.NewWebhookDispatcher(infranotify.NewSender(sc), s.Logger, endpoints...)
	s.onCloseErr(webhooks)
	return webhooks
}

// mirrorRecorder returns nil when there is nothing to mirror.
func mirrorRecorder(sink audit.Sink, opts []infraaudit.RecorderOption) *infraaudit.Recorder {
	if sink == nil {
		return nil
	}
	return infraaudit.NewRecorder(sink, opts...)
}

func boundary(name string, rc domainconfig.ResilienceConfig) *resilience.Boundary {
	var opts []resilience.Option
	if rc.Timeout > 0 {
		opts = append(opts, resilience.WithTimeout(rc.Timeout.Duration()))
	}
	if rc.CircuitBreaker.Threshold > 0 {
		opts = append(opts, resilience.WithCircuitBreakerThreshold(rc.CircuitBreaker.Threshold))
	}
	if rc.CircuitBreaker.Timeout > 0 {
		opts = append(opts, resilience.WithCircuitBreakerTimeout(rc.CircuitBreaker.Timeout.Duration()))
	}
	return resilience.NewWithOptions(name, opts...)
}

// decisionChecker reports whether a DecisionLog exists.
func decisionChecker(l *ledger.Service) resource.Checker {
	return resource.CheckerFunc(func(ctx context.Context, id string) (bool, error) {
		_, err := l.Get(ctx, id)
		if errors.Is(err, fault.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	})
}
