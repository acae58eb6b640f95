package ledger

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	infraaudit "github.com/felixgeelhaar/decision-ledger/infrastructure/audit"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/telemetry"
)

// DefaultMaxChainDepth caps supersession chain traversal.
const DefaultMaxChainDepth = 1024

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *bolt.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer sets the span tracer.
func WithTracer(t *telemetry.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithMaxChainDepth caps how many decisions Chain will visit.
func WithMaxChainDepth(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxChainDepth = n
		}
	}
}

// WithClock overrides the time source used for exports.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithTransactionalAudit writes audit entries through store transactions
// that support it. Enable it when the audit log lives in the decision store.
func WithTransactionalAudit(enabled bool) Option {
	return func(s *Service) {
		s.txAudit = enabled
	}
}

// WithAuditMirror copies transactional audit entries to the sinks behind r
// after the transaction commits. Under the rollback policy a mirror failure
// is returned even though the decision change and its table entry stand.
func WithAuditMirror(r *infraaudit.Recorder) Option {
	return func(s *Service) {
		s.mirror = r
	}
}
