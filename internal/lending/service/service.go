// internal/lending/service/service.go
package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"loan-workers/internal/audit"
	"loan-workers/internal/common/config"
	"loan-workers/internal/common/errors"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/common/metrics"
	"loan-workers/internal/common/observability"
	"loan-workers/internal/lending/transition"
	"loan-workers/internal/models"
	"loan-workers/internal/notify"
	"loan-workers/internal/permission"
	"loan-workers/internal/store"
)

// DefaultModule is the permission module loan operations are checked against.
const DefaultModule = "LOAN"

// Dependencies are the collaborators of the loan service. Dispatcher, Audit
// and Observability may be nil.
type Dependencies struct {
	Store         store.Store
	Permissions   permission.Checker
	Dispatcher    *notify.Dispatcher
	Audit         audit.Tracker
	Observability *observability.Observability
}

// Service exposes the loan application operations. Every operation runs its
// writes in one store transaction; notification dispatch and auditing happen
// after commit and never fail the operation.
type Service struct {
	store       store.Store
	permissions permission.Checker
	engine      *transition.Engine
	dispatcher  *notify.Dispatcher
	audit       audit.Tracker
	obs         *observability.Observability
	cfg         config.LoanConfig
	module      string
	logger      logger.Logger
}

func New(deps Dependencies, cfg config.LoanConfig, log logger.Logger) *Service {
	module := cfg.PermissionModule
	if module == "" {
		module = DefaultModule
	}
	if cfg.FormType == "" {
		cfg.FormType = "Loan Application"
	}
	tracker := deps.Audit
	if tracker == nil {
		tracker = audit.NewLogTracker(log)
	}
	log = log.WithFields(map[string]interface{}{"component": "loan-service"})
	return &Service{
		store:       deps.Store,
		permissions: deps.Permissions,
		engine:      transition.NewEngine(deps.Permissions, module, cfg.AllowSameStatus, log),
		dispatcher:  deps.Dispatcher,
		audit:       tracker,
		obs:         deps.Observability,
		cfg:         cfg,
		module:      module,
		logger:      log,
	}
}

func (s *Service) require(ctx context.Context, actor string, c permission.Capability) error {
	return permission.Require(ctx, s.permissions, actor, s.module, c)
}

// begin opens the span of one operation. The returned func records the
// outcome and must be called with the operation's final error.
func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := s.obs.StartSpan(ctx, "loan."+op, attrs...)
	start := time.Now()
	return ctx, func(err error) {
		kind := ""
		if err != nil {
			kind = string(errors.KindOf(err))
			s.logger.Warn("loan operation failed", map[string]interface{}{
				"operation": op,
				"code":      string(errors.CodeOf(err)),
				"error":     err.Error(),
			})
		}
		metrics.LoanOperations.WithLabelValues(op, metrics.Outcome(kind)).Inc()
		s.logger.Debug("loan operation finished", map[string]interface{}{
			"operation":  op,
			"durationMs": time.Since(start).Milliseconds(),
		})
		observability.EndSpan(span, err)
	}
}

// afterCommit delivers notifications and records the audit entry.
func (s *Service) afterCommit(ctx context.Context, notes []models.Notification, entry models.AuditEntry) {
	if err := s.dispatcher.Dispatch(ctx, notes); err != nil {
		s.logger.Warn("notification dispatch failed", map[string]interface{}{"error": err.Error()})
	}
	s.track(ctx, entry)
}

func (s *Service) track(ctx context.Context, entry models.AuditEntry) {
	if err := s.audit.Track(ctx, entry); err != nil {
		s.logger.Warn("audit tracking failed", map[string]interface{}{"event": entry.Event, "error": err.Error()})
	}
}

// normalize guarantees the typed error contract of the operations.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsStandard(err); ok {
		return err
	}
	return errors.WrapStore("transaction", err)
}
