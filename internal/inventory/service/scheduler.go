package service

import (
	"context"
	"time"

	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/tenant"
)

// AlertScheduler runs alert checks periodically across all tenants.
// Tenants are the ones owning at least one product or depot.
type AlertScheduler struct {
	evaluator *AlertEvaluator
	store     repository.Store
	interval  time.Duration
	logger    *logger.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewAlertScheduler creates a new alert scheduler
func NewAlertScheduler(evaluator *AlertEvaluator, store repository.Store, interval time.Duration, log *logger.Logger) *AlertScheduler {
	return &AlertScheduler{
		evaluator: evaluator,
		store:     store,
		interval:  interval,
		logger:    log.WithComponent("scheduler"),
	}
}

// Start starts the scheduler in a background goroutine.
// A non-positive interval disables it.
func (s *AlertScheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info().Msg("alert scheduler disabled")
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.logger.Info().Dur("interval", s.interval).Msg("alert scheduler started")

		// Run an initial cycle immediately
		s.RunCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("alert scheduler stopped")
				return
			case <-ticker.C:
				s.RunCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine and waits for the running cycle
func (s *AlertScheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// RunCycle checks every tenant once and returns how many alerts were created.
// A failing tenant is logged and the cycle moves on.
func (s *AlertScheduler) RunCycle(ctx context.Context) int {
	start := time.Now()

	tenantIDs, err := s.store.ListTenants(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list tenants")
		return 0
	}

	created := 0
	for _, tenantID := range tenantIDs {
		if ctx.Err() != nil {
			break
		}
		alerts, err := s.evaluator.RunAllChecks(tenant.WithTenantID(ctx, tenantID), tenantID)
		if err != nil {
			s.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("alert checks failed for tenant")
		}
		created += len(alerts)
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("tenant_count", len(tenantIDs)).
		Int("created", created).
		Msg("alert check cycle completed")
	return created
}
