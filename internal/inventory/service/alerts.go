package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/actor"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// defaultCheckConcurrency bounds RunAllChecks fan-out
const defaultCheckConcurrency = 8

// RaiseInput records an alert detected outside the ledger
type RaiseInput struct {
	Type        domain.AlertType `json:"type" validate:"required,oneof=demand-spike delayed-delivery transfer-failed expiry-warning"`
	ProductID   string           `json:"product_id,omitempty"`
	Description string           `json:"description" validate:"required,max=1000"`
	Metadata    domain.Metadata  `json:"metadata,omitempty"`
}

// ResolveInput closes an alert
type ResolveInput struct {
	ResolvedBy string  `json:"resolved_by,omitempty"`
	Notes      *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// AlertEvaluator derives alerts from stored projections. At most one
// unresolved alert exists per (target, type); evaluating an unchanged
// target again creates nothing. Alerts close only through Resolve.
type AlertEvaluator struct {
	store       repository.Store
	publisher   EventPublisher
	concurrency int
	now         func() time.Time
	logger      *logger.Logger
}

// NewAlertEvaluator creates a new alert evaluator. publisher may be nil.
func NewAlertEvaluator(store repository.Store, publisher EventPublisher, log *logger.Logger) *AlertEvaluator {
	return &AlertEvaluator{
		store:       store,
		publisher:   publisherOrNoop(publisher),
		concurrency: defaultCheckConcurrency,
		now:         time.Now,
		logger:      log.WithComponent("alerts"),
	}
}

// EvaluateProduct creates the alerts the product's current status calls for
func (e *AlertEvaluator) EvaluateProduct(ctx context.Context, tenantID, productID string) ([]*domain.Alert, error) {
	return e.evaluate(ctx, tenantID, domain.ProductScope(productID), func(ctx context.Context, tx repository.Tx) ([]*domain.Alert, error) {
		p, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		return domain.ProductAlerts(p), nil
	})
}

// EvaluateDepot creates the alert the depot's current capacity status calls for
func (e *AlertEvaluator) EvaluateDepot(ctx context.Context, tenantID, depotID string) ([]*domain.Alert, error) {
	return e.evaluate(ctx, tenantID, domain.DepotScope(depotID), func(ctx context.Context, tx repository.Tx) ([]*domain.Alert, error) {
		d, err := tx.GetDepot(ctx, depotID)
		if err != nil {
			return nil, err
		}
		return domain.DepotAlerts(d), nil
	})
}

func (e *AlertEvaluator) evaluate(ctx context.Context, tenantID string, scope domain.LockScope, candidates func(ctx context.Context, tx repository.Tx) ([]*domain.Alert, error)) ([]*domain.Alert, error) {
	var created []*domain.Alert
	err := e.store.Atomic(ctx, tenantID, scope, func(ctx context.Context, tx repository.Tx) error {
		created = nil
		alerts, err := candidates(ctx, tx)
		if err != nil {
			return err
		}
		for _, a := range alerts {
			ok, err := tx.CreateAlertIfAbsent(ctx, a)
			if err != nil {
				return err
			}
			if ok {
				created = append(created, a)
			}
		}
		return nil
	})
	if errors.Is(err, errors.ErrConflict) {
		// A concurrent evaluation took the slot first.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	for _, a := range created {
		e.logger.Info().
			Str("tenant_id", tenantID).
			Str("alert_id", a.ID).
			Str("type", string(a.Type)).
			Str("target_id", *a.TargetID).
			Msg("alert created")
		e.publisher.PublishAlertCreated(ctx, a)
	}
	return created, nil
}

// evaluateBestEffort evaluates a product and depots after a committed
// movement. Failures are logged and dropped.
func (e *AlertEvaluator) evaluateBestEffort(ctx context.Context, tenantID, productID string, depotIDs []string) {
	if productID != "" {
		if _, err := e.EvaluateProduct(ctx, tenantID, productID); err != nil {
			e.logger.Error().Err(err).
				Str("tenant_id", tenantID).
				Str("product_id", productID).
				Msg("product alert evaluation failed")
		}
	}
	for _, id := range depotIDs {
		if _, err := e.EvaluateDepot(ctx, tenantID, id); err != nil {
			e.logger.Error().Err(err).
				Str("tenant_id", tenantID).
				Str("depot_id", id).
				Msg("depot alert evaluation failed")
		}
	}
}

// RunAllChecks evaluates every product and depot of a tenant and returns
// the alerts created. A failing target does not stop the others; the
// first failure is returned after all targets ran.
func (e *AlertEvaluator) RunAllChecks(ctx context.Context, tenantID string) ([]*domain.Alert, error) {
	var (
		productIDs []string
		depotIDs   []string
	)
	err := e.store.View(ctx, tenantID, func(ctx context.Context, tx repository.Tx) error {
		products, _, err := tx.ListProducts(ctx, domain.ProductFilter{})
		if err != nil {
			return err
		}
		for _, p := range products {
			productIDs = append(productIDs, p.ID)
		}
		depots, err := tx.ListDepots(ctx)
		if err != nil {
			return err
		}
		for _, d := range depots {
			depotIDs = append(depotIDs, d.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		created []*domain.Alert
	)
	collect := func(alerts []*domain.Alert) {
		mu.Lock()
		created = append(created, alerts...)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for _, id := range productIDs {
		id := id
		g.Go(func() error {
			alerts, err := e.EvaluateProduct(ctx, tenantID, id)
			if err != nil {
				e.logger.Error().Err(err).Str("tenant_id", tenantID).Str("product_id", id).Msg("product check failed")
				return err
			}
			collect(alerts)
			return nil
		})
	}
	for _, id := range depotIDs {
		id := id
		g.Go(func() error {
			alerts, err := e.EvaluateDepot(ctx, tenantID, id)
			if err != nil {
				e.logger.Error().Err(err).Str("tenant_id", tenantID).Str("depot_id", id).Msg("depot check failed")
				return err
			}
			collect(alerts)
			return nil
		})
	}
	err = g.Wait()

	sort.Slice(created, func(i, j int) bool {
		if *created[i].TargetID != *created[j].TargetID {
			return *created[i].TargetID < *created[j].TargetID
		}
		return created[i].Type < created[j].Type
	})

	e.logger.Info().
		Str("tenant_id", tenantID).
		Int("products", len(productIDs)).
		Int("depots", len(depotIDs)).
		Int("created", len(created)).
		Msg("alert checks completed")
	return created, err
}

// Raise records an externally detected alert. A product-bound alert is
// refused while an unresolved alert of the same type exists for it.
func (e *AlertEvaluator) Raise(ctx context.Context, tenantID string, in RaiseInput) (*domain.Alert, error) {
	if err := httputil.Validate(in); err != nil {
		return nil, err
	}
	rule, ok := domain.RuleFor(in.Type)
	if !ok || !rule.Manual {
		return nil, errors.Validation(map[string]string{"type": "must be a manually raised alert type"})
	}

	scope := domain.LockScope{}
	if in.ProductID != "" {
		scope = domain.ProductScope(in.ProductID)
	}

	a := domain.NewAlert(tenantID, in.Type, rule.Target, in.ProductID, in.Description, in.Metadata)
	err := e.store.Atomic(ctx, tenantID, scope, func(ctx context.Context, tx repository.Tx) error {
		if in.ProductID != "" {
			if _, err := tx.GetProduct(ctx, in.ProductID); err != nil {
				return err
			}
		}
		created, err := tx.CreateAlertIfAbsent(ctx, a)
		if err != nil {
			return err
		}
		if !created {
			return errors.Conflict("an unresolved alert of this type already exists for the product")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publisher.PublishAlertCreated(ctx, a)
	return a, nil
}

// List lists alerts, critical first and newest first within a category
func (e *AlertEvaluator) List(ctx context.Context, tenantID string, filter domain.AlertFilter) ([]*domain.Alert, int64, error) {
	var (
		alerts []*domain.Alert
		total  int64
	)
	err := e.store.View(ctx, tenantID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		alerts, total, err = tx.ListAlerts(ctx, filter)
		return err
	})
	return alerts, total, err
}

// Get returns one alert
func (e *AlertEvaluator) Get(ctx context.Context, tenantID, id string) (*domain.Alert, error) {
	var a *domain.Alert
	err := e.store.View(ctx, tenantID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		a, err = tx.GetAlert(ctx, id)
		return err
	})
	return a, err
}

// MarkRead marks one alert read
func (e *AlertEvaluator) MarkRead(ctx context.Context, tenantID, id string) error {
	return e.store.Atomic(ctx, tenantID, domain.LockScope{}, func(ctx context.Context, tx repository.Tx) error {
		return tx.MarkAlertRead(ctx, id)
	})
}

// MarkAllRead marks every alert of the tenant read and returns how many changed
func (e *AlertEvaluator) MarkAllRead(ctx context.Context, tenantID string) (int64, error) {
	var n int64
	err := e.store.Atomic(ctx, tenantID, domain.LockScope{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		n, err = tx.MarkAllAlertsRead(ctx)
		return err
	})
	return n, err
}

// Resolve closes an alert. Resolving twice is a Conflict.
func (e *AlertEvaluator) Resolve(ctx context.Context, tenantID, id string, in ResolveInput) (*domain.Alert, error) {
	if err := httputil.Validate(in); err != nil {
		return nil, err
	}
	resolvedBy := actor.PerformedBy(ctx, in.ResolvedBy)

	var a *domain.Alert
	err := e.store.Atomic(ctx, tenantID, domain.LockScope{}, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.ResolveAlert(ctx, id, resolvedBy, in.Notes, e.now().UTC()); err != nil {
			return err
		}
		var err error
		a, err = tx.GetAlert(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().Str("tenant_id", tenantID).Str("alert_id", id).Str("resolved_by", resolvedBy).Msg("alert resolved")
	return a, nil
}
