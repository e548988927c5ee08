package service

import (
	"context"
	"time"

	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/actor"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// StockInput moves stock into or out of one depot
type StockInput struct {
	ProductID      string  `json:"product_id" validate:"required"`
	DepotID        string  `json:"depot_id" validate:"required"`
	Quantity       int64   `json:"quantity" validate:"gt=0"`
	Reason         string  `json:"reason,omitempty"`
	Notes          *string `json:"notes,omitempty"`
	PerformedBy    string  `json:"performed_by,omitempty"`
	IdempotencyKey string  `json:"-"`

	// OccurredAt stamps the entry with a historical time instead of now
	OccurredAt time.Time `json:"-"`
}

// TransferInput moves stock between two depots of one product
type TransferInput struct {
	ProductID      string  `json:"product_id" validate:"required"`
	FromDepotID    string  `json:"from_depot_id" validate:"required"`
	ToDepotID      string  `json:"to_depot_id" validate:"required"`
	Quantity       int64   `json:"quantity" validate:"gt=0"`
	Reason         string  `json:"reason,omitempty"`
	Notes          *string `json:"notes,omitempty"`
	PerformedBy    string  `json:"performed_by,omitempty"`
	IdempotencyKey string  `json:"-"`
}

// AdjustInput sets an allocation to a counted quantity
type AdjustInput struct {
	ProductID       string  `json:"product_id" validate:"required"`
	DepotID         string  `json:"depot_id" validate:"required"`
	CountedQuantity int64   `json:"counted_quantity" validate:"gte=0"`
	Reason          string  `json:"reason,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	PerformedBy     string  `json:"performed_by,omitempty"`
	IdempotencyKey  string  `json:"-"`
}

// MovementResult is the outcome of a ledger operation
type MovementResult struct {
	Transaction *domain.Transaction   `json:"transaction"`
	Product     domain.ProductSummary `json:"product"`
	// Replayed is set when an idempotency key matched an earlier operation
	Replayed bool `json:"replayed,omitempty"`
}

// Ledger validates and applies stock movements. Each operation locks the
// product and the depots it touches, checks the stored projections against
// the allocation relation, applies the change and appends one ledger entry,
// all in one unit of work.
type Ledger struct {
	store     repository.Store
	alerts    *AlertEvaluator
	publisher EventPublisher
	now       func() time.Time
	logger    *logger.Logger
}

// NewLedger creates a new ledger. alerts and publisher may be nil.
func NewLedger(store repository.Store, alerts *AlertEvaluator, publisher EventPublisher, log *logger.Logger) *Ledger {
	return &Ledger{
		store:     store,
		alerts:    alerts,
		publisher: publisherOrNoop(publisher),
		now:       time.Now,
		logger:    log.WithComponent("ledger"),
	}
}

// SetClock replaces the clock used to stamp ledger entries
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// StockIn adds quantity to the product's allocation in a depot, creating it if absent
func (l *Ledger) StockIn(ctx context.Context, tenantID string, in StockInput) (*MovementResult, error) {
	if err := httputil.Validate(in); err != nil {
		return nil, err
	}

	op := operation{
		tenantID:  tenantID,
		productID: in.ProductID,
		kind:      domain.TransactionStockIn,
		key:       in.IdempotencyKey,
		scope:     domain.ProductScope(in.ProductID, in.DepotID),
		at:        in.OccurredAt,
	}
	return l.run(ctx, op, func(ctx context.Context, m *movement) (*domain.Transaction, error) {
		if err := m.load(ctx, in.DepotID); err != nil {
			return nil, err
		}
		if err := m.add(ctx, in.DepotID, in.Quantity); err != nil {
			return nil, err
		}
		return m.record(ctx, &domain.Transaction{
			Type:        domain.TransactionStockIn,
			Quantity:    in.Quantity,
			ToDepotID:   domain.StringPtr(in.DepotID),
			Reason:      reasonOr(in.Reason, domain.ReasonStockIn),
			Notes:       in.Notes,
			PerformedBy: actor.PerformedBy(ctx, in.PerformedBy),
		}, in.IdempotencyKey)
	})
}

// StockOut removes quantity from the product's allocation in a depot. The
// allocation must hold at least the requested quantity; an allocation
// reaching zero is removed.
func (l *Ledger) StockOut(ctx context.Context, tenantID string, in StockInput) (*MovementResult, error) {
	if err := httputil.Validate(in); err != nil {
		return nil, err
	}

	op := operation{
		tenantID:  tenantID,
		productID: in.ProductID,
		kind:      domain.TransactionStockOut,
		key:       in.IdempotencyKey,
		scope:     domain.ProductScope(in.ProductID, in.DepotID),
		at:        in.OccurredAt,
	}
	return l.run(ctx, op, func(ctx context.Context, m *movement) (*domain.Transaction, error) {
		if err := m.load(ctx, in.DepotID); err != nil {
			return nil, err
		}
		available := m.quantity(in.DepotID)
		if available < in.Quantity {
			return nil, errors.InsufficientStock("Insufficient stock in this depot", in.Quantity, available)
		}
		if err := m.set(ctx, in.DepotID, available-in.Quantity); err != nil {
			return nil, err
		}
		return m.record(ctx, &domain.Transaction{
			Type:        domain.TransactionStockOut,
			Quantity:    in.Quantity,
			FromDepotID: domain.StringPtr(in.DepotID),
			Reason:      reasonOr(in.Reason, domain.ReasonStockOut),
			Notes:       in.Notes,
			PerformedBy: actor.PerformedBy(ctx, in.PerformedBy),
		}, in.IdempotencyKey)
	})
}

// Transfer moves quantity between two depots. The product's total stock is unchanged.
func (l *Ledger) Transfer(ctx context.Context, tenantID string, in TransferInput) (*MovementResult, error) {
	if err := httputil.Validate(in); err != nil {
		return nil, err
	}
	if in.FromDepotID == in.ToDepotID {
		return nil, errors.InvalidOperation("Cannot transfer to the same depot")
	}

	op := operation{
		tenantID:  tenantID,
		productID: in.ProductID,
		kind:      domain.TransactionTransfer,
		key:       in.IdempotencyKey,
		scope:     domain.ProductScope(in.ProductID, in.FromDepotID, in.ToDepotID),
	}
	return l.run(ctx, op, func(ctx context.Context, m *movement) (*domain.Transaction, error) {
		if err := m.load(ctx, in.FromDepotID, in.ToDepotID); err != nil {
			return nil, err
		}
		available := m.quantity(in.FromDepotID)
		if available < in.Quantity {
			return nil, errors.InsufficientStock("Insufficient stock in source depot", in.Quantity, available)
		}
		if err := m.set(ctx, in.FromDepotID, available-in.Quantity); err != nil {
			return nil, err
		}
		if err := m.add(ctx, in.ToDepotID, in.Quantity); err != nil {
			return nil, err
		}
		return m.record(ctx, &domain.Transaction{
			Type:        domain.TransactionTransfer,
			Quantity:    in.Quantity,
			FromDepotID: domain.StringPtr(in.FromDepotID),
			ToDepotID:   domain.StringPtr(in.ToDepotID),
			Reason:      reasonOr(in.Reason, domain.ReasonTransfer),
			Notes:       in.Notes,
			PerformedBy: actor.PerformedBy(ctx, in.PerformedBy),
		}, in.IdempotencyKey)
	})
}

// Adjust sets the product's allocation in a depot to a counted quantity.
// The entry records the absolute difference; a decrease names the depot
// as source, an increase as destination.
func (l *Ledger) Adjust(ctx context.Context, tenantID string, in AdjustInput) (*MovementResult, error) {
	if err := httputil.Validate(in); err != nil {
		return nil, err
	}

	op := operation{
		tenantID:  tenantID,
		productID: in.ProductID,
		kind:      domain.TransactionAdjustment,
		key:       in.IdempotencyKey,
		scope:     domain.ProductScope(in.ProductID, in.DepotID),
	}
	return l.run(ctx, op, func(ctx context.Context, m *movement) (*domain.Transaction, error) {
		if err := m.load(ctx, in.DepotID); err != nil {
			return nil, err
		}
		current := m.quantity(in.DepotID)
		delta := in.CountedQuantity - current
		if delta == 0 {
			return nil, errors.InvalidOperation("Counted quantity matches the recorded allocation")
		}
		if err := m.set(ctx, in.DepotID, in.CountedQuantity); err != nil {
			return nil, err
		}

		txn := &domain.Transaction{
			Type:        domain.TransactionAdjustment,
			Reason:      reasonOr(in.Reason, domain.ReasonAdjustment),
			Notes:       in.Notes,
			PerformedBy: actor.PerformedBy(ctx, in.PerformedBy),
		}
		if delta > 0 {
			txn.Quantity = delta
			txn.ToDepotID = domain.StringPtr(in.DepotID)
		} else {
			txn.Quantity = -delta
			txn.FromDepotID = domain.StringPtr(in.DepotID)
		}
		return m.record(ctx, txn, in.IdempotencyKey)
	})
}

// operation describes one ledger call for run
type operation struct {
	tenantID  string
	productID string
	kind      domain.TransactionType
	key       string
	scope     domain.LockScope
	at        time.Time
}

// run executes apply in a unit of work, handles idempotent replays and
// fires the after-commit side effects.
func (l *Ledger) run(ctx context.Context, op operation, apply func(ctx context.Context, m *movement) (*domain.Transaction, error)) (*MovementResult, error) {
	if op.tenantID == "" {
		return nil, errors.Unauthorized("missing tenant")
	}

	var (
		result *MovementResult
		done   *movement
	)
	err := l.store.Atomic(ctx, op.tenantID, op.scope, func(ctx context.Context, tx repository.Tx) error {
		result, done = nil, nil
		if op.key != "" {
			replay, err := l.replay(ctx, tx, op)
			if err != nil || replay != nil {
				result = replay
				return err
			}
		}

		at := op.at
		if at.IsZero() {
			at = l.now()
		}
		m := &movement{tx: tx, tenantID: op.tenantID, productID: op.productID, at: at.UTC()}
		txn, err := apply(ctx, m)
		if err != nil {
			return err
		}
		result = &MovementResult{Transaction: txn, Product: m.product.Summary()}
		done = m
		return nil
	})

	if err != nil && op.key != "" && errors.Is(err, errors.ErrConflict) {
		// Lost a race with a concurrent request carrying the same key.
		var replay *MovementResult
		viewErr := l.store.View(ctx, op.tenantID, func(ctx context.Context, tx repository.Tx) error {
			var err error
			replay, err = l.replay(ctx, tx, op)
			return err
		})
		if viewErr == nil && replay != nil {
			return replay, nil
		}
	}
	if err != nil {
		l.logger.Debug().Err(err).
			Str("tenant_id", op.tenantID).
			Str("product_id", op.productID).
			Str("type", string(op.kind)).
			Msg("ledger operation rejected")
		return nil, err
	}

	if done != nil {
		l.afterCommit(ctx, done, result.Transaction)
	}
	return result, nil
}

// replay returns the result recorded under op.key, or nil when the key is unused
func (l *Ledger) replay(ctx context.Context, tx repository.Tx, op operation) (*MovementResult, error) {
	prior, err := tx.TransactionByIdempotencyKey(ctx, op.key)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if prior.ProductID != op.productID || prior.Type != op.kind {
		return nil, errors.Conflict("idempotency key was used for a different operation")
	}

	summary := domain.ProductSummary{ID: prior.ProductID, SKU: prior.ProductSKU, Stock: prior.NewStock}
	if p, err := tx.GetProduct(ctx, prior.ProductID); err == nil {
		summary = p.Summary()
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	return &MovementResult{Transaction: prior, Product: summary, Replayed: true}, nil
}

// afterCommit publishes events and evaluates alerts. Failures are logged
// inside the publisher and evaluator and never reach the caller.
func (l *Ledger) afterCommit(ctx context.Context, m *movement, txn *domain.Transaction) {
	l.logger.Info().
		Str("tenant_id", m.tenantID).
		Str("product_id", m.productID).
		Str("transaction_id", txn.ID).
		Str("type", string(txn.Type)).
		Int64("quantity", txn.Quantity).
		Int64("new_stock", txn.NewStock).
		Msg("stock movement recorded")

	l.publisher.PublishTransactionCreated(ctx, txn)
	for _, a := range m.assigned {
		l.publisher.PublishProductDepotAssigned(ctx, a)
	}
	for _, id := range m.depotOrder {
		l.publisher.PublishDepotStockUpdated(ctx, m.depots[id])
	}

	if l.alerts == nil {
		return
	}
	l.alerts.evaluateBestEffort(ctx, m.tenantID, m.productID, m.depotOrder)
}

func reasonOr(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return reason
}
