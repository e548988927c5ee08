// Package service holds the stock ledger and the components built on it.
//
// Ledger is the only writer of allocations and ledger entries. Catalog
// manages product and depot lifecycles, AlertEvaluator derives alerts from
// projections and Reconciler applies import batches row by row.
package service

import (
	"context"

	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
)

// EventPublisher receives notifications after a unit of work commits.
// Implementations must not block and must swallow their own failures.
type EventPublisher interface {
	PublishDepotCreated(ctx context.Context, d *domain.Depot)
	PublishTransactionCreated(ctx context.Context, t *domain.Transaction)
	PublishDepotStockUpdated(ctx context.Context, d *domain.Depot)
	PublishProductDepotAssigned(ctx context.Context, a domain.Allocation)
	PublishAlertCreated(ctx context.Context, a *domain.Alert)
}

type noopPublisher struct{}

func (noopPublisher) PublishDepotCreated(context.Context, *domain.Depot)             {}
func (noopPublisher) PublishTransactionCreated(context.Context, *domain.Transaction) {}
func (noopPublisher) PublishDepotStockUpdated(context.Context, *domain.Depot)        {}
func (noopPublisher) PublishProductDepotAssigned(context.Context, domain.Allocation) {}
func (noopPublisher) PublishAlertCreated(context.Context, *domain.Alert)             {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
