// Package events publishes ledger notifications after a unit of work has
// committed. Delivery is at-least-once and fire-and-forget: failures are
// logged and never reach the caller.
package events

import (
	"context"

	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
	"github.com/stockflow/stockflow-backend/pkg/tenant"
)

// Sink publishes one typed event. *messaging.Publisher implements it.
type Sink interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// LedgerEventPublisher publishes ledger events. A nil publisher drops events.
type LedgerEventPublisher struct {
	sink   Sink
	logger *logger.Logger
}

// NewLedgerEventPublisher creates a publisher on the given RabbitMQ exchange
func NewLedgerEventPublisher(rmq *messaging.RabbitMQ, exchange string, log *logger.Logger) (*LedgerEventPublisher, error) {
	if exchange == "" {
		exchange = messaging.ExchangeLedgerEvents
	}
	publisher, err := messaging.NewPublisher(rmq, exchange, "inventory-service", log)
	if err != nil {
		return nil, err
	}
	return NewWithSink(publisher, log), nil
}

// NewWithSink creates a publisher over an arbitrary sink
func NewWithSink(sink Sink, log *logger.Logger) *LedgerEventPublisher {
	return &LedgerEventPublisher{sink: sink, logger: log.WithComponent("events")}
}

func (p *LedgerEventPublisher) publish(ctx context.Context, tenantID, eventType string, data interface{}) {
	if p == nil || p.sink == nil {
		return
	}
	ctx = tenant.WithTenantID(ctx, tenantID)
	if err := p.sink.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).
			Str("tenant_id", tenantID).
			Str("event_type", eventType).
			Msg("failed to publish ledger event")
	}
}

// PublishDepotCreated publishes depot:created
func (p *LedgerEventPublisher) PublishDepotCreated(ctx context.Context, d *domain.Depot) {
	p.publish(ctx, d.TenantID, messaging.EventDepotCreated, messaging.DepotCreatedEvent{
		DepotID:  d.ID,
		TenantID: d.TenantID,
		Name:     d.Name,
		Location: d.Location,
		Capacity: d.Capacity,
	})
}

// PublishTransactionCreated publishes transaction:created
func (p *LedgerEventPublisher) PublishTransactionCreated(ctx context.Context, t *domain.Transaction) {
	data := messaging.TransactionCreatedEvent{
		TransactionID: t.ID,
		TenantID:      t.TenantID,
		ProductID:     t.ProductID,
		ProductSKU:    t.ProductSKU,
		Type:          string(t.Type),
		Quantity:      t.Quantity,
		PreviousStock: t.PreviousStock,
		NewStock:      t.NewStock,
		PerformedBy:   t.PerformedBy,
		Timestamp:     t.Timestamp,
	}
	if t.FromDepotID != nil {
		data.FromDepotID = *t.FromDepotID
	}
	if t.ToDepotID != nil {
		data.ToDepotID = *t.ToDepotID
	}
	p.publish(ctx, t.TenantID, messaging.EventTransactionCreated, data)
}

// PublishDepotStockUpdated publishes depot:stock-updated with the depot's projection
func (p *LedgerEventPublisher) PublishDepotStockUpdated(ctx context.Context, d *domain.Depot) {
	p.publish(ctx, d.TenantID, messaging.EventDepotStockUpdated, messaging.DepotStockUpdatedEvent{
		DepotID:            d.ID,
		TenantID:           d.TenantID,
		CurrentUtilization: d.CurrentUtilization,
		Capacity:           d.Capacity,
		ItemsStored:        d.ItemsStored,
		Status:             string(d.Status),
	})
}

// PublishProductDepotAssigned publishes product:depot-assigned
func (p *LedgerEventPublisher) PublishProductDepotAssigned(ctx context.Context, a domain.Allocation) {
	p.publish(ctx, a.TenantID, messaging.EventProductDepotAssigned, messaging.ProductDepotAssignedEvent{
		ProductID: a.ProductID,
		DepotID:   a.DepotID,
		TenantID:  a.TenantID,
		Quantity:  a.Quantity,
	})
}

// PublishAlertCreated publishes alert:created
func (p *LedgerEventPublisher) PublishAlertCreated(ctx context.Context, a *domain.Alert) {
	data := messaging.AlertCreatedEvent{
		AlertID:  a.ID,
		TenantID: a.TenantID,
		Type:     string(a.Type),
		Category: string(a.Category),
		Severity: string(a.Severity),
		Title:    a.Title,
	}
	if a.TargetKind != nil {
		data.TargetKind = string(*a.TargetKind)
	}
	if a.TargetID != nil {
		data.TargetID = *a.TargetID
	}
	p.publish(ctx, a.TenantID, messaging.EventAlertCreated, data)
}
