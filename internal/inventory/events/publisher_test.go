package events_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/events"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
	"github.com/stockflow/stockflow-backend/pkg/tenant"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tenantCapture struct {
	tenants []string
}

func (c *tenantCapture) Publish(ctx context.Context, eventType string, data interface{}) error {
	id, _ := tenant.TenantID(ctx)
	c.tenants = append(c.tenants, id)
	return nil
}

func TestPublishTransactionCreated(t *testing.T) {
	sink := testutil.NewMockPublisher()
	p := events.NewWithSink(sink, logger.Nop())

	from, to := "d1", "d2"
	p.PublishTransactionCreated(context.Background(), &domain.Transaction{
		ID:            "t1",
		TenantID:      "acme",
		ProductID:     "p1",
		ProductSKU:    "SKU-1",
		Type:          domain.TransactionTransfer,
		Quantity:      4,
		FromDepotID:   &from,
		ToDepotID:     &to,
		PreviousStock: 10,
		NewStock:      10,
		PerformedBy:   "ops",
		Timestamp:     time.Now(),
	})

	payloads := sink.EventsOfType(messaging.EventTransactionCreated)
	require.Len(t, payloads, 1)
	evt, ok := payloads[0].(messaging.TransactionCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, "transfer", evt.Type)
	assert.Equal(t, "d1", evt.FromDepotID)
	assert.Equal(t, "d2", evt.ToDepotID)
	assert.Equal(t, int64(10), evt.NewStock)
}

func TestPublishAlertCreated(t *testing.T) {
	sink := testutil.NewMockPublisher()
	p := events.NewWithSink(sink, logger.Nop())

	a := domain.NewAlert("acme", domain.AlertLowStock, domain.TargetProduct, "p1", "low", nil)
	a.ID = "a1"
	p.PublishAlertCreated(context.Background(), a)

	payloads := sink.EventsOfType(messaging.EventAlertCreated)
	require.Len(t, payloads, 1)
	evt := payloads[0].(messaging.AlertCreatedEvent)
	assert.Equal(t, "product", evt.TargetKind)
	assert.Equal(t, "p1", evt.TargetID)
	assert.Equal(t, "warning", evt.Category)
}

func TestPublish_BindsTenantToContext(t *testing.T) {
	sink := &tenantCapture{}
	p := events.NewWithSink(sink, logger.Nop())

	p.PublishDepotCreated(context.Background(), &domain.Depot{ID: "d1", TenantID: "acme", Name: "Main", Capacity: 10})
	p.PublishProductDepotAssigned(context.Background(), domain.Allocation{TenantID: "globex", ProductID: "p", DepotID: "d", Quantity: 1})

	assert.Equal(t, []string{"acme", "globex"}, sink.tenants)
}

func TestPublish_FailuresAreSwallowed(t *testing.T) {
	sink := testutil.NewMockPublisher()
	sink.Err = stderrors.New("broker down")
	p := events.NewWithSink(sink, logger.Nop())

	assert.NotPanics(t, func() {
		p.PublishDepotStockUpdated(context.Background(), &domain.Depot{ID: "d1", TenantID: "acme"})
	})
	sink.AssertNoEventsPublished(t)
}

func TestPublish_NilPublisherIsNoop(t *testing.T) {
	var p *events.LedgerEventPublisher
	assert.NotPanics(t, func() {
		p.PublishDepotCreated(context.Background(), &domain.Depot{ID: "d1"})
	})
}
