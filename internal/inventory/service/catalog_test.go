package service_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository/memory"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_CreateProductDefaults(t *testing.T) {
	env := newTestEnv(t)

	p, err := env.catalog.CreateProduct(context.Background(), tenantID, service.CreateProductInput{
		Name:     "USB-C Cable",
		Category: "Electronics",
		Price:    decimal.RequireFromString("9.99"),
	})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^ELEC-\d{8}-[A-Z0-9]{4}$`), p.SKU)
	assert.Equal(t, domain.DefaultSupplier, p.Supplier)
	assert.Equal(t, domain.DefaultReorderPoint, p.ReorderPoint)
	assert.Equal(t, domain.ProductOutOfStock, p.Status)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("9.99")))
	assert.Len(t, env.unresolved(t, p.ID, domain.AlertOutOfStock), 1)
}

func TestCatalog_CreateProductWithInitialStock(t *testing.T) {
	env := newTestEnv(t)
	d := env.seedDepot()
	rp := int64(5)

	p, err := env.catalog.CreateProduct(context.Background(), tenantID, service.CreateProductInput{
		SKU:             "CABLE-1",
		Name:            "Cable",
		ReorderPoint:    &rp,
		InitialDepotID:  d.ID,
		InitialQuantity: 12,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(12), p.Stock)
	assert.Equal(t, domain.ProductInStock, p.Status)
	require.Len(t, p.Allocations, 1)
	assert.Equal(t, d.ID, p.Allocations[0].DepotID)

	txns, err := env.catalog.ListTransactions(context.Background(), tenantID, domain.TransactionFilter{ProductID: p.ID})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, domain.ReasonInitialStock, txns[0].Reason)
	assert.Equal(t, domain.TransactionStockIn, txns[0].Type)

	env.sink.AssertEventPublished(t, messaging.EventProductDepotAssigned)
	env.requireConsistent(t)
}

func TestCatalog_CreateProductErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.catalog.CreateProduct(ctx, tenantID, service.CreateProductInput{SKU: "DUP", Name: "First"})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   service.CreateProductInput
		want error
	}{
		{name: "duplicate sku", in: service.CreateProductInput{SKU: "DUP", Name: "Second"}, want: errors.ErrConflict},
		{name: "missing name", in: service.CreateProductInput{SKU: "X"}, want: errors.ErrValidation},
		{name: "negative price", in: service.CreateProductInput{Name: "X", Price: decimal.NewFromInt(-1)}, want: errors.ErrValidation},
		{name: "initial stock without depot", in: service.CreateProductInput{Name: "X", InitialQuantity: 3}, want: errors.ErrValidation},
		{name: "initial stock into unknown depot", in: service.CreateProductInput{SKU: "Y", Name: "Y", InitialDepotID: "missing", InitialQuantity: 3}, want: errors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.catalog.CreateProduct(ctx, tenantID, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// The failed initial stock-in left no product behind
	_, err = env.catalog.GetProductBySKU(ctx, tenantID, "Y")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCatalog_UpdateProductReprojects(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct(testutil.WithReorderPoint(10))
	d := env.seedDepot()
	env.stockIn(t, p.ID, d.ID, 20)

	rp := int64(25)
	name := "Renamed"
	updated, err := env.catalog.UpdateProduct(context.Background(), tenantID, p.ID, service.UpdateProductInput{Name: &name, ReorderPoint: &rp})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, p.SKU, updated.SKU)
	assert.Equal(t, int64(20), updated.Stock)
	assert.Equal(t, domain.ProductLowStock, updated.Status)
	assert.Len(t, env.unresolved(t, p.ID, domain.AlertLowStock), 1)
}

func TestCatalog_DeleteProduct(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct()
	keep := env.seedProduct()
	d1 := env.seedDepot()
	d2 := env.seedDepot()
	env.stockIn(t, p.ID, d1.ID, 10)
	env.stockIn(t, p.ID, d2.ID, 4)
	env.stockIn(t, keep.ID, d1.ID, 6)
	ctx := context.Background()

	require.NoError(t, env.catalog.DeleteProduct(ctx, tenantID, p.ID))

	_, err := env.catalog.GetProduct(ctx, tenantID, p.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	depot1 := env.depot(t, d1.ID)
	assert.Equal(t, int64(6), depot1.CurrentUtilization)
	assert.Equal(t, 1, depot1.ItemsStored)
	assert.Equal(t, int64(0), env.depot(t, d2.ID).CurrentUtilization)

	assert.Empty(t, env.unresolved(t, p.ID, ""))

	// Ledger history is retained
	txns, err := env.catalog.ListTransactions(ctx, tenantID, domain.TransactionFilter{ProductID: p.ID})
	require.NoError(t, err)
	assert.Len(t, txns, 2)
	env.requireConsistent(t)

	assert.ErrorIs(t, env.catalog.DeleteProduct(ctx, tenantID, p.ID), errors.ErrNotFound)
}

func TestCatalog_Depots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	d, err := env.catalog.CreateDepot(ctx, tenantID, service.CreateDepotInput{Name: "North", Capacity: 500})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultLocation, d.Location)
	assert.Equal(t, domain.DepotNormal, d.Status)
	env.sink.AssertEventPublished(t, messaging.EventDepotCreated)

	_, err = env.catalog.CreateDepot(ctx, tenantID, service.CreateDepotInput{Name: "Broken"})
	assert.ErrorIs(t, err, errors.ErrValidation)

	p := env.seedProduct()
	env.stockIn(t, p.ID, d.ID, 3)
	assert.ErrorIs(t, env.catalog.DeleteDepot(ctx, tenantID, d.ID), errors.ErrInvalidOperation)

	_, err = env.ledger.StockOut(ctx, tenantID, service.StockInput{ProductID: p.ID, DepotID: d.ID, Quantity: 3})
	require.NoError(t, err)
	require.NoError(t, env.catalog.DeleteDepot(ctx, tenantID, d.ID))

	depots, err := env.catalog.ListDepots(ctx, tenantID)
	require.NoError(t, err)
	assert.Empty(t, depots)
}

func TestCatalog_ListTransactions(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct()
	d1 := env.seedDepot()
	d2 := env.seedDepot()
	ctx := context.Background()

	env.stockIn(t, p.ID, d1.ID, 10)
	_, err := env.ledger.Transfer(ctx, tenantID, service.TransferInput{ProductID: p.ID, FromDepotID: d1.ID, ToDepotID: d2.ID, Quantity: 4})
	require.NoError(t, err)
	_, err = env.ledger.StockOut(ctx, tenantID, service.StockInput{ProductID: p.ID, DepotID: d2.ID, Quantity: 1})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter domain.TransactionFilter
		want   int
	}{
		{name: "all", filter: domain.TransactionFilter{}, want: 3},
		{name: "by destination or source depot", filter: domain.TransactionFilter{DepotID: d2.ID}, want: 2},
		{name: "by type", filter: domain.TransactionFilter{Type: domain.TransactionTransfer}, want: 1},
		{name: "limited", filter: domain.TransactionFilter{Limit: 2}, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txns, err := env.catalog.ListTransactions(ctx, tenantID, tt.filter)
			require.NoError(t, err)
			assert.Len(t, txns, tt.want)
		})
	}

	_, err = env.catalog.ListTransactions(ctx, tenantID, domain.TransactionFilter{Type: "refund"})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

// racingStore stocks the product into a fresh depot before every unit of
// work that locks it, so the lock scope computed beforehand is always stale
type racingStore struct {
	*memory.Store
	productID string
	armed     bool
	inject    func()
}

func (s *racingStore) Atomic(ctx context.Context, tenantID string, scope domain.LockScope, fn func(ctx context.Context, tx repository.Tx) error) error {
	if s.armed && scope.HasProduct(s.productID) {
		s.inject()
	}
	return s.Store.Atomic(ctx, tenantID, scope, fn)
}

func TestCatalog_DeleteProductScopeKeepsChanging(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct()
	env.stockIn(t, p.ID, env.seedDepot().ID, 2)

	racing := &racingStore{Store: env.store, productID: p.ID}
	racing.inject = func() {
		env.stockIn(t, p.ID, env.seedDepot().ID, 1)
	}
	log := logger.Nop()
	alerts := service.NewAlertEvaluator(racing, nil, log)
	ledger := service.NewLedger(racing, alerts, nil, log)
	catalog := service.NewCatalog(racing, ledger, alerts, nil, domain.NewSKUGenerator(), 1000, log)

	racing.armed = true
	err := catalog.DeleteProduct(context.Background(), tenantID, p.ID)
	racing.armed = false

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStorage)
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "STORAGE_ERROR", appErr.Code)

	// Nothing was deleted
	assert.Equal(t, p.ID, env.product(t, p.ID).ID)
	env.requireConsistent(t)
}
