package service_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/events"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository/memory"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
	"github.com/stretchr/testify/require"
)

const tenantID = "tenant-1"

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	store      *memory.Store
	sink       *testutil.MockPublisher
	alerts     *service.AlertEvaluator
	ledger     *service.Ledger
	catalog    *service.Catalog
	reconciler *service.Reconciler
	fixtures   *testutil.FixtureFactory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.Nop()

	store := memory.NewWithClock(func() time.Time { return fixedNow })
	sink := testutil.NewMockPublisher()
	publisher := events.NewWithSink(sink, log)

	alerts := service.NewAlertEvaluator(store, publisher, log)
	ledger := service.NewLedger(store, alerts, publisher, log)
	ledger.SetClock(func() time.Time { return fixedNow })
	skus := domain.NewSKUGeneratorWith(func() time.Time { return fixedNow }, rand.New(rand.NewSource(1)))
	catalog := service.NewCatalog(store, ledger, alerts, publisher, skus, 1000, log)
	reconciler := service.NewReconciler(store, catalog, ledger, service.NewDepotPolicy(rand.New(rand.NewSource(7))), service.DefaultDepotDefaults, log)

	return &testEnv{
		store:      store,
		sink:       sink,
		alerts:     alerts,
		ledger:     ledger,
		catalog:    catalog,
		reconciler: reconciler,
		fixtures:   testutil.NewFixtureFactory(),
	}
}

// seedProduct writes an empty product directly into the store
func (e *testEnv) seedProduct(opts ...func(*domain.Product)) *domain.Product {
	p := e.fixtures.Product(opts...)
	e.store.Seed(tenantID, []*domain.Product{p}, nil, nil)
	return p
}

// seedDepot writes an empty depot directly into the store
func (e *testEnv) seedDepot(opts ...func(*domain.Depot)) *domain.Depot {
	d := e.fixtures.Depot(opts...)
	e.store.Seed(tenantID, nil, []*domain.Depot{d}, nil)
	return d
}

func (e *testEnv) stockIn(t *testing.T, productID, depotID string, qty int64) *service.MovementResult {
	t.Helper()
	res, err := e.ledger.StockIn(context.Background(), tenantID, service.StockInput{ProductID: productID, DepotID: depotID, Quantity: qty})
	require.NoError(t, err)
	return res
}

func (e *testEnv) product(t *testing.T, id string) *domain.Product {
	t.Helper()
	p, err := e.catalog.GetProduct(context.Background(), tenantID, id)
	require.NoError(t, err)
	return p
}

func (e *testEnv) depot(t *testing.T, id string) *domain.Depot {
	t.Helper()
	d, err := e.catalog.GetDepot(context.Background(), tenantID, id)
	require.NoError(t, err)
	return d
}

func (e *testEnv) unresolved(t *testing.T, targetID string, alertType domain.AlertType) []*domain.Alert {
	t.Helper()
	alerts, _, err := e.alerts.List(context.Background(), tenantID, domain.AlertFilter{
		Unresolved: true,
		TargetID:   targetID,
		Type:       alertType,
	})
	require.NoError(t, err)
	return alerts
}

// requireConsistent checks every product and depot of the tenant against
// the allocation relation
func (e *testEnv) requireConsistent(t *testing.T) {
	t.Helper()
	err := e.store.View(context.Background(), tenantID, func(ctx context.Context, tx repository.Tx) error {
		products, _, err := tx.ListProducts(ctx, domain.ProductFilter{})
		require.NoError(t, err)
		for _, p := range products {
			allocs, err := tx.ProductAllocations(ctx, p.ID)
			require.NoError(t, err)
			require.NoError(t, domain.VerifyProduct(p, allocs))
			for _, a := range allocs {
				require.Positive(t, a.Quantity)
				mirror, ok, err := tx.GetAllocation(ctx, a.ProductID, a.DepotID)
				require.NoError(t, err)
				require.True(t, ok)
				require.Equal(t, a.Quantity, mirror.Quantity)
			}
		}
		depots, err := tx.ListDepots(ctx)
		require.NoError(t, err)
		for _, d := range depots {
			allocs, err := tx.DepotAllocations(ctx, d.ID)
			require.NoError(t, err)
			require.NoError(t, domain.VerifyDepot(d, allocs))
		}
		return nil
	})
	require.NoError(t, err)
}
