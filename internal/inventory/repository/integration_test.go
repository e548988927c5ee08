package repository_test

import (
	"context"
	"flag"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/migrations"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	var err error
	suite, err = testutil.NewIntegrationSuite(ctx, migrations.FS)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}

	code := m.Run()
	suite.Cleanup(ctx)
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

type pgEnv struct {
	tenantID string
	store    *repository.PostgresStore
	ledger   *service.Ledger
	catalog  *service.Catalog
}

func newPGEnv(t *testing.T, name string) *pgEnv {
	t.Helper()
	testutil.SkipIfShort(t)

	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, name)
	log := logger.Nop()

	store := repository.NewPostgresStore(suite.DB, log)
	alerts := service.NewAlertEvaluator(store, nil, log)
	ledger := service.NewLedger(store, alerts, nil, log)
	catalog := service.NewCatalog(store, ledger, alerts, nil, domain.NewSKUGenerator(), 1000, log)
	return &pgEnv{tenantID: tenant.ID, store: store, ledger: ledger, catalog: catalog}
}

func TestPostgres_LedgerRoundTrip(t *testing.T) {
	env := newPGEnv(t, "round-trip")
	ctx := testutil.DefaultTestContext(t)

	d1, err := env.catalog.CreateDepot(ctx, env.tenantID, service.CreateDepotInput{Name: "North", Capacity: 100})
	require.NoError(t, err)
	d2, err := env.catalog.CreateDepot(ctx, env.tenantID, service.CreateDepotInput{Name: "South", Capacity: 100})
	require.NoError(t, err)
	p, err := env.catalog.CreateProduct(ctx, env.tenantID, service.CreateProductInput{
		SKU: "PG-1", Name: "Pallet", InitialDepotID: d1.ID, InitialQuantity: 30,
	})
	require.NoError(t, err)

	_, err = env.ledger.Transfer(ctx, env.tenantID, service.TransferInput{ProductID: p.ID, FromDepotID: d1.ID, ToDepotID: d2.ID, Quantity: 10})
	require.NoError(t, err)

	_, err = env.ledger.StockOut(ctx, env.tenantID, service.StockInput{ProductID: p.ID, DepotID: d2.ID, Quantity: 11})
	assert.ErrorIs(t, err, errors.ErrInsufficientStock)

	got, err := env.catalog.GetProduct(ctx, env.tenantID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), got.Stock)
	require.Len(t, got.Allocations, 2)

	north, err := env.catalog.GetDepot(ctx, env.tenantID, d1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), north.CurrentUtilization)

	txns, err := env.catalog.ListTransactions(ctx, env.tenantID, domain.TransactionFilter{ProductID: p.ID})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, domain.TransactionTransfer, txns[0].Type)
}

func TestPostgres_ConcurrentStockOut(t *testing.T) {
	env := newPGEnv(t, "concurrent")
	ctx := testutil.DefaultTestContext(t)

	d, err := env.catalog.CreateDepot(ctx, env.tenantID, service.CreateDepotInput{Name: "North", Capacity: 1000})
	require.NoError(t, err)
	p, err := env.catalog.CreateProduct(ctx, env.tenantID, service.CreateProductInput{
		SKU: "PG-2", Name: "Crate", InitialDepotID: d.ID, InitialQuantity: 10,
	})
	require.NoError(t, err)

	var (
		wg                 sync.WaitGroup
		mu                 sync.Mutex
		succeeded, refused int
	)
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.ledger.StockOut(ctx, env.tenantID, service.StockInput{ProductID: p.ID, DepotID: d.ID, Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, errors.ErrInsufficientStock):
				refused++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 5, refused)

	got, err := env.catalog.GetProduct(ctx, env.tenantID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Stock)
	assert.Equal(t, domain.ProductOutOfStock, got.Status)
}

func TestPostgres_IdempotentReplay(t *testing.T) {
	env := newPGEnv(t, "idempotent")
	ctx := testutil.DefaultTestContext(t)

	d, err := env.catalog.CreateDepot(ctx, env.tenantID, service.CreateDepotInput{Name: "North", Capacity: 1000})
	require.NoError(t, err)
	p, err := env.catalog.CreateProduct(ctx, env.tenantID, service.CreateProductInput{SKU: "PG-3", Name: "Box"})
	require.NoError(t, err)

	in := service.StockInput{ProductID: p.ID, DepotID: d.ID, Quantity: 4, IdempotencyKey: "delivery-7"}
	first, err := env.ledger.StockIn(ctx, env.tenantID, in)
	require.NoError(t, err)
	second, err := env.ledger.StockIn(ctx, env.tenantID, in)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.Equal(t, int64(4), second.Product.Stock)
}
