package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mockTenant = "tenant-1"

func newMockStore(t *testing.T, lockTimeout time.Duration) (*repository.PostgresStore, *testutil.MockDB) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })
	log := logger.Nop()
	return repository.NewPostgresStore(database.Wrap(mockDB.DB, log, lockTimeout), log), mockDB
}

func TestAtomic_LocksDepotsBeforeProducts(t *testing.T) {
	store, m := newMockStore(t, 5*time.Second)

	m.ExpectBegin()
	m.ExpectLockTimeout(5000)
	m.ExpectLockRows("depots", mockTenant, "d-1", "d-2")
	m.ExpectLockRows("products", mockTenant, "p-1")
	m.ExpectExec("DELETE FROM allocations").
		WithArgs(mockTenant, "p-1", "d-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectCommit()

	err := store.Atomic(context.Background(), mockTenant, domain.ProductScope("p-1", "d-2", "d-1"),
		func(ctx context.Context, tx repository.Tx) error {
			return tx.SetAllocation(ctx, "p-1", "d-1", 0, time.Now())
		})
	require.NoError(t, err)
	m.ExpectationsWereMet(t)
}

func TestAtomic_RollsBackOnError(t *testing.T) {
	store, m := newMockStore(t, 0)

	m.ExpectBegin()
	m.ExpectRollback()

	err := store.Atomic(context.Background(), mockTenant, domain.LockScope{},
		func(ctx context.Context, tx repository.Tx) error {
			return tx.SetAllocation(ctx, "p-1", "d-1", -1, time.Now())
		})
	assert.ErrorIs(t, err, errors.ErrInvariantViolation)
	m.ExpectationsWereMet(t)
}

func TestAtomic_CancelledContextDoesNotCommit(t *testing.T) {
	store, m := newMockStore(t, 0)
	ctx, cancel := context.WithCancel(context.Background())

	m.ExpectBegin()
	m.ExpectRollback()

	err := store.Atomic(ctx, mockTenant, domain.LockScope{}, func(ctx context.Context, tx repository.Tx) error {
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestView_GetProductNotFound(t *testing.T) {
	store, m := newMockStore(t, 0)

	m.ExpectBegin()
	m.ExpectQuery("FROM products WHERE id = $1 AND tenant_id = $2").
		WithArgs("missing", mockTenant).
		WillReturnRows(testutil.MockRows("id"))
	m.ExpectRollback()

	err := store.View(context.Background(), mockTenant, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.GetProduct(ctx, "missing")
		return err
	})
	assert.ErrorIs(t, err, errors.ErrNotFound)
	m.ExpectationsWereMet(t)
}

func TestView_MalformedIDIsNotFound(t *testing.T) {
	store, m := newMockStore(t, 0)

	m.ExpectBegin()
	m.ExpectQuery("FROM products WHERE id = $1 AND tenant_id = $2").
		WithArgs("not-a-uuid", mockTenant).
		WillReturnError(&pq.Error{Code: "22P02", Message: "invalid input syntax for type uuid"})
	m.ExpectRollback()

	err := store.View(context.Background(), mockTenant, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.GetProduct(ctx, "not-a-uuid")
		return err
	})
	assert.ErrorIs(t, err, errors.ErrNotFound)
	m.ExpectationsWereMet(t)
}

func TestCreateProduct_DuplicateSKU(t *testing.T) {
	store, m := newMockStore(t, 0)

	m.ExpectBegin()
	m.ExpectQuery("INSERT INTO products").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "products_tenant_sku_key"})
	m.ExpectRollback()

	err := store.Atomic(context.Background(), mockTenant, domain.LockScope{}, func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateProduct(ctx, &domain.Product{SKU: "DUP", Name: "Dup"})
	})
	assert.ErrorIs(t, err, errors.ErrConflict)
	m.ExpectationsWereMet(t)
}

func TestAppendTransaction_IdempotencyKeyTaken(t *testing.T) {
	store, m := newMockStore(t, 0)

	m.ExpectBegin()
	m.ExpectExec("INSERT INTO transactions").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "transactions_tenant_idempotency_key"})
	m.ExpectRollback()

	key := "key-1"
	err := store.Atomic(context.Background(), mockTenant, domain.LockScope{}, func(ctx context.Context, tx repository.Tx) error {
		return tx.AppendTransaction(ctx, &domain.Transaction{
			ProductID:      "p-1",
			Type:           domain.TransactionStockIn,
			Quantity:       1,
			IdempotencyKey: &key,
			Timestamp:      time.Now(),
		})
	})
	require.ErrorIs(t, err, errors.ErrConflict)
	assert.Contains(t, err.Error(), "idempotency key")
	m.ExpectationsWereMet(t)
}

func TestCreateAlertIfAbsent(t *testing.T) {
	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		created bool
	}{
		{name: "free slot", rows: testutil.MockRows("created_at").AddRow(time.Now()), created: true},
		{name: "slot taken", rows: testutil.MockRows("created_at"), created: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, m := newMockStore(t, 0)
			m.ExpectBegin()
			m.ExpectQuery("INSERT INTO alerts").WillReturnRows(tt.rows)
			m.ExpectCommit()

			target := "p-1"
			var created bool
			err := store.Atomic(context.Background(), mockTenant, domain.LockScope{}, func(ctx context.Context, tx repository.Tx) error {
				var err error
				created, err = tx.CreateAlertIfAbsent(ctx, &domain.Alert{
					Type:     domain.AlertLowStock,
					TargetID: &target,
				})
				return err
			})
			require.NoError(t, err)
			assert.Equal(t, tt.created, created)
			m.ExpectationsWereMet(t)
		})
	}
}

func TestListTenants(t *testing.T) {
	store, m := newMockStore(t, 0)

	m.ExpectQuery("SELECT tenant_id FROM products UNION SELECT tenant_id FROM depots").
		WillReturnRows(testutil.MockRows("tenant_id").AddRow("tenant-a").AddRow("tenant-b"))

	tenants, err := store.ListTenants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"tenant-a", "tenant-b"}, tenants)
	m.ExpectationsWereMet(t)
}

func TestView_StorageFailure(t *testing.T) {
	store, m := newMockStore(t, 0)

	m.ExpectBegin()
	m.ExpectQuery("FROM depots").WillReturnError(&pq.Error{Code: "55P03"})
	m.ExpectRollback()

	err := store.View(context.Background(), mockTenant, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.ListDepots(ctx)
		return err
	})
	assert.ErrorIs(t, err, errors.ErrStorage)
}
