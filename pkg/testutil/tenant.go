package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stockflow/stockflow-backend/pkg/tenant"
)

// TestTenant represents a tenant created for testing
type TestTenant struct {
	ID   string
	Name string
}

// TenantManager hands out isolated tenant ids and removes their rows.
// Tenants share tables; isolation comes from the tenant_id column.
type TenantManager struct {
	db      *sqlx.DB
	tenants []TestTenant
	mu      sync.Mutex
}

// NewTenantManager creates a new tenant manager for tests
func NewTenantManager(db *sqlx.DB) *TenantManager {
	return &TenantManager{
		db:      db,
		tenants: make([]TestTenant, 0),
	}
}

// CreateTenant returns a tenant with a unique id.
//
// Usage:
//
//	tm := testutil.NewTenantManager(db)
//	acme := tm.CreateTenant("acme")
//	err := store.Atomic(ctx, acme.ID, scope, fn)
func (tm *TenantManager) CreateTenant(name string) *TestTenant {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	t := TestTenant{
		ID:   fmt.Sprintf("%s-%s", name, uuid.New().String()[:8]),
		Name: name,
	}
	tm.tenants = append(tm.tenants, t)
	return &t
}

// tenantTables lists tables in foreign key order for deletion
var tenantTables = []string{"alerts", "transactions", "allocations", "products", "depots"}

func (tm *TenantManager) deleteRows(ctx context.Context, tenantID string) error {
	for _, table := range tenantTables {
		if _, err := tm.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE tenant_id = $1", tenantID); err != nil {
			return fmt.Errorf("failed to delete %s rows: %w", table, err)
		}
	}
	return nil
}

// DropTenant removes every row owned by a tenant
func (tm *TenantManager) DropTenant(ctx context.Context, t *TestTenant) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if err := tm.deleteRows(ctx, t.ID); err != nil {
		return err
	}

	for i, tracked := range tm.tenants {
		if tracked.ID == t.ID {
			tm.tenants = append(tm.tenants[:i], tm.tenants[i+1:]...)
			break
		}
	}

	return nil
}

// Cleanup removes the rows of every tenant created by this manager.
// Call this in TestMain or test cleanup.
func (tm *TenantManager) Cleanup(ctx context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	var lastErr error
	for _, t := range tm.tenants {
		if err := tm.deleteRows(ctx, t.ID); err != nil {
			lastErr = err
		}
	}

	tm.tenants = make([]TestTenant, 0)
	return lastErr
}

// WithTestTenant creates a context carrying the tenant id
func WithTestTenant(ctx context.Context, t *TestTenant) context.Context {
	return tenant.WithTenantID(ctx, t.ID)
}

// TestTenantContext creates a context with a fake tenant for unit tests
// that don't need database isolation.
func TestTenantContext() context.Context {
	return tenant.WithTenantID(context.Background(), "test-tenant-id")
}
