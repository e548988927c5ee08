package repository

import (
	"context"
	"time"

	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
)

// Store is the persistence boundary of the ledger.
type Store interface {
	// Atomic runs fn as one unit of work for a tenant. Entities named in the
	// scope are locked, in canonical order, before fn runs; operations whose
	// scopes overlap are linearized. Writes become visible only if fn
	// returns nil; a cancelled ctx before commit discards everything.
	Atomic(ctx context.Context, tenantID string, scope domain.LockScope, fn func(ctx context.Context, tx Tx) error) error

	// View runs read-only fn against a tenant's data without locking.
	View(ctx context.Context, tenantID string, fn func(ctx context.Context, tx Tx) error) error

	// ListTenants returns every tenant owning at least one product or depot.
	ListTenants(ctx context.Context) ([]string, error)
}

// Tx is the tenant-scoped view of the store inside a unit of work. Every
// lookup of an entity owned by another tenant reports NotFound.
type Tx interface {
	ProductStore
	DepotStore
	AllocationStore
	TransactionStore
	AlertStore
}

// ProductStore persists products and their stored projection
type ProductStore interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error)
	// CreateProduct fails with Conflict when the SKU is taken
	CreateProduct(ctx context.Context, p *domain.Product) error
	// UpdateProduct writes descriptive fields and the stored projection
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int64, error)
}

// DepotStore persists depots and their stored projection
type DepotStore interface {
	GetDepot(ctx context.Context, id string) (*domain.Depot, error)
	ListDepots(ctx context.Context) ([]*domain.Depot, error)
	CreateDepot(ctx context.Context, d *domain.Depot) error
	UpdateDepot(ctx context.Context, d *domain.Depot) error
	DeleteDepot(ctx context.Context, id string) error
}

// AllocationStore is the single (product, depot) -> quantity relation
type AllocationStore interface {
	// GetAllocation returns the allocation and whether it exists
	GetAllocation(ctx context.Context, productID, depotID string) (domain.Allocation, bool, error)
	// SetAllocation upserts the quantity; zero removes the row
	SetAllocation(ctx context.Context, productID, depotID string, quantity int64, at time.Time) error
	ProductAllocations(ctx context.Context, productID string) ([]domain.Allocation, error)
	DepotAllocations(ctx context.Context, depotID string) ([]domain.Allocation, error)
}

// TransactionStore is the append-only ledger
type TransactionStore interface {
	// AppendTransaction fails with Conflict when the idempotency key was used
	AppendTransaction(ctx context.Context, t *domain.Transaction) error
	TransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error)
}

// AlertStore persists alerts
type AlertStore interface {
	// CreateAlertIfAbsent inserts a unless an unresolved alert occupies the
	// same (target, type). It reports whether a was inserted.
	CreateAlertIfAbsent(ctx context.Context, a *domain.Alert) (bool, error)
	GetAlert(ctx context.Context, id string) (*domain.Alert, error)
	ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, int64, error)
	MarkAlertRead(ctx context.Context, id string) error
	MarkAllAlertsRead(ctx context.Context) (int64, error)
	// ResolveAlert fails with Conflict when the alert is already resolved
	ResolveAlert(ctx context.Context, id, resolvedBy string, notes *string, at time.Time) error
	DeleteAlertsForTarget(ctx context.Context, targetID string) error
}
