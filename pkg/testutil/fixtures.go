package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
)

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	mu       sync.Mutex
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequence++
	return f.sequence
}

// Product creates an empty product with defaults. Its projection matches
// no allocations.
func (f *FixtureFactory) Product(opts ...func(*domain.Product)) *domain.Product {
	seq := f.nextSeq()
	now := time.Now().UTC()
	p := &domain.Product{
		ID:           uuid.New().String(),
		SKU:          fmt.Sprintf("SKU-%d", seq),
		Name:         fmt.Sprintf("Test Product %d", seq),
		Category:     domain.DefaultCategory,
		Supplier:     domain.DefaultSupplier,
		Price:        decimal.NewFromInt(10),
		ReorderPoint: domain.DefaultReorderPoint,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.Project(nil)
	return p
}

// WithSKU sets the product SKU
func WithSKU(sku string) func(*domain.Product) {
	return func(p *domain.Product) {
		p.SKU = sku
	}
}

// WithName sets the product name
func WithName(name string) func(*domain.Product) {
	return func(p *domain.Product) {
		p.Name = name
	}
}

// WithCategory sets the product category
func WithCategory(category string) func(*domain.Product) {
	return func(p *domain.Product) {
		p.Category = category
	}
}

// WithReorderPoint sets the product reorder point
func WithReorderPoint(rp int64) func(*domain.Product) {
	return func(p *domain.Product) {
		p.ReorderPoint = rp
	}
}

// Depot creates an empty depot with defaults
func (f *FixtureFactory) Depot(opts ...func(*domain.Depot)) *domain.Depot {
	seq := f.nextSeq()
	now := time.Now().UTC()
	d := &domain.Depot{
		ID:        uuid.New().String(),
		Name:      fmt.Sprintf("Depot %d", seq),
		Location:  domain.DefaultLocation,
		Capacity:  100,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.Project(nil)
	return d
}

// WithDepotName sets the depot name
func WithDepotName(name string) func(*domain.Depot) {
	return func(d *domain.Depot) {
		d.Name = name
	}
}

// WithCapacity sets the depot capacity
func WithCapacity(capacity int64) func(*domain.Depot) {
	return func(d *domain.Depot) {
		d.Capacity = capacity
	}
}

// WithLocation sets the depot location
func WithLocation(location string) func(*domain.Depot) {
	return func(d *domain.Depot) {
		d.Location = location
	}
}
