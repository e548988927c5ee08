package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus is the stock level classification of a product
type ProductStatus string

const (
	ProductOutOfStock ProductStatus = "out-of-stock"
	ProductLowStock   ProductStatus = "low-stock"
	ProductInStock    ProductStatus = "in-stock"
	ProductOverstock  ProductStatus = "overstock"
)

// Defaults applied to products created without the field
const (
	DefaultCategory     = "Uncategorized"
	DefaultSupplier     = "Unknown"
	DefaultReorderPoint = int64(10)
)

// OverstockFactor is the multiple of the reorder point above which a product is overstocked
const OverstockFactor = 3

// Product is a stocked item. Stock and Status are stored projections of the
// allocation relation; Allocations is the by-product view, filled on read.
type Product struct {
	ID           string          `db:"id" json:"id"`
	TenantID     string          `db:"tenant_id" json:"tenant_id"`
	SKU          string          `db:"sku" json:"sku"`
	Name         string          `db:"name" json:"name"`
	Category     string          `db:"category" json:"category"`
	Supplier     string          `db:"supplier" json:"supplier"`
	Price        decimal.Decimal `db:"price" json:"price"`
	ReorderPoint int64           `db:"reorder_point" json:"reorder_point"`
	Stock        int64           `db:"stock" json:"stock"`
	Status       ProductStatus   `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`

	Allocations []Allocation `db:"-" json:"allocations"`
}

// ApplyDefaults fills descriptive fields left empty
func (p *Product) ApplyDefaults() {
	if p.Category == "" {
		p.Category = DefaultCategory
	}
	if p.Supplier == "" {
		p.Supplier = DefaultSupplier
	}
}

// Project recomputes the stored projection from the product's allocations
func (p *Product) Project(allocations []Allocation) {
	proj := ProjectProduct(allocations, p.ReorderPoint)
	p.Stock = proj.Stock
	p.Status = proj.Status
	p.Allocations = allocations
}

// Summary is the compact product view returned by ledger operations
func (p *Product) Summary() ProductSummary {
	return ProductSummary{ID: p.ID, SKU: p.SKU, Stock: p.Stock, Status: p.Status}
}

// ProductSummary is {id, stock, status} plus the SKU for display
type ProductSummary struct {
	ID     string        `json:"id"`
	SKU    string        `json:"sku"`
	Stock  int64         `json:"stock"`
	Status ProductStatus `json:"status"`
}

// ProductFilter narrows product listings
type ProductFilter struct {
	Status   ProductStatus
	Category string
	Search   string
	Limit    int
	Offset   int
}
