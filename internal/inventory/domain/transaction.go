package domain

import "time"

// TransactionType is the kind of stock movement recorded in the ledger
type TransactionType string

const (
	TransactionStockIn    TransactionType = "stock-in"
	TransactionStockOut   TransactionType = "stock-out"
	TransactionTransfer   TransactionType = "transfer"
	TransactionAdjustment TransactionType = "adjustment"
)

// Reasons recorded when the caller gives none
const (
	ReasonStockIn      = "Stock replenishment"
	ReasonStockOut     = "Sale"
	ReasonTransfer     = "Stock transfer"
	ReasonAdjustment   = "Stock count adjustment"
	ReasonInitialStock = "Initial stock"
	ReasonImport       = "CSV Import"
)

// Valid reports whether t is a known transaction type
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionStockIn, TransactionStockOut, TransactionTransfer, TransactionAdjustment:
		return true
	}
	return false
}

// Transaction is an immutable ledger entry. PreviousStock and NewStock are
// the product's aggregate stock immediately before and after the movement.
type Transaction struct {
	ID             string          `db:"id" json:"id"`
	TenantID       string          `db:"tenant_id" json:"tenant_id"`
	ProductID      string          `db:"product_id" json:"product_id"`
	ProductName    string          `db:"product_name" json:"product_name"`
	ProductSKU     string          `db:"product_sku" json:"product_sku"`
	Type           TransactionType `db:"type" json:"type"`
	Quantity       int64           `db:"quantity" json:"quantity"`
	FromDepotID    *string         `db:"from_depot_id" json:"from_depot_id,omitempty"`
	ToDepotID      *string         `db:"to_depot_id" json:"to_depot_id,omitempty"`
	PreviousStock  int64           `db:"previous_stock" json:"previous_stock"`
	NewStock       int64           `db:"new_stock" json:"new_stock"`
	Reason         string          `db:"reason" json:"reason"`
	Notes          *string         `db:"notes" json:"notes,omitempty"`
	PerformedBy    string          `db:"performed_by" json:"performed_by"`
	IdempotencyKey *string         `db:"idempotency_key" json:"idempotency_key,omitempty"`
	Timestamp      time.Time       `db:"timestamp" json:"timestamp"`
}

// TouchesDepot reports whether the movement involved the depot
func (t *Transaction) TouchesDepot(depotID string) bool {
	return (t.FromDepotID != nil && *t.FromDepotID == depotID) ||
		(t.ToDepotID != nil && *t.ToDepotID == depotID)
}

// TransactionFilter narrows ledger listings. DepotID matches either side of
// a movement.
type TransactionFilter struct {
	ProductID string
	DepotID   string
	Type      TransactionType
	From      *time.Time
	To        *time.Time
	Limit     int
}

// Matches reports whether t passes the filter, ignoring Limit
func (f TransactionFilter) Matches(t *Transaction) bool {
	if f.ProductID != "" && t.ProductID != f.ProductID {
		return false
	}
	if f.DepotID != "" && !t.TouchesDepot(f.DepotID) {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.From != nil && t.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && t.Timestamp.After(*f.To) {
		return false
	}
	return true
}

// StringPtr returns a pointer to s, or nil for the empty string
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
