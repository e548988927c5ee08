package service

import (
	"context"
	"math"
	"time"

	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// movement is the state of one ledger operation, loaded under lock.
// Allocation changes go through set so the product and depot views of the
// relation stay identical before they are projected and persisted.
type movement struct {
	tx        repository.Tx
	tenantID  string
	productID string
	at        time.Time

	product       *domain.Product
	productAllocs []domain.Allocation
	previousStock int64

	depots      map[string]*domain.Depot
	depotAllocs map[string][]domain.Allocation
	depotOrder  []string

	assigned []domain.Allocation
}

// load reads and verifies the product and the given depots
func (m *movement) load(ctx context.Context, depotIDs ...string) error {
	p, err := m.tx.GetProduct(ctx, m.productID)
	if err != nil {
		return err
	}
	allocs, err := m.tx.ProductAllocations(ctx, m.productID)
	if err != nil {
		return err
	}
	if err := domain.VerifyProduct(p, allocs); err != nil {
		return err
	}
	m.product = p
	m.productAllocs = allocs
	m.previousStock = p.Stock

	m.depots = make(map[string]*domain.Depot, len(depotIDs))
	m.depotAllocs = make(map[string][]domain.Allocation, len(depotIDs))
	for _, id := range depotIDs {
		d, err := m.tx.GetDepot(ctx, id)
		if err != nil {
			return err
		}
		allocs, err := m.tx.DepotAllocations(ctx, id)
		if err != nil {
			return err
		}
		if err := domain.VerifyDepot(d, allocs); err != nil {
			return err
		}
		m.depots[id] = d
		m.depotAllocs[id] = allocs
		m.depotOrder = append(m.depotOrder, id)
	}
	return nil
}

// quantity returns the product's current allocation in a depot
func (m *movement) quantity(depotID string) int64 {
	for _, a := range m.productAllocs {
		if a.DepotID == depotID {
			return a.Quantity
		}
	}
	return 0
}

// add increases the product's allocation in a loaded depot by qty
func (m *movement) add(ctx context.Context, depotID string, qty int64) error {
	current := m.quantity(depotID)
	if current > math.MaxInt64-qty {
		return errQuantityTooLarge()
	}
	return m.set(ctx, depotID, current+qty)
}

func errQuantityTooLarge() error {
	return errors.Validation(map[string]string{"quantity": "exceeds the largest storable stock"})
}

// set writes the product's allocation in a loaded depot and reprojects both sides
func (m *movement) set(ctx context.Context, depotID string, quantity int64) error {
	depot, ok := m.depots[depotID]
	if !ok {
		return errors.Internal("depot outside the locked scope")
	}
	if quantity < 0 {
		return errors.InvariantViolation("allocation", m.productID+"/"+depotID, "negative quantity")
	}
	if delta := quantity - m.quantity(depotID); delta > 0 &&
		(m.product.Stock > math.MaxInt64-delta || depot.CurrentUtilization > math.MaxInt64-delta) {
		return errQuantityTooLarge()
	}
	if err := m.tx.SetAllocation(ctx, m.productID, depotID, quantity, m.at); err != nil {
		return err
	}

	existed := m.quantity(depotID) > 0
	next := domain.Allocation{
		TenantID:    m.tenantID,
		ProductID:   m.productID,
		DepotID:     depotID,
		Quantity:    quantity,
		LastUpdated: m.at,
	}
	m.productAllocs = replaceAllocation(m.productAllocs, next, func(a domain.Allocation) bool { return a.DepotID == depotID })
	m.depotAllocs[depotID] = replaceAllocation(m.depotAllocs[depotID], next, func(a domain.Allocation) bool { return a.ProductID == m.productID })

	m.product.Project(m.productAllocs)
	depot.Project(m.depotAllocs[depotID])

	if !existed && quantity > 0 {
		m.assigned = append(m.assigned, next)
	}
	return nil
}

// record persists both projections and appends the ledger entry
func (m *movement) record(ctx context.Context, txn *domain.Transaction, key string) (*domain.Transaction, error) {
	m.product.UpdatedAt = m.at
	if err := m.tx.UpdateProduct(ctx, m.product); err != nil {
		return nil, err
	}
	for _, id := range m.depotOrder {
		d := m.depots[id]
		d.UpdatedAt = m.at
		if err := m.tx.UpdateDepot(ctx, d); err != nil {
			return nil, err
		}
	}

	txn.TenantID = m.tenantID
	txn.ProductID = m.product.ID
	txn.ProductName = m.product.Name
	txn.ProductSKU = m.product.SKU
	txn.PreviousStock = m.previousStock
	txn.NewStock = m.product.Stock
	txn.Timestamp = m.at
	if key != "" {
		txn.IdempotencyKey = domain.StringPtr(key)
	}
	if err := m.tx.AppendTransaction(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// replaceAllocation swaps the entry matching same for next, dropping it
// when next is empty. The result is a new sorted slice.
func replaceAllocation(allocs []domain.Allocation, next domain.Allocation, same func(domain.Allocation) bool) []domain.Allocation {
	out := make([]domain.Allocation, 0, len(allocs)+1)
	for _, a := range allocs {
		if !same(a) {
			out = append(out, a)
		}
	}
	if next.Quantity > 0 {
		out = append(out, next)
	}
	domain.SortAllocations(out)
	return out
}
