package domain

import (
	"fmt"

	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// ProductProjection is the derived state of a product
type ProductProjection struct {
	Stock  int64
	Status ProductStatus
}

// ProjectProduct derives total stock and status from a product's allocations
func ProjectProduct(allocations []Allocation, reorderPoint int64) ProductProjection {
	stock := SumQuantity(allocations)
	return ProductProjection{Stock: stock, Status: ProductStatusFor(stock, reorderPoint)}
}

// ProductStatusFor classifies a stock level. Overstock is only possible with
// a positive reorder point.
func ProductStatusFor(stock, reorderPoint int64) ProductStatus {
	switch {
	case stock <= 0:
		return ProductOutOfStock
	case stock <= reorderPoint:
		return ProductLowStock
	case reorderPoint > 0 && stock > reorderPoint*OverstockFactor:
		return ProductOverstock
	default:
		return ProductInStock
	}
}

// DepotProjection is the derived state of a depot
type DepotProjection struct {
	CurrentUtilization int64
	ItemsStored        int
	Status             DepotStatus
}

// ProjectDepot derives utilization, entry count and status from a depot's allocations
func ProjectDepot(allocations []Allocation, capacity int64) DepotProjection {
	utilization := SumQuantity(allocations)
	return DepotProjection{
		CurrentUtilization: utilization,
		ItemsStored:        len(allocations),
		Status:             DepotStatusFor(utilization, capacity),
	}
}

// DepotStatusFor classifies utilization against capacity. Integer arithmetic
// keeps the 85% and 95% boundaries exact.
func DepotStatusFor(utilization, capacity int64) DepotStatus {
	if capacity <= 0 {
		return DepotCritical
	}
	switch {
	case utilization*100 >= capacity*DepotCriticalPercent:
		return DepotCritical
	case utilization*100 >= capacity*DepotWarningPercent:
		return DepotWarning
	default:
		return DepotNormal
	}
}

// UtilizationPercent rounds utilization/capacity to the nearest whole percent
func UtilizationPercent(utilization, capacity int64) int64 {
	if capacity <= 0 {
		return 0
	}
	return (utilization*100 + capacity/2) / capacity
}

// VerifyProduct compares a product's stored projection with the projection
// of its allocations. A mismatch is reported, never repaired.
func VerifyProduct(p *Product, allocations []Allocation) error {
	if err := verifyAllocations("product", p.ID, allocations, func(a Allocation) bool { return a.ProductID == p.ID }); err != nil {
		return err
	}
	want := ProjectProduct(allocations, p.ReorderPoint)
	if p.Stock != want.Stock || p.Status != want.Status {
		return errors.InvariantViolation("product", p.ID, fmt.Sprintf(
			"stored stock %d (%s) disagrees with allocations %d (%s)",
			p.Stock, p.Status, want.Stock, want.Status))
	}
	return nil
}

// VerifyDepot compares a depot's stored projection with the projection of
// its allocations.
func VerifyDepot(d *Depot, allocations []Allocation) error {
	if err := verifyAllocations("depot", d.ID, allocations, func(a Allocation) bool { return a.DepotID == d.ID }); err != nil {
		return err
	}
	want := ProjectDepot(allocations, d.Capacity)
	if d.CurrentUtilization != want.CurrentUtilization || d.ItemsStored != want.ItemsStored || d.Status != want.Status {
		return errors.InvariantViolation("depot", d.ID, fmt.Sprintf(
			"stored utilization %d/%d items (%s) disagrees with allocations %d/%d items (%s)",
			d.CurrentUtilization, d.ItemsStored, d.Status,
			want.CurrentUtilization, want.ItemsStored, want.Status))
	}
	return nil
}

func verifyAllocations(entity, id string, allocations []Allocation, owned func(Allocation) bool) error {
	for _, a := range allocations {
		if !owned(a) {
			return errors.InvariantViolation(entity, id, fmt.Sprintf("foreign allocation %s/%s", a.ProductID, a.DepotID))
		}
		if a.Quantity <= 0 {
			return errors.InvariantViolation(entity, id, fmt.Sprintf("non-positive allocation %s/%s = %d", a.ProductID, a.DepotID, a.Quantity))
		}
	}
	return nil
}
