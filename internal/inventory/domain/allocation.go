package domain

import (
	"sort"
	"time"
)

// Allocation is the quantity of one product held in one depot. The
// (product, depot) pair is unique; a pair with zero quantity does not exist.
type Allocation struct {
	TenantID    string    `db:"tenant_id" json:"-"`
	ProductID   string    `db:"product_id" json:"product_id"`
	DepotID     string    `db:"depot_id" json:"depot_id"`
	Quantity    int64     `db:"quantity" json:"quantity"`
	LastUpdated time.Time `db:"last_updated" json:"last_updated"`
}

// AllocationKey identifies an allocation
type AllocationKey struct {
	ProductID string
	DepotID   string
}

// Key returns the allocation's identity
func (a Allocation) Key() AllocationKey {
	return AllocationKey{ProductID: a.ProductID, DepotID: a.DepotID}
}

// SumQuantity returns the total quantity held across allocations
func SumQuantity(allocations []Allocation) int64 {
	var total int64
	for _, a := range allocations {
		total += a.Quantity
	}
	return total
}

// SortAllocations orders allocations by depot then product for stable output
func SortAllocations(allocations []Allocation) {
	sort.Slice(allocations, func(i, j int) bool {
		if allocations[i].DepotID != allocations[j].DepotID {
			return allocations[i].DepotID < allocations[j].DepotID
		}
		return allocations[i].ProductID < allocations[j].ProductID
	})
}
