package domain

import "sort"

// LockScope is the set of entities an operation mutates. Stores serialize
// operations whose scopes overlap.
type LockScope struct {
	ProductIDs []string
	DepotIDs   []string
}

// ProductScope locks one product and the given depots
func ProductScope(productID string, depotIDs ...string) LockScope {
	return LockScope{ProductIDs: []string{productID}, DepotIDs: depotIDs}
}

// DepotScope locks depots only
func DepotScope(depotIDs ...string) LockScope {
	return LockScope{DepotIDs: depotIDs}
}

// Normalized returns the scope with ids deduplicated and sorted, empty ids dropped
func (s LockScope) Normalized() LockScope {
	return LockScope{ProductIDs: uniqueSorted(s.ProductIDs), DepotIDs: uniqueSorted(s.DepotIDs)}
}

// Empty reports whether the scope locks nothing
func (s LockScope) Empty() bool {
	return len(s.ProductIDs) == 0 && len(s.DepotIDs) == 0
}

// Keys returns canonical lock keys: all depots, then all products, each
// sorted by id. Every store acquires locks in this order.
func (s LockScope) Keys() []string {
	n := s.Normalized()
	keys := make([]string, 0, len(n.DepotIDs)+len(n.ProductIDs))
	for _, id := range n.DepotIDs {
		keys = append(keys, "depot:"+id)
	}
	for _, id := range n.ProductIDs {
		keys = append(keys, "product:"+id)
	}
	return keys
}

// HasProduct reports whether the product is inside the scope
func (s LockScope) HasProduct(id string) bool {
	return contains(s.ProductIDs, id)
}

// HasDepot reports whether the depot is inside the scope
func (s LockScope) HasDepot(id string) bool {
	return contains(s.DepotIDs, id)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
