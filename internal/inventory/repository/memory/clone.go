package memory

import "github.com/stockflow/stockflow-backend/internal/inventory/domain"

// Committed state is never handed out; readers and writers get copies.

func cloneProduct(p *domain.Product) *domain.Product {
	c := *p
	c.Allocations = nil
	return &c
}

func cloneDepot(d *domain.Depot) *domain.Depot {
	c := *d
	c.Allocations = nil
	return &c
}

func cloneTransaction(t *domain.Transaction) *domain.Transaction {
	c := *t
	c.FromDepotID = copyString(t.FromDepotID)
	c.ToDepotID = copyString(t.ToDepotID)
	c.Notes = copyString(t.Notes)
	c.IdempotencyKey = copyString(t.IdempotencyKey)
	return &c
}

func cloneAlert(a *domain.Alert) *domain.Alert {
	c := *a
	if a.TargetKind != nil {
		kind := *a.TargetKind
		c.TargetKind = &kind
	}
	c.TargetID = copyString(a.TargetID)
	c.ResolvedBy = copyString(a.ResolvedBy)
	c.ResolutionNotes = copyString(a.ResolutionNotes)
	if a.ResolvedAt != nil {
		at := *a.ResolvedAt
		c.ResolvedAt = &at
	}
	c.Metadata = make(domain.Metadata, len(a.Metadata))
	for k, v := range a.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
