package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

const allocationColumns = `tenant_id, product_id, depot_id, quantity, last_updated`

// GetAllocation gets the allocation for (product, depot)
func (t *pgTx) GetAllocation(ctx context.Context, productID, depotID string) (domain.Allocation, bool, error) {
	var a domain.Allocation
	query := `SELECT ` + allocationColumns + ` FROM allocations
		WHERE tenant_id = $1 AND product_id = $2 AND depot_id = $3`
	err := sqlx.GetContext(ctx, t.ext(ctx), &a, query, t.tenantID, productID, depotID)
	if err != nil {
		err = database.Classify(err, "allocation")
		if errors.Is(err, errors.ErrNotFound) {
			return domain.Allocation{}, false, nil
		}
		return domain.Allocation{}, false, err
	}
	return a, true, nil
}

// SetAllocation upserts an allocation; a zero quantity deletes the row
func (t *pgTx) SetAllocation(ctx context.Context, productID, depotID string, quantity int64, at time.Time) error {
	if quantity < 0 {
		return errors.InvariantViolation("allocation", productID+"/"+depotID, "negative quantity")
	}

	if quantity == 0 {
		_, err := t.ext(ctx).ExecContext(ctx,
			`DELETE FROM allocations WHERE tenant_id = $1 AND product_id = $2 AND depot_id = $3`,
			t.tenantID, productID, depotID)
		return database.Classify(err, "allocation")
	}

	query := `
		INSERT INTO allocations (tenant_id, product_id, depot_id, quantity, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id, depot_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, last_updated = EXCLUDED.last_updated
	`
	_, err := t.ext(ctx).ExecContext(ctx, query, t.tenantID, productID, depotID, quantity, at)
	return database.Classify(err, "allocation")
}

// ProductAllocations lists the by-product view
func (t *pgTx) ProductAllocations(ctx context.Context, productID string) ([]domain.Allocation, error) {
	allocations := []domain.Allocation{}
	query := `SELECT ` + allocationColumns + ` FROM allocations
		WHERE tenant_id = $1 AND product_id = $2 ORDER BY depot_id`
	if err := sqlx.SelectContext(ctx, t.ext(ctx), &allocations, query, t.tenantID, productID); err != nil {
		return nil, database.Classify(err, "allocation")
	}
	return allocations, nil
}

// DepotAllocations lists the by-depot view
func (t *pgTx) DepotAllocations(ctx context.Context, depotID string) ([]domain.Allocation, error) {
	allocations := []domain.Allocation{}
	query := `SELECT ` + allocationColumns + ` FROM allocations
		WHERE tenant_id = $1 AND depot_id = $2 ORDER BY product_id`
	if err := sqlx.SelectContext(ctx, t.ext(ctx), &allocations, query, t.tenantID, depotID); err != nil {
		return nil, database.Classify(err, "allocation")
	}
	return allocations, nil
}
