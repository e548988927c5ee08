package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

const depotColumns = `id, tenant_id, name, location, capacity, current_utilization,
	items_stored, status, created_at, updated_at`

// GetDepot gets a depot by ID
func (t *pgTx) GetDepot(ctx context.Context, id string) (*domain.Depot, error) {
	var d domain.Depot
	query := `SELECT ` + depotColumns + ` FROM depots WHERE id = $1 AND tenant_id = $2`
	if err := sqlx.GetContext(ctx, t.ext(ctx), &d, query, id, t.tenantID); err != nil {
		return nil, database.Classify(err, "depot")
	}
	return &d, nil
}

// ListDepots lists the tenant's depots in creation order
func (t *pgTx) ListDepots(ctx context.Context) ([]*domain.Depot, error) {
	depots := []*domain.Depot{}
	query := `SELECT ` + depotColumns + ` FROM depots WHERE tenant_id = $1 ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, t.ext(ctx), &depots, query, t.tenantID); err != nil {
		return nil, database.Classify(err, "depot")
	}
	return depots, nil
}

// CreateDepot creates a new depot
func (t *pgTx) CreateDepot(ctx context.Context, d *domain.Depot) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	d.TenantID = t.tenantID

	query := `
		INSERT INTO depots (
			id, tenant_id, name, location, capacity, current_utilization, items_stored, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := sqlx.GetContext(ctx, t.ext(ctx), d, query,
		d.ID, d.TenantID, d.Name, d.Location, d.Capacity,
		d.CurrentUtilization, d.ItemsStored, d.Status,
	)
	return database.Classify(err, "depot")
}

// UpdateDepot writes the depot's stored projection. Capacity is fixed and a
// zero UpdatedAt is stamped with the database clock.
func (t *pgTx) UpdateDepot(ctx context.Context, d *domain.Depot) error {
	query := `
		UPDATE depots SET
			name = $3, location = $4, current_utilization = $5, items_stored = $6,
			status = $7, updated_at = COALESCE($8, NOW())
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at
	`

	err := sqlx.GetContext(ctx, t.ext(ctx), &d.UpdatedAt, query,
		d.ID, t.tenantID, d.Name, d.Location, d.CurrentUtilization, d.ItemsStored, d.Status, stampOrNull(d.UpdatedAt),
	)
	return database.Classify(err, "depot")
}

// DeleteDepot deletes a depot. The foreign key refuses depots still holding stock.
func (t *pgTx) DeleteDepot(ctx context.Context, id string) error {
	result, err := t.ext(ctx).ExecContext(ctx, `DELETE FROM depots WHERE id = $1 AND tenant_id = $2`, id, t.tenantID)
	if err != nil {
		return database.Classify(err, "depot")
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("depot")
	}
	return nil
}
