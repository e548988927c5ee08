package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

const productColumns = `id, tenant_id, sku, name, category, supplier, price, reorder_point,
	stock, status, created_at, updated_at`

// GetProduct gets a product by ID
func (t *pgTx) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND tenant_id = $2`
	if err := sqlx.GetContext(ctx, t.ext(ctx), &p, query, id, t.tenantID); err != nil {
		return nil, database.Classify(err, "product")
	}
	return &p, nil
}

// GetProductBySKU gets a product by its tenant-unique SKU
func (t *pgTx) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	var p domain.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE tenant_id = $1 AND sku = $2`
	if err := sqlx.GetContext(ctx, t.ext(ctx), &p, query, t.tenantID, sku); err != nil {
		return nil, database.Classify(err, "product")
	}
	return &p, nil
}

// CreateProduct creates a new product
func (t *pgTx) CreateProduct(ctx context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.TenantID = t.tenantID

	query := `
		INSERT INTO products (
			id, tenant_id, sku, name, category, supplier, price, reorder_point, stock, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := sqlx.GetContext(ctx, t.ext(ctx), p, query,
		p.ID, p.TenantID, p.SKU, p.Name, p.Category, p.Supplier, p.Price,
		p.ReorderPoint, p.Stock, p.Status,
	)
	return database.Classify(err, "product")
}

// UpdateProduct updates descriptive fields and the stored projection. A
// zero UpdatedAt is stamped with the database clock.
func (t *pgTx) UpdateProduct(ctx context.Context, p *domain.Product) error {
	query := `
		UPDATE products SET
			name = $3, category = $4, supplier = $5, price = $6, reorder_point = $7,
			stock = $8, status = $9, updated_at = COALESCE($10, NOW())
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at
	`

	err := sqlx.GetContext(ctx, t.ext(ctx), &p.UpdatedAt, query,
		p.ID, t.tenantID, p.Name, p.Category, p.Supplier, p.Price, p.ReorderPoint,
		p.Stock, p.Status, stampOrNull(p.UpdatedAt),
	)
	return database.Classify(err, "product")
}

// DeleteProduct deletes a product row. Allocations must be removed first.
func (t *pgTx) DeleteProduct(ctx context.Context, id string) error {
	result, err := t.ext(ctx).ExecContext(ctx, `DELETE FROM products WHERE id = $1 AND tenant_id = $2`, id, t.tenantID)
	if err != nil {
		return database.Classify(err, "product")
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("product")
	}
	return nil
}

// ListProducts lists products with filtering and pagination
func (t *pgTx) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int64, error) {
	where := []string{"tenant_id = $1"}
	args := []interface{}{t.tenantID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d)", len(args), len(args)))
	}

	clause := strings.Join(where, " AND ")

	var total int64
	if err := sqlx.GetContext(ctx, t.ext(ctx), &total, `SELECT COUNT(*) FROM products WHERE `+clause, args...); err != nil {
		return nil, 0, database.Classify(err, "product")
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE ` + clause + ` ORDER BY name, sku`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	products := []*domain.Product{}
	if err := sqlx.SelectContext(ctx, t.ext(ctx), &products, query, args...); err != nil {
		return nil, 0, database.Classify(err, "product")
	}
	return products, total, nil
}
