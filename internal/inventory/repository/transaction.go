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

const transactionColumns = `id, tenant_id, product_id, product_name, product_sku, type, quantity,
	from_depot_id, to_depot_id, previous_stock, new_stock, reason, notes, performed_by,
	idempotency_key, timestamp`

// AppendTransaction appends a ledger entry
func (t *pgTx) AppendTransaction(ctx context.Context, txn *domain.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	txn.TenantID = t.tenantID

	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := t.ext(ctx).ExecContext(ctx, query,
		txn.ID, txn.TenantID, txn.ProductID, txn.ProductName, txn.ProductSKU, txn.Type, txn.Quantity,
		txn.FromDepotID, txn.ToDepotID, txn.PreviousStock, txn.NewStock, txn.Reason, txn.Notes,
		txn.PerformedBy, txn.IdempotencyKey, txn.Timestamp,
	)
	if database.IsUniqueViolation(err, "idempotency") {
		return errors.Conflict("a transaction with this idempotency key already exists")
	}
	return database.Classify(err, "transaction")
}

// TransactionByIdempotencyKey finds the entry recorded under an idempotency key
func (t *pgTx) TransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	var txn domain.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE tenant_id = $1 AND idempotency_key = $2`
	if err := sqlx.GetContext(ctx, t.ext(ctx), &txn, query, t.tenantID, key); err != nil {
		return nil, database.Classify(err, "transaction")
	}
	return &txn, nil
}

// ListTransactions lists ledger entries newest first
func (t *pgTx) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	where := []string{"tenant_id = $1"}
	args := []interface{}{t.tenantID}

	if filter.ProductID != "" {
		args = append(args, filter.ProductID)
		where = append(where, fmt.Sprintf("product_id = $%d", len(args)))
	}
	if filter.DepotID != "" {
		args = append(args, filter.DepotID)
		where = append(where, fmt.Sprintf("(from_depot_id = $%d OR to_depot_id = $%d)", len(args), len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("timestamp <= $%d", len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY timestamp DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	txns := []*domain.Transaction{}
	if err := sqlx.SelectContext(ctx, t.ext(ctx), &txns, query, args...); err != nil {
		return nil, database.Classify(err, "transaction")
	}
	return txns, nil
}
