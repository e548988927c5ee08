package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// PostgresStore implements Store on PostgreSQL. A unit of work is one
// database transaction; scope locks are row locks taken with SELECT ... FOR UPDATE.
type PostgresStore struct {
	db     *database.DB
	logger *logger.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(db *database.DB, log *logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: log.WithComponent("store")}
}

// Atomic runs fn inside one transaction after locking the scope
func (s *PostgresStore) Atomic(ctx context.Context, tenantID string, scope domain.LockScope, fn func(ctx context.Context, tx Tx) error) error {
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		tx := &pgTx{db: s.db, tenantID: tenantID}
		if err := tx.lock(ctx, scope.Normalized()); err != nil {
			return err
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		// A cancelled request must not commit.
		return ctx.Err()
	})
	return classifyTxErr(err)
}

// View runs fn inside a transaction without taking row locks
func (s *PostgresStore) View(ctx context.Context, tenantID string, fn func(ctx context.Context, tx Tx) error) error {
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		return fn(ctx, &pgTx{db: s.db, tenantID: tenantID})
	})
	return classifyTxErr(err)
}

// ListTenants returns every tenant owning a product or depot
func (s *PostgresStore) ListTenants(ctx context.Context) ([]string, error) {
	var tenants []string
	query := `SELECT tenant_id FROM products UNION SELECT tenant_id FROM depots ORDER BY 1`
	if err := s.db.SelectContext(ctx, &tenants, query); err != nil {
		return nil, database.Classify(err, "tenant")
	}
	return tenants, nil
}

// classifyTxErr maps begin/commit failures and bare driver errors; errors
// already classified by the unit of work pass through.
func classifyTxErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return database.Classify(err, "record")
}

// pgTx is the tenant-scoped view bound to one transaction
type pgTx struct {
	db       *database.DB
	tenantID string
}

var _ Tx = (*pgTx)(nil)

func (t *pgTx) ext(ctx context.Context) sqlx.ExtContext {
	return t.db.Ext(ctx)
}

// lock takes row locks on depots first, then products, each in id order.
// Missing rows are not an error here; the operation's own reads report them.
func (t *pgTx) lock(ctx context.Context, scope domain.LockScope) error {
	if len(scope.DepotIDs) > 0 {
		if err := t.lockRows(ctx, "depots", scope.DepotIDs); err != nil {
			return err
		}
	}
	if len(scope.ProductIDs) > 0 {
		if err := t.lockRows(ctx, "products", scope.ProductIDs); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) lockRows(ctx context.Context, table string, ids []string) error {
	query := fmt.Sprintf(
		`SELECT id FROM %s WHERE tenant_id = $1 AND id = ANY($2::uuid[]) ORDER BY id FOR UPDATE`, table)
	var locked []string
	if err := sqlx.SelectContext(ctx, t.ext(ctx), &locked, query, t.tenantID, pq.Array(ids)); err != nil {
		return database.Classify(err, strings.TrimSuffix(table, "s"))
	}
	return nil
}

// stampOrNull passes a zero time as NULL so the statement falls back to NOW()
func stampOrNull(at time.Time) interface{} {
	if at.IsZero() {
		return nil
	}
	return at
}
