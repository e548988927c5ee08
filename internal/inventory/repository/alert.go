package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

const alertColumns = `id, tenant_id, type, category, severity, title, description, target_kind,
	target_id, metadata, is_read, is_resolved, resolved_at, resolved_by, resolution_notes, created_at`

// CreateAlertIfAbsent inserts an alert unless its (target, type) slot is taken
func (t *pgTx) CreateAlertIfAbsent(ctx context.Context, a *domain.Alert) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.TenantID = t.tenantID
	if a.Metadata == nil {
		a.Metadata = domain.Metadata{}
	}

	query := `
		INSERT INTO alerts (
			id, tenant_id, type, category, severity, title, description,
			target_kind, target_id, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, target_id, type) WHERE NOT is_resolved AND target_id IS NOT NULL
		DO NOTHING
		RETURNING created_at
	`

	err := t.ext(ctx).QueryRowxContext(ctx, query,
		a.ID, a.TenantID, a.Type, a.Category, a.Severity, a.Title, a.Description,
		a.TargetKind, a.TargetID, a.Metadata,
	).Scan(&a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// An unresolved alert already holds the slot
		return false, nil
	}
	if err != nil {
		return false, database.Classify(err, "alert")
	}
	return true, nil
}

// GetAlert gets an alert by ID
func (t *pgTx) GetAlert(ctx context.Context, id string) (*domain.Alert, error) {
	var a domain.Alert
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1 AND tenant_id = $2`
	if err := sqlx.GetContext(ctx, t.ext(ctx), &a, query, id, t.tenantID); err != nil {
		return nil, database.Classify(err, "alert")
	}
	return &a, nil
}

// ListAlerts lists alerts with filtering, critical first then newest
func (t *pgTx) ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, int64, error) {
	where := []string{"tenant_id = $1"}
	args := []interface{}{t.tenantID}

	if filter.Unresolved {
		where = append(where, "NOT is_resolved")
	}
	if filter.Unread {
		where = append(where, "NOT is_read")
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.TargetID != "" {
		args = append(args, filter.TargetID)
		where = append(where, fmt.Sprintf("target_id = $%d", len(args)))
	}

	clause := strings.Join(where, " AND ")

	var total int64
	if err := sqlx.GetContext(ctx, t.ext(ctx), &total, `SELECT COUNT(*) FROM alerts WHERE `+clause, args...); err != nil {
		return nil, 0, database.Classify(err, "alert")
	}

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE ` + clause +
		` ORDER BY CASE category WHEN 'critical' THEN 0 WHEN 'warning' THEN 1 ELSE 2 END, created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	alerts := []*domain.Alert{}
	if err := sqlx.SelectContext(ctx, t.ext(ctx), &alerts, query, args...); err != nil {
		return nil, 0, database.Classify(err, "alert")
	}
	return alerts, total, nil
}

// MarkAlertRead marks an alert as read
func (t *pgTx) MarkAlertRead(ctx context.Context, id string) error {
	result, err := t.ext(ctx).ExecContext(ctx,
		`UPDATE alerts SET is_read = TRUE WHERE id = $1 AND tenant_id = $2`, id, t.tenantID)
	if err != nil {
		return database.Classify(err, "alert")
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("alert")
	}
	return nil
}

// MarkAllAlertsRead marks every unread alert as read
func (t *pgTx) MarkAllAlertsRead(ctx context.Context) (int64, error) {
	result, err := t.ext(ctx).ExecContext(ctx,
		`UPDATE alerts SET is_read = TRUE WHERE tenant_id = $1 AND NOT is_read`, t.tenantID)
	if err != nil {
		return 0, database.Classify(err, "alert")
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// ResolveAlert closes an alert
func (t *pgTx) ResolveAlert(ctx context.Context, id, resolvedBy string, notes *string, at time.Time) error {
	query := `
		UPDATE alerts
		SET is_resolved = TRUE, is_read = TRUE, resolved_at = $3, resolved_by = $4, resolution_notes = $5
		WHERE id = $1 AND tenant_id = $2 AND NOT is_resolved
	`

	result, err := t.ext(ctx).ExecContext(ctx, query, id, t.tenantID, at, resolvedBy, notes)
	if err != nil {
		return database.Classify(err, "alert")
	}

	affected, _ := result.RowsAffected()
	if affected > 0 {
		return nil
	}

	// Distinguish a missing alert from one already closed
	if _, err := t.GetAlert(ctx, id); err != nil {
		return err
	}
	return errors.Conflict("alert is already resolved")
}

// DeleteAlertsForTarget purges every alert about a product or depot
func (t *pgTx) DeleteAlertsForTarget(ctx context.Context, targetID string) error {
	_, err := t.ext(ctx).ExecContext(ctx,
		`DELETE FROM alerts WHERE tenant_id = $1 AND target_id = $2`, t.tenantID, targetID)
	return database.Classify(err, "alert")
}
