package database

import (
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/lib/pq"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	// lock_not_available (55P03), serialization_failure (40001), deadlock_detected (40P01)
	case "55P03", "40001", "40P01":
		return errors.Storage(err)

	default:
		return nil
	}
}

// Classify maps any database error onto the application error taxonomy.
// sql.ErrNoRows and malformed identifiers (22P02) become NotFound for the
// named resource; unknown errors are treated as retryable storage failures.
func Classify(err error, resource string) error {
	if err == nil {
		return nil
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	if stderrors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return errors.NotFound(resource)
	}
	if mapped := MapPQError(err); mapped != nil {
		return mapped
	}
	return errors.Storage(err)
}

// isInvalidText reports an invalid_text_representation error, which an id
// that is not a UUID raises before any row can match
func isInvalidText(err error) bool {
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && pqErr.Code == "22P02"
}

// IsUniqueViolation reports whether err is a unique violation on the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505" && strings.Contains(pqErr.Constraint, constraint)
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_positive"):
		return errors.Validation(map[string]string{
			"quantity": "must be a positive integer",
		})

	case strings.Contains(constraint, "capacity_positive"):
		return errors.Validation(map[string]string{
			"capacity": "must be a positive integer",
		})

	case strings.Contains(constraint, "stock_nonneg"), strings.Contains(constraint, "utilization_nonneg"):
		return errors.InvariantViolation("projection", constraint, "negative value rejected by storage")

	case strings.Contains(constraint, "reorder_point_nonneg"):
		return errors.Validation(map[string]string{
			"reorder_point": "must not be negative",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "sku"):
		return "a product with this SKU already exists"
	case strings.Contains(constraint, "idempotency"):
		return "a transaction with this idempotency key already exists"
	case strings.Contains(constraint, "alerts_open"):
		return "an open alert of this type already exists for the target"
	default:
		return "a record with these values already exists"
	}
}
