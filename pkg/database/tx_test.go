package database_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T, lockTimeout time.Duration) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return database.Wrap(sqlx.NewDb(sqlDB, "postgres"), logger.Nop(), lockTimeout), mock
}

func TestInTx_CommitsAndBindsTx(t *testing.T) {
	db, mock := newMockDB(t, 2*time.Second)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout = '2000ms'").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE products").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.InTx(context.Background(), func(ctx context.Context) error {
		_, isTx := db.Ext(ctx).(*sqlx.Tx)
		assert.True(t, isTx)
		_, err := db.Ext(ctx).ExecContext(ctx, "UPDATE products SET stock = 1")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t, 0)
	boom := stderrors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := db.InTx(context.Background(), func(ctx context.Context) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_NestedReusesOuter(t *testing.T) {
	db, mock := newMockDB(t, 0)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := db.InTx(context.Background(), func(outer context.Context) error {
		return db.InTx(outer, func(inner context.Context) error {
			assert.Same(t, db.Ext(outer), db.Ext(inner))
			return nil
		})
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExt_WithoutTxReturnsPool(t *testing.T) {
	db, _ := newMockDB(t, 0)
	_, isTx := db.Ext(context.Background()).(*sqlx.Tx)
	assert.False(t, isTx)
}
