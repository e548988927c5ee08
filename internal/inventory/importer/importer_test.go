package importer_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/importer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRows(t *testing.T) {
	input := strings.Join([]string{
		"SKU,Name,Category,Price,reorderPoint,stock,depotName",
		"A-1,Alpha,Books,4.50,5,20,Central",
		"B-1,Bravo,,,,,",
		"C-1,Charlie,Toys,cheap,,1,Central",
		"D-1,Delta",
		"E-1,Echo,Home,1,2,3,North",
	}, "\n")

	rows, failures, err := importer.DecodeRows(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, 1, rows[0].Row)
	assert.Equal(t, "A-1", rows[0].SKU)
	assert.Equal(t, "Books", rows[0].Category)
	require.NotNil(t, rows[0].Price)
	assert.True(t, rows[0].Price.Equal(decimal.RequireFromString("4.5")))
	require.NotNil(t, rows[0].ReorderPoint)
	assert.Equal(t, int64(5), *rows[0].ReorderPoint)
	assert.Equal(t, int64(20), rows[0].Quantity)
	assert.Equal(t, "Central", rows[0].DepotName)

	assert.Equal(t, 2, rows[1].Row)
	assert.Nil(t, rows[1].Price)
	assert.Nil(t, rows[1].ReorderPoint)
	assert.Zero(t, rows[1].Quantity)

	assert.Equal(t, 5, rows[2].Row)

	require.Len(t, failures, 2)
	assert.Equal(t, 3, failures[0].Row)
	assert.Equal(t, "C-1", failures[0].SKU)
	assert.Contains(t, failures[0].Error, "price")
	assert.Equal(t, 4, failures[1].Row)
	assert.Contains(t, failures[1].Error, "expected 7 fields")
}

func TestDecodeRows_EmptyInput(t *testing.T) {
	_, _, err := importer.DecodeRows(strings.NewReader(""))
	assert.ErrorIs(t, err, importer.ErrMissingHeader)

	rows, failures, err := importer.DecodeRows(strings.NewReader("sku,name\n"))
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, failures)
}

func TestDecodeHistory(t *testing.T) {
	input := strings.Join([]string{
		"sku,name,transactionType,transactionQuantity,depotName,transactionDate,transactionReason",
		"A-1,Alpha,Stock-In,10,Central,2026-01-01,",
		"A-1,Alpha,stock-out,4,Central,2026-01-03T08:00:00Z,Sale",
		"A-1,Alpha,stock-out,4,Central,yesterday,Sale",
	}, "\n")

	rows, failures, err := importer.DecodeHistory(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, domain.TransactionStockIn, rows[0].Type)
	assert.Equal(t, int64(10), rows[0].Quantity)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), rows[0].Date)
	assert.Empty(t, rows[0].Reason)
	assert.Equal(t, domain.TransactionStockOut, rows[1].Type)
	assert.Equal(t, time.Date(2026, 1, 3, 8, 0, 0, 0, time.UTC), rows[1].Date)
	assert.Equal(t, "Sale", rows[1].Reason)

	require.Len(t, failures, 1)
	assert.Equal(t, 3, failures[0].Row)
	assert.Contains(t, failures[0].Error, "date")
}
