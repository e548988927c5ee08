package httputil_test

import (
	"testing"

	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stockRequest struct {
	DepotID  string `json:"depot_id" validate:"required,uuid"`
	Quantity int64  `json:"quantity" validate:"gt=0"`
}

func TestValidate_ReportsJSONFieldNames(t *testing.T) {
	err := httputil.Validate(stockRequest{DepotID: "nope", Quantity: 0})

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Equal(t, "must be a valid UUID", appErr.Details["depot_id"])
	assert.Equal(t, "must be greater than 0", appErr.Details["quantity"])
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, httputil.Validate(stockRequest{DepotID: "0b0e8a3c-7c2e-4b8a-9d57-4f1c8f0f2f11", Quantity: 3}))
}
