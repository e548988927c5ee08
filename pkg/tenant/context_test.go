package tenant_test

import (
	"context"
	"testing"

	"github.com/stockflow/stockflow-backend/pkg/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantID(t *testing.T) {
	_, err := tenant.TenantID(context.Background())
	assert.ErrorIs(t, err, tenant.ErrNoTenantInContext)

	ctx := tenant.WithTenantID(context.Background(), " acme ")
	id, err := tenant.TenantID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acme", id)
	assert.Equal(t, "acme", tenant.MustTenantID(ctx))

	assert.Panics(t, func() { tenant.MustTenantID(context.Background()) })
}
