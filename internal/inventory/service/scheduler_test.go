package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertScheduler_RunCycleCoversEveryTenant(t *testing.T) {
	env := newTestEnv(t)
	fixtures := testutil.NewFixtureFactory()
	env.store.Seed("tenant-a", []*domain.Product{fixtures.Product()}, nil, nil)
	env.store.Seed("tenant-b", []*domain.Product{fixtures.Product(), fixtures.Product()}, nil, nil)

	scheduler := service.NewAlertScheduler(env.alerts, env.store, time.Hour, logger.Nop())

	assert.Equal(t, 3, scheduler.RunCycle(context.Background()))
	assert.Equal(t, 0, scheduler.RunCycle(context.Background()))

	alerts, total, err := env.alerts.List(context.Background(), "tenant-b", domain.AlertFilter{Unresolved: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, a := range alerts {
		assert.Equal(t, "tenant-b", a.TenantID)
		assert.Equal(t, domain.AlertOutOfStock, a.Type)
	}
}

func TestAlertScheduler_StartStop(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct()

	scheduler := service.NewAlertScheduler(env.alerts, env.store, time.Hour, logger.Nop())
	scheduler.Start(context.Background())

	require.Eventually(t, func() bool {
		alerts, _, err := env.alerts.List(context.Background(), tenantID, domain.AlertFilter{})
		return err == nil && len(alerts) == 1
	}, time.Second, 10*time.Millisecond)

	scheduler.Stop()
}

func TestAlertScheduler_DisabledWithoutInterval(t *testing.T) {
	env := newTestEnv(t)
	scheduler := service.NewAlertScheduler(env.alerts, env.store, 0, logger.Nop())

	scheduler.Start(context.Background())
	scheduler.Stop()
}
