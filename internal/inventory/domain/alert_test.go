package domain_test

import (
	"testing"

	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alertTypes(alerts []*domain.Alert) []domain.AlertType {
	out := make([]domain.AlertType, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Type)
	}
	return out
}

func TestProductAlerts(t *testing.T) {
	tests := []struct {
		name  string
		stock int64
		want  []domain.AlertType
	}{
		{"out of stock", 0, []domain.AlertType{domain.AlertOutOfStock}},
		{"low stock raises reorder point too", 5, []domain.AlertType{domain.AlertLowStock, domain.AlertReorderPoint}},
		{"in stock", 15, nil},
		{"overstock", 31, []domain.AlertType{domain.AlertOverstock}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &domain.Product{ID: "p1", TenantID: "t1", SKU: "SKU-1", Name: "Widget", ReorderPoint: 10}
			p.Stock = tt.stock
			p.Status = domain.ProductStatusFor(tt.stock, p.ReorderPoint)

			got := domain.ProductAlerts(p)

			assert.ElementsMatch(t, tt.want, alertTypes(got))
			for _, a := range got {
				require.NotNil(t, a.TargetID)
				assert.Equal(t, "p1", *a.TargetID)
				assert.Equal(t, domain.TargetProduct, *a.TargetKind)
			}
		})
	}
}

func TestProductAlerts_ReorderMetadata(t *testing.T) {
	p := &domain.Product{ID: "p1", SKU: "SKU-1", Name: "Widget", ReorderPoint: 10, Stock: 4, Status: domain.ProductLowStock}

	for _, a := range domain.ProductAlerts(p) {
		if a.Type == domain.AlertReorderPoint {
			assert.EqualValues(t, 20, a.Metadata["suggestedOrderQty"])
			assert.Equal(t, "Reorder Point Reached", a.Title)
			assert.Equal(t, domain.SeverityMedium, a.Severity)
			return
		}
	}
	t.Fatal("reorder-point alert not produced")
}

func TestDepotAlerts(t *testing.T) {
	tests := []struct {
		name        string
		utilization int64
		want        []domain.AlertType
		category    domain.AlertCategory
	}{
		{"normal", 50, nil, ""},
		{"warning", 90, []domain.AlertType{domain.AlertCapacityWarning}, domain.CategoryWarning},
		{"critical", 96, []domain.AlertType{domain.AlertCapacityCritical}, domain.CategoryCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &domain.Depot{ID: "d1", Name: "North", Capacity: 100, CurrentUtilization: tt.utilization}
			d.Status = domain.DepotStatusFor(d.CurrentUtilization, d.Capacity)

			got := domain.DepotAlerts(d)

			assert.ElementsMatch(t, tt.want, alertTypes(got))
			if len(got) == 1 {
				assert.Equal(t, tt.category, got[0].Category)
				assert.EqualValues(t, tt.utilization, got[0].Metadata["utilizationPercent"])
			}
		})
	}
}

func TestRuleFor_ManualTypes(t *testing.T) {
	tests := []struct {
		typ      domain.AlertType
		category domain.AlertCategory
		severity domain.AlertSeverity
	}{
		{domain.AlertDemandSpike, domain.CategoryInfo, domain.SeverityMedium},
		{domain.AlertDelayedDelivery, domain.CategoryWarning, domain.SeverityMedium},
		{domain.AlertTransferFailed, domain.CategoryCritical, domain.SeverityHigh},
		{domain.AlertExpiryWarning, domain.CategoryWarning, domain.SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			rule, ok := domain.RuleFor(tt.typ)
			require.True(t, ok)
			assert.True(t, rule.Manual)
			assert.Equal(t, tt.category, rule.Category)
			assert.Equal(t, tt.severity, rule.Severity)
		})
	}

	_, ok := domain.RuleFor("bogus")
	assert.False(t, ok)
}

func TestMetadata_ScanValue(t *testing.T) {
	m := domain.Metadata{"utilizationPercent": 90}
	v, err := m.Value()
	require.NoError(t, err)

	var back domain.Metadata
	require.NoError(t, back.Scan(v))
	assert.EqualValues(t, 90, back["utilizationPercent"])

	require.NoError(t, back.Scan(nil))
	assert.Empty(t, back)
}

func TestAlertFilter_Matches(t *testing.T) {
	a := domain.NewAlert("t1", domain.AlertLowStock, domain.TargetProduct, "p1", "low", nil)

	assert.True(t, domain.AlertFilter{Unresolved: true, Unread: true}.Matches(a))
	assert.True(t, domain.AlertFilter{TargetID: "p1", Type: domain.AlertLowStock}.Matches(a))
	assert.False(t, domain.AlertFilter{TargetID: "p2"}.Matches(a))

	a.IsResolved = true
	assert.False(t, domain.AlertFilter{Unresolved: true}.Matches(a))
}
