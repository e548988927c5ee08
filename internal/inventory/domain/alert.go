package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AlertType is the triggering condition of an alert
type AlertType string

const (
	AlertOutOfStock       AlertType = "out-of-stock"
	AlertLowStock         AlertType = "low-stock"
	AlertOverstock        AlertType = "overstock"
	AlertReorderPoint     AlertType = "reorder-point"
	AlertCapacityWarning  AlertType = "capacity-warning"
	AlertCapacityCritical AlertType = "capacity-critical"

	// Raised by external detectors, never by evaluation
	AlertDemandSpike     AlertType = "demand-spike"
	AlertDelayedDelivery AlertType = "delayed-delivery"
	AlertTransferFailed  AlertType = "transfer-failed"
	AlertExpiryWarning   AlertType = "expiry-warning"
)

// AlertCategory groups alerts for display
type AlertCategory string

const (
	CategoryCritical AlertCategory = "critical"
	CategoryWarning  AlertCategory = "warning"
	CategoryInfo     AlertCategory = "info"
)

// AlertSeverity ranks alerts within a category
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// TargetKind names the entity an alert is about
type TargetKind string

const (
	TargetProduct TargetKind = "product"
	TargetDepot   TargetKind = "depot"
)

// AlertRule is the fixed presentation of an alert type
type AlertRule struct {
	Category AlertCategory
	Severity AlertSeverity
	Title    string
	Target   TargetKind
	Manual   bool
}

var alertRules = map[AlertType]AlertRule{
	AlertOutOfStock:       {CategoryCritical, SeverityHigh, "Out of Stock Alert", TargetProduct, false},
	AlertLowStock:         {CategoryWarning, SeverityMedium, "Low Stock Alert", TargetProduct, false},
	AlertOverstock:        {CategoryWarning, SeverityMedium, "Overstock Alert", TargetProduct, false},
	AlertReorderPoint:     {CategoryWarning, SeverityMedium, "Reorder Point Reached", TargetProduct, false},
	AlertCapacityWarning:  {CategoryWarning, SeverityMedium, "Depot Capacity Warning", TargetDepot, false},
	AlertCapacityCritical: {CategoryCritical, SeverityHigh, "Depot Capacity Critical", TargetDepot, false},
	AlertDemandSpike:      {CategoryInfo, SeverityMedium, "Unusual Demand Spike Detected", TargetProduct, true},
	AlertDelayedDelivery:  {CategoryWarning, SeverityMedium, "Delayed Supplier Delivery", TargetProduct, true},
	AlertTransferFailed:   {CategoryCritical, SeverityHigh, "Stock Transfer Failed", TargetProduct, true},
	AlertExpiryWarning:    {CategoryWarning, SeverityMedium, "Product Expiry Warning", TargetProduct, true},
}

// RuleFor returns the presentation rule of an alert type
func RuleFor(t AlertType) (AlertRule, bool) {
	rule, ok := alertRules[t]
	return rule, ok
}

// Metadata holds numeric and textual facts attached to an alert. Stored as JSONB.
type Metadata map[string]interface{}

// Value implements driver.Valuer
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *Metadata) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("metadata: unsupported type %T", src)
	}
	out := Metadata{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// Alert is a notification derived from projection state. At most one alert
// per (target, type) is unresolved at a time.
type Alert struct {
	ID              string        `db:"id" json:"id"`
	TenantID        string        `db:"tenant_id" json:"tenant_id"`
	Type            AlertType     `db:"type" json:"type"`
	Category        AlertCategory `db:"category" json:"category"`
	Severity        AlertSeverity `db:"severity" json:"severity"`
	Title           string        `db:"title" json:"title"`
	Description     string        `db:"description" json:"description"`
	TargetKind      *TargetKind   `db:"target_kind" json:"target_kind,omitempty"`
	TargetID        *string       `db:"target_id" json:"target_id,omitempty"`
	Metadata        Metadata      `db:"metadata" json:"metadata"`
	IsRead          bool          `db:"is_read" json:"is_read"`
	IsResolved      bool          `db:"is_resolved" json:"is_resolved"`
	ResolvedAt      *time.Time    `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy      *string       `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolutionNotes *string       `db:"resolution_notes" json:"resolution_notes,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

// DedupKey identifies the (target, type) slot an unresolved alert occupies.
// Alerts without a target never collide.
func (a *Alert) DedupKey() (string, bool) {
	if a.TargetID == nil {
		return "", false
	}
	return *a.TargetID + "|" + string(a.Type), true
}

// AlertFilter narrows alert listings
type AlertFilter struct {
	Unresolved bool
	Unread     bool
	Type       AlertType
	TargetID   string
	Limit      int
	Offset     int
}

// Matches reports whether a passes the filter, ignoring paging
func (f AlertFilter) Matches(a *Alert) bool {
	if f.Unresolved && a.IsResolved {
		return false
	}
	if f.Unread && a.IsRead {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.TargetID != "" && (a.TargetID == nil || *a.TargetID != f.TargetID) {
		return false
	}
	return true
}

// NewAlert builds an unresolved alert of type t for the given target
func NewAlert(tenantID string, t AlertType, targetKind TargetKind, targetID, description string, meta Metadata) *Alert {
	rule := alertRules[t]
	a := &Alert{
		TenantID:    tenantID,
		Type:        t,
		Category:    rule.Category,
		Severity:    rule.Severity,
		Title:       rule.Title,
		Description: description,
		Metadata:    meta,
	}
	if targetID != "" {
		kind := targetKind
		a.TargetKind = &kind
		a.TargetID = &targetID
	}
	if a.Metadata == nil {
		a.Metadata = Metadata{}
	}
	return a
}

// ProductAlerts returns the evaluation alerts a product's current state calls for.
func ProductAlerts(p *Product) []*Alert {
	var out []*Alert
	add := func(t AlertType, desc string, meta Metadata) {
		out = append(out, NewAlert(p.TenantID, t, TargetProduct, p.ID, desc, meta))
	}

	switch p.Status {
	case ProductOutOfStock:
		add(AlertOutOfStock, fmt.Sprintf("%s (%s) is out of stock", p.Name, p.SKU),
			Metadata{"stock": p.Stock, "reorderPoint": p.ReorderPoint})
	case ProductLowStock:
		add(AlertLowStock, fmt.Sprintf("%s (%s) has only %d units remaining", p.Name, p.SKU, p.Stock),
			Metadata{"stock": p.Stock, "reorderPoint": p.ReorderPoint})
		add(AlertReorderPoint, fmt.Sprintf("%s (%s) has reached reorder point. Current stock: %d, Reorder point: %d",
			p.Name, p.SKU, p.Stock, p.ReorderPoint),
			Metadata{"stock": p.Stock, "reorderPoint": p.ReorderPoint, "suggestedOrderQty": p.ReorderPoint * 2})
	case ProductOverstock:
		percent := p.Stock * 100 / p.ReorderPoint
		add(AlertOverstock, fmt.Sprintf("%s (%s) has %d units, which is %d%% of its reorder point", p.Name, p.SKU, p.Stock, percent),
			Metadata{"stock": p.Stock, "reorderPoint": p.ReorderPoint})
	}
	return out
}

// DepotAlerts returns the evaluation alerts a depot's current state calls for.
// Warning and critical are exclusive.
func DepotAlerts(d *Depot) []*Alert {
	var t AlertType
	switch d.Status {
	case DepotWarning:
		t = AlertCapacityWarning
	case DepotCritical:
		t = AlertCapacityCritical
	default:
		return nil
	}
	percent := d.UtilizationPercent()
	desc := fmt.Sprintf("%s is at %d%% capacity (%d/%d units)", d.Name, percent, d.CurrentUtilization, d.Capacity)
	return []*Alert{NewAlert(d.TenantID, t, TargetDepot, d.ID, desc, Metadata{
		"utilizationPercent": percent,
		"currentUtilization": d.CurrentUtilization,
		"capacity":           d.Capacity,
	})}
}
