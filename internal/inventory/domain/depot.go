package domain

import "time"

// DepotStatus is the capacity classification of a depot
type DepotStatus string

const (
	DepotNormal   DepotStatus = "normal"
	DepotWarning  DepotStatus = "warning"
	DepotCritical DepotStatus = "critical"
)

// Capacity thresholds in percent of capacity
const (
	DepotWarningPercent  = 85
	DepotCriticalPercent = 95
)

// DefaultLocation is used for depots created without one
const DefaultLocation = "Unknown"

// Depot is a physical storage site. CurrentUtilization, ItemsStored and
// Status are stored projections of the allocation relation; Allocations is
// the by-depot view, filled on read.
type Depot struct {
	ID                 string      `db:"id" json:"id"`
	TenantID           string      `db:"tenant_id" json:"tenant_id"`
	Name               string      `db:"name" json:"name"`
	Location           string      `db:"location" json:"location"`
	Capacity           int64       `db:"capacity" json:"capacity"`
	CurrentUtilization int64       `db:"current_utilization" json:"current_utilization"`
	ItemsStored        int         `db:"items_stored" json:"items_stored"`
	Status             DepotStatus `db:"status" json:"status"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at" json:"updated_at"`

	Allocations []Allocation `db:"-" json:"allocations"`
}

// Project recomputes the stored projection from the depot's allocations
func (d *Depot) Project(allocations []Allocation) {
	proj := ProjectDepot(allocations, d.Capacity)
	d.CurrentUtilization = proj.CurrentUtilization
	d.ItemsStored = proj.ItemsStored
	d.Status = proj.Status
	d.Allocations = allocations
}

// UtilizationPercent returns utilization as a rounded percentage of capacity
func (d *Depot) UtilizationPercent() int64 {
	return UtilizationPercent(d.CurrentUtilization, d.Capacity)
}
