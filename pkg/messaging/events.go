package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Ledger event types. Routing keys equal the event type.
const (
	EventDepotCreated         = "depot:created"
	EventTransactionCreated   = "transaction:created"
	EventDepotStockUpdated    = "depot:stock-updated"
	EventProductDepotAssigned = "product:depot-assigned"
	EventAlertCreated         = "alert:created"
)

// ExchangeLedgerEvents is the default topic exchange for ledger events
const ExchangeLedgerEvents = "ledger.events"

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	TenantID      string          `json:"tenant_id,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// DepotCreatedEvent is published when a depot is created, explicitly or by import
type DepotCreatedEvent struct {
	DepotID  string `json:"depot_id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Capacity int64  `json:"capacity"`
}

// TransactionCreatedEvent is published for every committed ledger entry
type TransactionCreatedEvent struct {
	TransactionID string    `json:"transaction_id"`
	TenantID      string    `json:"tenant_id"`
	ProductID     string    `json:"product_id"`
	ProductSKU    string    `json:"product_sku"`
	Type          string    `json:"type"`
	Quantity      int64     `json:"quantity"`
	FromDepotID   string    `json:"from_depot_id,omitempty"`
	ToDepotID     string    `json:"to_depot_id,omitempty"`
	PreviousStock int64     `json:"previous_stock"`
	NewStock      int64     `json:"new_stock"`
	PerformedBy   string    `json:"performed_by"`
	Timestamp     time.Time `json:"timestamp"`
}

// DepotStockUpdatedEvent carries a depot's projection after a movement
type DepotStockUpdatedEvent struct {
	DepotID            string `json:"depot_id"`
	TenantID           string `json:"tenant_id"`
	CurrentUtilization int64  `json:"current_utilization"`
	Capacity           int64  `json:"capacity"`
	ItemsStored        int    `json:"items_stored"`
	Status             string `json:"status"`
}

// ProductDepotAssignedEvent is published when a product gains its first units in a depot
type ProductDepotAssignedEvent struct {
	ProductID string `json:"product_id"`
	DepotID   string `json:"depot_id"`
	TenantID  string `json:"tenant_id"`
	Quantity  int64  `json:"quantity"`
}

// AlertCreatedEvent is published when a new open alert is created
type AlertCreatedEvent struct {
	AlertID    string `json:"alert_id"`
	TenantID   string `json:"tenant_id"`
	Type       string `json:"type"`
	Category   string `json:"category"`
	Severity   string `json:"severity"`
	Title      string `json:"title"`
	TargetKind string `json:"target_kind,omitempty"`
	TargetID   string `json:"target_id,omitempty"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.NewString()
}
