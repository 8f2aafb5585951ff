package models

import "time"

// Material is one stocked item of a business. UpdatedAt increases on every
// successful mutation and is the compare-and-swap token for optimistic
// concurrency.
type Material struct {
	ID           string    `json:"_id"`
	BusinessID   string    `json:"businessId"`
	Name         string    `json:"name"`
	Category     string    `json:"category,omitempty"`
	Unit         string    `json:"unit,omitempty"`
	Quantity     float64   `json:"quantity"`
	MinThreshold float64   `json:"minThreshold"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Business is the tenant record.
type Business struct {
	ID                    string    `json:"_id"`
	Name                  string    `json:"name"`
	Currency              string    `json:"currency,omitempty"`
	LowStockAlertsEnabled bool      `json:"lowStockAlertsEnabled"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// InventoryEvent is one audit entry of a quantity change.
type InventoryEvent struct {
	BusinessID    string    `json:"businessId"`
	MaterialID    string    `json:"materialId"`
	UserID        string    `json:"userId,omitempty"`
	Delta         float64   `json:"delta"`
	QuantityAfter float64   `json:"quantityAfter"`
	Action        string    `json:"action,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	OpID          string    `json:"opId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// StockAlert is a low-stock alert raised by the threshold notifier.
type StockAlert struct {
	ID         int64      `json:"id"`
	BusinessID string     `json:"businessId"`
	MaterialID string     `json:"materialId"`
	Status     string     `json:"status"` // active or resolved
	Quantity   float64    `json:"quantity"`
	Threshold  float64    `json:"threshold"`
	RaisedAt   time.Time  `json:"raisedAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}
