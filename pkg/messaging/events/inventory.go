// Package events contains the event types published by the inventory service.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/inventa/inventory/pkg/messaging"
)

// LowStockEvent is published when a stock decrement leaves a product
// below its configured low-stock threshold.
type LowStockEvent struct {
	ProductID         uuid.UUID `json:"product_id"`
	Name              string    `json:"name"`
	StockQuantity     int64     `json:"stock_quantity"`
	LowStockThreshold int64     `json:"low_stock_threshold"`
	OccurredAt        time.Time `json:"occurred_at"`
}

func (e LowStockEvent) Subject() string {
	return messaging.InventoryLowStockSubject
}

func (e LowStockEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
