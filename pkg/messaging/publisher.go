// Package messaging defines the event publishing abstraction.
package messaging

import (
	"context"
)

const InventoryLowStockSubject = "inventory.stock.low"

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards events. It is used when event publishing is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, _ Event) error {
	return nil
}
