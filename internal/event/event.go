// Package event defines order lifecycle events and the transports that carry
// them to out-of-process consumers.
package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type is the event name. It doubles as the AMQP routing key.
type Type string

const (
	OrderPlaced        Type = "order.placed"
	OrderPaid          Type = "order.paid"
	OrderCancelled     Type = "order.cancelled"
	OrderStatusUpdated Type = "order.status_updated"
	PaymentRefunded    Type = "payment.refunded"
)

// Item is an order line as seen by consumers.
type Item struct {
	ProductID  int64
	Name       string
	Quantity   int
	Price      decimal.Decimal
	VendorType string
	VendorID   int64
}

// Event is a single order lifecycle notification.
type Event struct {
	ID          uuid.UUID
	Type        Type
	OrderID     int64
	CustomerID  int64
	Status      string
	TotalAmount decimal.Decimal
	Items       []Item
	OccurredAt  time.Time
}

// New returns an event of the given type with a fresh id.
func New(typ Type) Event {
	return Event{
		ID:         uuid.New(),
		Type:       typ,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Handler processes one received event.
type Handler func(ctx context.Context, e Event) error

// Subscriber consumes events until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, h Handler) error
	Close() error
}
