package event

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// LogPublisher writes events to the request logger. It is the default when
// no broker is configured.
type LogPublisher struct{}

var _ Publisher = LogPublisher{}

// Publish logs e.
func (LogPublisher) Publish(ctx context.Context, e Event) error {
	zctx.From(ctx).Info("Order event",
		zap.Stringer("event_id", e.ID),
		zap.String("type", string(e.Type)),
		zap.Int64("order_id", e.OrderID),
		zap.String("status", e.Status),
		zap.Int("items", len(e.Items)),
	)
	return nil
}

// Close is a no-op.
func (LogPublisher) Close() error { return nil }
