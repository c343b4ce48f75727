package event

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

// --- Mock implementations ---

type recordingPublisher struct {
	deadline time.Time
	events   []Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e Event) error {
	p.deadline, _ = ctx.Deadline()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// --- Tests ---

func TestNewPublisher_Drivers(t *testing.T) {
	tp := noop.NewTracerProvider()

	p, err := NewPublisher(context.Background(), Config{}, tp)
	require.NoError(t, err)
	assert.IsType(t, LogPublisher{}, p)
	require.NoError(t, p.Publish(context.Background(), New(OrderPlaced)))

	_, err = NewPublisher(context.Background(), Config{Driver: "nats"}, tp)
	require.Error(t, err)

	_, err = NewSubscriber(context.Background(), Config{Driver: DriverLog}, tp)
	require.Error(t, err)
}

func TestTimeoutPublisher(t *testing.T) {
	rec := &recordingPublisher{}
	p := timeoutPublisher{Publisher: rec, timeout: time.Minute}

	before := time.Now()
	require.NoError(t, p.Publish(context.Background(), New(OrderPaid)))
	require.Len(t, rec.events, 1)
	assert.Equal(t, OrderPaid, rec.events[0].Type)
	assert.WithinDuration(t, before.Add(time.Minute), rec.deadline, 5*time.Second)
}

func TestHeaderCarrier(t *testing.T) {
	c := headerCarrier{headers: new([]kafka.Header)}
	c.Set("traceparent", "00-abc-def-01")
	assert.Equal(t, "00-abc-def-01", c.Get("traceparent"))
	assert.Equal(t, "", c.Get("missing"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}
