package event

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/trace"
)

// Drivers.
const (
	DriverLog   = "log"
	DriverKafka = "kafka"
	DriverAMQP  = "amqp"
)

// Config selects and configures the event transport.
type Config struct {
	Driver         string        `default:"log" usage:"event transport: log, kafka or amqp"`
	PublishTimeout time.Duration `default:"5s" usage:"timeout of a single publish"`
	Kafka          KafkaConfig
	AMQP           AMQPConfig
}

// NewPublisher returns the publisher for cfg.Driver.
func NewPublisher(ctx context.Context, cfg Config, tp trace.TracerProvider) (Publisher, error) {
	var (
		p   Publisher
		err error
	)
	switch cfg.Driver {
	case "", DriverLog:
		return LogPublisher{}, nil
	case DriverKafka:
		if err := CreateTopic(ctx, cfg.Kafka); err != nil {
			return nil, err
		}
		p = NewKafkaPublisher(cfg.Kafka, tp)
	case DriverAMQP:
		if p, err = NewAMQPPublisher(cfg.AMQP); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf("unknown event driver %q", cfg.Driver)
	}
	if cfg.PublishTimeout > 0 {
		p = timeoutPublisher{Publisher: p, timeout: cfg.PublishTimeout}
	}
	return p, nil
}

// NewSubscriber returns the subscriber for cfg.Driver.
func NewSubscriber(ctx context.Context, cfg Config, tp trace.TracerProvider) (Subscriber, error) {
	switch cfg.Driver {
	case DriverKafka:
		if err := CreateTopic(ctx, cfg.Kafka); err != nil {
			return nil, err
		}
		return NewKafkaSubscriber(cfg.Kafka, tp), nil
	case DriverAMQP:
		return NewAMQPSubscriber(cfg.AMQP)
	default:
		return nil, errors.Errorf("event driver %q cannot be subscribed to", cfg.Driver)
	}
}

type timeoutPublisher struct {
	Publisher
	timeout time.Duration
}

func (p timeoutPublisher) Publish(ctx context.Context, e Event) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.Publisher.Publish(ctx, e)
}
