package event

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// KafkaConfig configures the Kafka transport.
type KafkaConfig struct {
	Brokers     []string `default:"localhost:9092" usage:"Kafka bootstrap brokers"`
	Topic       string   `default:"buzzer.orders" usage:"topic for order events"`
	GroupID     string   `default:"buzzer-order-notifier" usage:"consumer group of the notifier"`
	Partitions  int      `default:"3" usage:"partitions when creating the topic"`
	Replication int      `default:"1" usage:"replication factor when creating the topic"`
}

var propagator = propagation.TraceContext{}

// headerCarrier adapts Kafka headers to a propagation.TextMapCarrier.
type headerCarrier struct {
	headers *[]kafka.Header
}

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, len(*c.headers))
	for i, h := range *c.headers {
		keys[i] = h.Key
	}
	return keys
}

// KafkaPublisher writes events keyed by order id so that one order's events
// stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
	tracer trace.Tracer
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher returns a publisher for cfg.Topic.
func NewKafkaPublisher(cfg KafkaConfig, tp trace.TracerProvider) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			WriteTimeout: 10 * time.Second,
			ReadTimeout:  10 * time.Second,
			RequiredAcks: kafka.RequireOne,
		},
		topic:  cfg.Topic,
		tracer: tp.Tracer("buzzer/event/kafka"),
	}
}

// Publish writes e and waits for the leader acknowledgement.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	key := strconv.FormatInt(e.OrderID, 10)
	ctx, span := p.tracer.Start(ctx, "publish "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", p.topic),
			attribute.String("messaging.kafka.message.key", key),
			attribute.String("buzzer.event.type", string(e.Type)),
		),
	)
	defer span.End()

	var headers []kafka.Header
	propagator.Inject(ctx, headerCarrier{headers: &headers})
	headers = append(headers, kafka.Header{Key: "event-type", Value: []byte(e.Type)})

	msg := kafka.Message{
		Key:     []byte(key),
		Value:   Encode(e),
		Time:    e.OccurredAt,
		Headers: headers,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errors.Wrapf(err, "publish %s to %s", e.Type, p.topic)
	}
	return nil
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaSubscriber consumes events as a member of a consumer group.
type KafkaSubscriber struct {
	reader  *kafka.Reader
	topic   string
	groupID string
	tracer  trace.Tracer
}

var _ Subscriber = (*KafkaSubscriber)(nil)

// NewKafkaSubscriber returns a group reader for cfg.Topic.
func NewKafkaSubscriber(cfg KafkaConfig, tp trace.TracerProvider) *KafkaSubscriber {
	return &KafkaSubscriber{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			Topic:          cfg.Topic,
			GroupID:        cfg.GroupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: time.Second,
			StartOffset:    kafka.FirstOffset,
		}),
		topic:   cfg.Topic,
		groupID: cfg.GroupID,
		tracer:  tp.Tracer("buzzer/event/kafka"),
	}
}

// Subscribe calls h for every message until ctx is done. Offsets are
// committed after h returns; undecodable messages and handler failures are
// logged and committed so that one bad message does not stall the group.
func (s *KafkaSubscriber) Subscribe(ctx context.Context, h Handler) error {
	lg := zctx.From(ctx)
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "fetch message")
		}

		msgCtx := propagator.Extract(ctx, headerCarrier{headers: &msg.Headers})
		msgCtx, span := s.tracer.Start(msgCtx, "receive "+s.topic,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination.name", s.topic),
				attribute.String("messaging.kafka.consumer.group", s.groupID),
				attribute.Int("messaging.kafka.partition", msg.Partition),
				attribute.Int64("messaging.kafka.offset", msg.Offset),
			),
		)

		e, err := Decode(msg.Value)
		if err == nil {
			err = h(msgCtx, e)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			lg.Error("Handle event",
				zap.Error(err),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
		}
		span.End()

		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit offset")
		}
	}
}

// Close leaves the consumer group.
func (s *KafkaSubscriber) Close() error {
	return s.reader.Close()
}

// CreateTopic creates the topic through the cluster controller. An existing
// topic is not an error.
func CreateTopic(ctx context.Context, cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return errors.Wrap(err, "dial broker")
	}
	defer func() { _ = conn.Close() }()

	controller, err := conn.Controller()
	if err != nil {
		return errors.Wrap(err, "get controller")
	}
	cc, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return errors.Wrap(err, "dial controller")
	}
	defer func() { _ = cc.Close() }()

	err = cc.CreateTopics(kafka.TopicConfig{
		Topic:             cfg.Topic,
		NumPartitions:     cfg.Partitions,
		ReplicationFactor: cfg.Replication,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return errors.Wrapf(err, "create topic %s", cfg.Topic)
	}
	return nil
}
