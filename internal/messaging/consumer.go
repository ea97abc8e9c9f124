package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	consumerTracer = otel.Tracer("messaging/consumer")

	messagesProcessed, _ = messagingMeter.Int64Counter("messaging.messages.processed", metric.WithDescription("Messages handled per topic and outcome"))
)

// HandlerFunc processes one message payload. Returning an error makes the
// consumer retry the message.
type HandlerFunc func(ctx context.Context, payload []byte) error

type Consumer struct {
	reader      *kafka.Reader
	readerCfg   kafka.ReaderConfig
	topic       string
	groupID     string
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration
}

type ConsumerOption func(*Consumer)

func WithStartOffset(offset int64) ConsumerOption {
	return func(c *Consumer) {
		c.readerCfg.StartOffset = offset
	}
}

func WithLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// WithRetry sets how often a failing message is attempted and the initial
// delay between attempts. The delay doubles after every failure.
func WithRetry(maxAttempts int, backoff time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.maxAttempts = max(maxAttempts, 1)
		c.backoff = backoff
	}
}

func NewConsumer(brokers []string, topic, groupID string, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		readerCfg: kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		},
		topic:       topic,
		groupID:     groupID,
		logger:      slog.Default(),
		maxAttempts: 5,
		backoff:     500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.reader = kafka.NewReader(c.readerCfg)
	return c
}

// Consume runs until ctx is done or the reader fails. A message whose handler
// keeps failing is logged and committed so it cannot block the partition.
// Cancelling ctx is a clean stop and returns nil.
func (c *Consumer) Consume(ctx context.Context, handler HandlerFunc) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return c.stopErr(ctx, fmt.Errorf("fetch from %s: %w", c.topic, err))
		}

		if err := c.deliver(ctx, msg, handler); err != nil {
			return c.stopErr(ctx, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return c.stopErr(ctx, fmt.Errorf("commit %s offset %d: %w", c.topic, msg.Offset, err))
		}
	}
}

func (c *Consumer) stopErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// deliver returns an error only when ctx ends mid-retry; the message is then
// left uncommitted for the next consumer.
func (c *Consumer) deliver(ctx context.Context, msg kafka.Message, handler HandlerFunc) error {
	wait := c.backoff
	var err error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err = c.processMessage(ctx, msg, attempt, handler); err == nil {
			c.count(ctx, "ok")
			return nil
		}

		c.logger.Warn("message handler failed",
			"error", err,
			"topic", c.topic,
			"offset", msg.Offset,
			"attempt", attempt,
		)

		if attempt == c.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}

	c.count(ctx, "skipped")
	c.logger.Error("giving up on message",
		"error", err,
		"topic", c.topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", string(msg.Key),
	)
	return nil
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message, attempt int, handler HandlerFunc) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, carrierFor(&msg))

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
			attribute.Int("messaging.attempt", attempt),
		),
	)
	defer span.End()

	if err := handler(spanCtx, msg.Value); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (c *Consumer) count(ctx context.Context, outcome string) {
	messagesProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", c.topic),
		attribute.String("outcome", outcome),
	))
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
