package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kirana/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer publishes inventory events to Kafka
type Producer struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return &Producer{writer: writer, log: util.GetLogger()}
}

// Publish publishes an inventory event keyed by user so per-user ordering is
// preserved within a partition.
func (p *Producer) Publish(ctx context.Context, event InventoryEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
		Time:  event.Timestamp,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	p.log.Debug("published inventory event",
		zap.String("type", string(event.Type)),
		zap.String("user", event.UserID))
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// EventHandler processes one consumed inventory event.
type EventHandler func(ctx context.Context, event InventoryEvent) error

// Consumer reads inventory events and hands them to a handler
type Consumer struct {
	reader *kafka.Reader
	log    *zap.Logger
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	return &Consumer{reader: reader, log: util.GetLogger()}
}

// Run consumes events until the context is cancelled. Malformed messages are
// committed and skipped; handler failures are logged and the message is
// committed anyway, matching the best-effort notification contract.
func (c *Consumer) Run(ctx context.Context, handler EventHandler) error {
	c.log.Info("starting inventory event consumer",
		zap.String("topic", c.reader.Config().Topic))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("failed to fetch message", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		var event InventoryEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.log.Warn("skipping malformed event", zap.Error(err))
		} else if err := handler(ctx, event); err != nil {
			c.log.Warn("event handler failed",
				zap.String("type", string(event.Type)), zap.Error(err))
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Warn("failed to commit message", zap.Error(err))
		}
	}
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
