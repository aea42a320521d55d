// Package consumer wraps franz-go's poll loop behind a small handler
// contract so event-routing code never touches the Kafka client directly.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is a single consumed record.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Timestamp time.Time
	Partition int32
	Offset    int64
}

// Handler processes a consumed message. Returning an error logs and skips the
// message; consumption never wedges a partition on a bad payload.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Consumer owns a consumer-group client and dispatches records to a Handler.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// New builds a consumer-group consumer for the given topics.
func New(brokers []string, groupID string, topics []string, handler Handler, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	)
	if err != nil {
		return nil, fmt.Errorf("new kafka client: %w", err)
	}
	return &Consumer{client: client, handler: handler, logger: logger}, nil
}

// Run polls until the context is cancelled. Handler failures are logged and
// the offset is committed anyway; redelivery cannot fix a malformed payload.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})
		fetches.EachRecord(func(record *kgo.Record) {
			msg := &Message{
				Topic:     record.Topic,
				Key:       record.Key,
				Value:     record.Value,
				Timestamp: record.Timestamp,
				Partition: record.Partition,
				Offset:    record.Offset,
			}
			if err := c.handler.Handle(ctx, msg); err != nil {
				c.logger.Error("message handling failed, skipping",
					"topic", msg.Topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err,
				)
			}
		})
	}
}

// Close flushes commits and releases the client.
func (c *Consumer) Close() {
	c.client.Close()
}
