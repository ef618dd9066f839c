// Package consumer wraps franz-go group consumption behind a small Handler
// interface. Delivery is at-least-once: offsets are marked only after the
// handler returns nil, and partition keying preserves per-key ordering.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is the transport-agnostic view of a consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes a single message. Returning nil commits the offset.
// Returning an error rewinds the partition to the failed record so it is
// fetched and handled again; handlers that want to drop a message
// (malformed payloads) log and return nil.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Config captures group consumption settings.
type Config struct {
	Brokers []string
	GroupID string
	Topics  []string
}

// Consumer runs a consume loop against a consumer group.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithLogger sets the logger used for consume-loop diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// New creates a consumer joined to cfg.GroupID. Offsets are committed
// manually from marks so a crash never commits past an unhandled message.
func New(cfg Config, handler Handler, opts ...Option) (*Consumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("consumer handler is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	c := &Consumer{
		client:  client,
		handler: handler,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run polls until ctx is cancelled. Handler failures never stop the loop:
// the partition is rewound to the failed record, so the committed offset
// never passes an unhandled message and the record is fetched again on the
// next poll.
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
			c.logger.Error("kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			marked, failed := c.handleBatch(ctx, p.Records)
			if len(marked) > 0 {
				c.client.MarkCommitRecords(marked...)
			}
			if failed != nil {
				c.client.SetOffsets(map[string]map[int32]kgo.EpochOffset{
					p.Topic: {p.Partition: {
						Epoch:  failed.LeaderEpoch,
						Offset: failed.Offset,
					}},
				})
			}
		})

		if err := c.client.CommitMarkedOffsets(ctx); err != nil {
			c.logger.Error("commit marked offsets failed", "error", err)
		}
		c.client.AllowRebalance()
	}
}

// handleBatch hands one partition's records to the handler in order. It
// returns the prefix of records whose offsets may be marked committed and,
// when a handler fails, the failed record itself. Records after a failure
// are not handled: marking any of them would commit the partition past the
// failed offset, so the caller rewinds and they are fetched again instead.
func (c *Consumer) handleBatch(ctx context.Context, recs []*kgo.Record) (marked []*kgo.Record, failed *kgo.Record) {
	for _, rec := range recs {
		msg := &Message{
			Topic:     rec.Topic,
			Partition: rec.Partition,
			Offset:    rec.Offset,
			Key:       rec.Key,
			Value:     rec.Value,
			Timestamp: rec.Timestamp,
		}
		if err := c.handler.Handle(ctx, msg); err != nil {
			c.logger.Error("message handling failed, rewinding partition",
				"topic", rec.Topic,
				"partition", rec.Partition,
				"offset", rec.Offset,
				"error", err,
			)
			return marked, rec
		}
		marked = append(marked, rec)
	}
	return marked, nil
}

// Close releases the underlying client. Safe to call after Run returns.
func (c *Consumer) Close() {
	c.client.Close()
}
