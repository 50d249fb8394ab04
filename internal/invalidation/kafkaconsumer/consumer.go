// Package kafkaconsumer applies dataset refresh events from Kafka to the
// response cache and the metadata catalogue.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	obs "github.com/mohammed-shakir/rurair-map/internal/core/observability"
	"github.com/mohammed-shakir/rurair-map/internal/invalidation"
	mylog "github.com/mohammed-shakir/rurair-map/internal/logger"
)

// Invalidator drops cached stored-function responses.
type Invalidator interface {
	InvalidateFunctions(ctx context.Context, fns ...string) (int, error)
}

type CatalogPurger interface {
	Invalidate()
}

type Consumer struct {
	cfg     Config
	logger  *slog.Logger
	zlog    *zerolog.Logger
	inv     Invalidator
	catalog CatalogPurger
	dedupe  *tsDedupe
}

type Option func(*Consumer)

// WithZerolog routes per-message audit lines to zl.
func WithZerolog(zl *zerolog.Logger) Option {
	return func(c *Consumer) { c.zlog = zl }
}

func New(cfg Config, logger *slog.Logger, inv Invalidator, cat CatalogPurger, opts ...Option) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 5 * time.Second
	}
	c := &Consumer{
		cfg:     cfg,
		logger:  logger,
		inv:     inv,
		catalog: cat,
		dedupe:  newTSDedupe(0),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start consumes refresh events until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if c.inv == nil {
		return errors.New("kafkaconsumer: missing invalidator")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	ctx = mylog.WithComponent(ctx, "kafka_consumer")
	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("kafka refresh consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka refresh consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				obs.IncKafkaConsumerError("consume")
				c.logger.Error("consumer error", "err", err)
				mylog.FromContext(ctx, c.zlog).Error().Err(err).
					Strs("brokers", c.cfg.Brokers).
					Str("topic", c.cfg.Topic).
					Msg("kafka consumer error")
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(2 * time.Second):
				}
			}
		}
	}
}

// ProcessOne applies a single refresh event. Malformed or invalid events are
// logged and skipped so they do not block the partition.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.reject(ctx, msg, "decode", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		c.reject(ctx, msg, "validate", err)
		return nil
	}

	scope := ev.Dataset + "/" + ev.Category
	if c.dedupe.seen(scope, ev.TS) {
		c.logger.Debug("refresh already applied (skipping)", "dataset", ev.Dataset, "ts", ev.TS)
		return nil
	}

	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()
	n, err := c.inv.InvalidateFunctions(opCtx, ev.Functions()...)
	if err != nil {
		obs.IncKafkaConsumerError("redis_del")
		mylog.FromContext(ctx, c.zlog).Error().Err(err).
			Str("kind", "redis_del").
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("kafka error")
		return fmt.Errorf("invalidate %s: %w", ev.Dataset, err)
	}
	if c.catalog != nil {
		c.catalog.Invalidate()
	}
	c.dedupe.mark(scope, ev.TS)

	obs.IncInvalidation(ev.Dataset)
	obs.ObserveUpstreamLatency("kafka_invalidation", time.Since(start).Seconds())
	c.logger.Debug("invalidated keys", "dataset", ev.Dataset, "category", ev.Category, "keys", n)

	mylog.FromContext(ctx, c.zlog).Info().
		Str("event", "invalidation").
		Str("dataset", ev.Dataset).
		Str("category", ev.Category).
		Int("keys", n).
		Msg("invalidated keys")
	return nil
}

func (c *Consumer) reject(ctx context.Context, msg *sarama.ConsumerMessage, kind string, err error) {
	obs.IncKafkaConsumerError(kind)
	c.logger.Warn("dropping refresh event", "kind", kind, "offset", msg.Offset, "err", err)
	mylog.FromContext(ctx, c.zlog).Error().
		Str("kind", kind).
		Str("topic", msg.Topic).
		Int32("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Msg("kafka error")
}
