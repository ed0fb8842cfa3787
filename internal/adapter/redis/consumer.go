package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"textrpg/internal/domain"
)

// HandlerFunc processes one lifecycle event.
type HandlerFunc func(ctx context.Context, e domain.LifecycleEvent) error

// ConsumerConfig configures a StreamConsumer.
type ConsumerConfig struct {
	Stream   string
	Group    string
	Consumer string
	// Block is how long a read waits for new entries. Negative means do not
	// block at all.
	Block time.Duration
	Batch int64
}

// StreamConsumer reads lifecycle events through a consumer group. Entries
// are acknowledged after the handler succeeds; failed entries stay pending
// and are retried from the pending list on the next start.
type StreamConsumer struct {
	client  *goredis.Client
	cfg     ConsumerConfig
	handle  HandlerFunc
	dedup   *Deduper
	logger  *slog.Logger
	pending bool
}

// NewStreamConsumer creates a consumer. dedup may be nil.
func NewStreamConsumer(client *goredis.Client, cfg ConsumerConfig, handle HandlerFunc, dedup *Deduper, logger *slog.Logger) *StreamConsumer {
	if cfg.Batch <= 0 {
		cfg.Batch = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamConsumer{
		client:  client,
		cfg:     cfg,
		handle:  handle,
		dedup:   dedup,
		logger:  logger.With("stream", cfg.Stream, "group", cfg.Group, "consumer", cfg.Consumer),
		pending: true,
	}
}

// EnsureGroup creates the stream and group if they do not exist.
func (c *StreamConsumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s: %w", c.cfg.Group, err)
	}
	return nil
}

// Run processes entries until ctx is cancelled.
func (c *StreamConsumer) Run(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "consumer started")
	for {
		if _, err := c.ProcessOnce(ctx); err != nil {
			if ctx.Err() != nil {
				c.logger.InfoContext(ctx, "consumer stopped")
				return nil
			}
			c.logger.ErrorContext(ctx, "read failed", "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// ProcessOnce reads one batch and returns how many entries were acknowledged.
// The first reads drain entries already pending for this consumer.
func (c *StreamConsumer) ProcessOnce(ctx context.Context) (int, error) {
	start := ">"
	block := c.cfg.Block
	if c.pending {
		start = "0"
		block = -1
	}
	res, err := c.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, start},
		Count:    c.cfg.Batch,
		Block:    block,
	}).Result()
	if errors.Is(err, goredis.Nil) {
		c.pending = false
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var msgs []goredis.XMessage
	for _, s := range res {
		msgs = append(msgs, s.Messages...)
	}
	if c.pending && len(msgs) == 0 {
		c.pending = false
	}

	acked := 0
	for _, msg := range msgs {
		if c.process(ctx, msg) {
			if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
				return acked, fmt.Errorf("xack %s: %w", msg.ID, err)
			}
			acked++
		}
	}
	// Entries that keep failing would otherwise be re-read forever.
	if c.pending && acked == 0 {
		c.pending = false
	}
	return acked, nil
}

// process reports whether msg should be acknowledged.
func (c *StreamConsumer) process(ctx context.Context, msg goredis.XMessage) bool {
	e, err := decodeEvent(msg)
	if err != nil {
		c.logger.WarnContext(ctx, "dropping malformed entry", "entry", msg.ID, "err", err)
		return true
	}
	log := c.logger.With("entry", msg.ID, "event_id", e.ID, "kind", e.Kind)

	if c.dedup != nil {
		first, err := c.dedup.Claim(ctx, e.ID)
		if err != nil {
			log.WarnContext(ctx, "dedup unavailable, processing anyway", "err", err)
		} else if !first {
			log.DebugContext(ctx, "skipping duplicate event")
			return true
		}
	}

	if err := c.handle(ctx, e); err != nil {
		if errors.Is(err, domain.ErrUnknownEventKind) {
			log.WarnContext(ctx, "dropping event of unknown kind")
			return true
		}
		log.ErrorContext(ctx, "handler failed", "err", err)
		if c.dedup != nil {
			if rerr := c.dedup.Release(ctx, e.ID); rerr != nil {
				log.WarnContext(ctx, "dedup release failed", "err", rerr)
			}
		}
		return false
	}
	return true
}
