package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hma-go/actioner/actioner/event"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type ConsumerConfig struct {
	Stream   string        // Redis stream name
	Group    string        // Redis consumer group name
	Consumer string        // Redis consumer name; generated if empty
	Batch    int64         // Max entries per read
	Block    time.Duration // How long to block waiting for new entries
}

// Reads batches of match notification envelopes from a redis stream, as a member of a consumer group.
type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
	logger *slog.Logger
}

func NewRedisConsumer(ctx context.Context, client *redis.Client, cfg ConsumerConfig, logger *slog.Logger) (*RedisConsumer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Stream == "" || cfg.Group == "" {
		return nil, fmt.Errorf("consumer requires stream and group names")
	}
	if cfg.Consumer == "" {
		host, _ := os.Hostname()
		cfg.Consumer = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 10
	}
	c := &RedisConsumer{
		client: client,
		cfg:    cfg,
		logger: logger.With("stream", cfg.Stream, "group", cfg.Group, "consumer", cfg.Consumer),
	}
	if err := c.ensureGroup(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	// start from "0" so entries added before the group existed are not skipped
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

// Returns the next batch of envelopes, or an empty batch if none arrived within the block period.
func (c *RedisConsumer) Read(ctx context.Context) ([]event.Envelope, error) {
	return c.read(ctx, ">", c.cfg.Block)
}

// Returns envelopes previously delivered to this consumer but never acknowledged, oldest first. Does not block.
func (c *RedisConsumer) ReadPending(ctx context.Context) ([]event.Envelope, error) {
	return c.read(ctx, "0", -1)
}

func (c *RedisConsumer) read(ctx context.Context, start string, block time.Duration) ([]event.Envelope, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, start},
		Count:    c.cfg.Batch,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []event.Envelope{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	envs := []event.Envelope{}
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			envs = append(envs, EnvelopeFromStream(msg))
		}
	}
	if len(envs) > 0 {
		c.logger.DebugContext(ctx, "read envelopes from stream", "count", len(envs))
	}
	return envs, nil
}

// Claims entries which have been pending (delivered but unacknowledged) for at least minIdle, from any consumer in the group, including this one. Claimed entries are re-delivered to this consumer and returned, oldest first, up to the batch size.
func (c *RedisConsumer) Reclaim(ctx context.Context, minIdle time.Duration) ([]event.Envelope, error) {
	msgs, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    c.cfg.Batch,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []event.Envelope{}, nil
		}
		return nil, fmt.Errorf("reclaiming pending entries: %w", err)
	}
	envs := make([]event.Envelope, 0, len(msgs))
	for _, msg := range msgs {
		envs = append(envs, EnvelopeFromStream(msg))
	}
	if len(envs) > 0 {
		c.logger.DebugContext(ctx, "reclaimed pending envelopes", "count", len(envs), "minIdle", minIdle)
	}
	return envs, nil
}

// Missing or non-string bodies become an empty envelope body, which fails parsing downstream (for that record only).
func EnvelopeFromStream(msg redis.XMessage) event.Envelope {
	env := event.Envelope{ID: msg.ID}
	if raw, ok := msg.Values[bodyField]; ok {
		if s, ok := raw.(string); ok {
			env.Body = []byte(s)
		}
	}
	return env
}

func (c *RedisConsumer) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, ids...).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}
	return nil
}

func (c *RedisConsumer) Close() error {
	return c.client.Close()
}
