package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// stream entry field holding the message body
const bodyField = "body"

type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *slog.Logger
}

var _ Publisher = (*RedisPublisher)(nil)

// If maxLen is positive, the stream is approximately trimmed to that length on every add.
func NewRedisPublisher(client *redis.Client, stream string, maxLen int64, logger *slog.Logger) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, body []byte) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{bodyField: string(body)},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("xadd (stream=%s): %w", p.stream, err)
	}
	p.logger.DebugContext(ctx, "published message", "stream", p.stream, "id", id)
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
