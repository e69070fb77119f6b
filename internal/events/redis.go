package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/spigell/strivebot/internal/batch"
)

const DefaultChannel = "strivebot:events"

// Publisher is the subset of *redis.Client used by RedisSink.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// NewRedisClient creates and verifies a Redis client connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return rdb, nil
}

// RedisSink publishes events as JSON on a pub/sub channel.
type RedisSink struct {
	client  Publisher
	channel string
}

func NewRedisSink(client Publisher, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSink{client: client, channel: channel}
}

type payload struct {
	batch.Event
	Error string `json:"error,omitempty"`
}

func (s *RedisSink) Handle(ctx context.Context, ev batch.Event) error {
	p := payload{Event: ev}
	if ev.Err != nil {
		p.Error = ev.Err.Error()
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}

	if err := s.client.Publish(ctx, s.channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}
