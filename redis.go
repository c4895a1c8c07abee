package trafficlight

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisChannel = "trafficlight"

type RedisNotifierConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// Publisher is the subset of redis.Cmdable used by RedisNotifier.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes every transition as JSON to a redis channel.
type RedisNotifier struct {
	name    string
	channel string
	client  Publisher
}

func NewRedisNotifier(cfg *NotifierConfig) (*RedisNotifier, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("notifier %s: redis addr is required", cfg.Name)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return NewRedisNotifierWithClient(cfg.Name, cfg.Redis.Channel, client), nil
}

func NewRedisNotifierWithClient(name, channel string, client Publisher) *RedisNotifier {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisNotifier{
		name:    name,
		channel: channel,
		client:  client,
	}
}

func (r *RedisNotifier) Name() string {
	return r.name
}

func (r *RedisNotifier) Notify(ctx context.Context, t Transition) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	n, err := r.client.Publish(ctx, r.channel, b).Result()
	if err != nil {
		return fmt.Errorf("redis publish to %s failed: %w", r.channel, err)
	}
	newLoggerFromContext(ctx).Debug("published transition",
		"name", r.name, "module", "redisnotifier", "channel", r.channel, "receivers", n)
	return nil
}
