package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"p1dlms/internal/config"
	"p1dlms/pkg/decoder"
)

// publisher is the part of a redis client the sink needs.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Redis publishes each reading as JSON on a pub/sub channel.
type Redis struct {
	client  publisher
	channel string
	timeout time.Duration
	now     func() time.Time
}

// NewRedisClient connects the way the rest of the service expects: short
// dial and write timeouts so a dead broker cannot stall decoding.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		WriteTimeout: time.Second,
	})
}

func NewRedis(client publisher, channel string) *Redis {
	return &Redis{client: client, channel: channel, timeout: time.Second, now: time.Now}
}

func (s *Redis) Name() string {
	return "redis"
}

func (s *Redis) OnReading(ctx context.Context, r decoder.Reading) error {
	payload, err := json.Marshal(Envelope{ReceivedAt: s.now().UTC(), Reading: r})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", s.channel, err)
	}
	return nil
}
