package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultDialTimeout = 5 * time.Second

// Stream is the Redis connection behind decode progress publishing.
type Stream struct {
	client *redis.Client
}

// NewStream connects to url (redis:// or rediss://) and verifies the
// connection before returning.
func NewStream(ctx context.Context, url string) (*Stream, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = defaultDialTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return &Stream{client: client}, nil
}

// PingContext lets the readiness probe include Redis.
func (s *Stream) PingContext(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (s *Stream) Close() error {
	return s.client.Close()
}

func (s *Stream) ProgressNotifier(stream string) *ProgressNotifier {
	return NewProgressNotifier(s.client, stream, DefaultProgressMaxLen)
}
