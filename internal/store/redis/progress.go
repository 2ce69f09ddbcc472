package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultProgressStream = "zklite:decode-progress"
	// DefaultProgressMaxLen caps the stream; older entries are trimmed
	// approximately.
	DefaultProgressMaxLen = 1000
)

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// ProgressNotifier publishes bulk-decode progress as stream entries with
// the fields processed, total and at (unix milliseconds).
type ProgressNotifier struct {
	client streamAdder
	stream string
	maxLen int64
	nowFn  func() time.Time
}

func NewProgressNotifier(client streamAdder, stream string, maxLen int64) *ProgressNotifier {
	if stream == "" {
		stream = DefaultProgressStream
	}
	return &ProgressNotifier{
		client: client,
		stream: stream,
		maxLen: maxLen,
		nowFn:  time.Now,
	}
}

func (n *ProgressNotifier) NotifyProgress(ctx context.Context, processed, total int) error {
	args := &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]any{
			"processed": strconv.Itoa(processed),
			"total":     strconv.Itoa(total),
			"at":        strconv.FormatInt(n.nowFn().UnixMilli(), 10),
		},
	}
	if n.maxLen > 0 {
		args.MaxLen = n.maxLen
		args.Approx = true
	}
	if err := n.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("publish decode progress to %s: %w", n.stream, err)
	}
	return nil
}
