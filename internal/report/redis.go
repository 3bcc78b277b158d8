package report

import (
	"context"
	"encoding/json"
	"fmt"

	"basis-sim/internal/engine"

	"github.com/redis/go-redis/v9"
)

// streamPublisher is the part of *redis.Client the sink uses.
type streamPublisher interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Redis appends every snapshot to a stream and publishes it on a channel for
// live consumers.
type Redis struct {
	rdb     streamPublisher
	stream  string
	channel string
	maxLen  int64
}

func NewRedis(rdb streamPublisher, stream, channel string, maxLen int64) *Redis {
	return &Redis{rdb: rdb, stream: stream, channel: channel, maxLen: maxLen}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Report(ctx context.Context, snap engine.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"ts_ms":   snap.At.UnixMilli(),
			"symbol":  snap.Symbol,
			"cause":   string(snap.Cause),
			"payload": string(payload),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if err := r.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	if err := r.rdb.Publish(ctx, r.channel, string(payload)).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", r.channel, err)
	}
	return nil
}
