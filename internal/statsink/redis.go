// Package statsink ships conversion events to a Redis stream for offline
// aggregation by the operator's statistics store.
package statsink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alnah/go-docconv"
)

// Defaults for the stream sink.
const (
	DefaultStream = "docconv:events"
	DefaultMaxLen = 100_000
	pingTimeout   = 5 * time.Second
)

// ErrNoAddr is returned when no Redis address is configured.
var ErrNoAddr = errors.New("redis address is empty")

// Config holds Redis connection and stream settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Stream   string // empty = DefaultStream
	MaxLen   int64  // approximate stream cap; 0 = DefaultMaxLen
}

// streamClient is the subset of the Redis client the sink uses.
type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// Compile-time interface checks.
var (
	_ docconv.Recorder = (*RedisRecorder)(nil)
	_ streamClient     = (*redis.Client)(nil)
)

// RedisRecorder appends one stream entry per event with XADD.
type RedisRecorder struct {
	client streamClient
	stream string
	maxLen int64
}

// NewRedisRecorder connects to Redis and verifies the connection.
func NewRedisRecorder(cfg Config) (*RedisRecorder, error) {
	if cfg.Addr == "" {
		return nil, ErrNoAddr
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return newRedisRecorder(client, cfg), nil
}

func newRedisRecorder(client streamClient, cfg Config) *RedisRecorder {
	stream := cfg.Stream
	if stream == "" {
		stream = DefaultStream
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return &RedisRecorder{client: client, stream: stream, maxLen: maxLen}
}

// Record appends ev to the stream, trimming it approximately to MaxLen.
func (r *RedisRecorder) Record(ctx context.Context, ev docconv.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]any{
			"job_id":  ev.JobID,
			"class":   string(ev.Class),
			"success": ev.Success,
			"event":   payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis xadd: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisRecorder) Close() error {
	return r.client.Close()
}
