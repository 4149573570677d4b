package workers

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultStream   = "speech:analysis"
	DefaultGroup    = "speech-workers"
	FieldAnalysisID = "analysis_id"

	streamMaxLen = 10000
)

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisDispatcher enqueues analysis ids on the worker stream.
type RedisDispatcher struct {
	client streamAdder
	stream string
}

func NewRedisDispatcher(client streamAdder, stream string) *RedisDispatcher {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisDispatcher{client: client, stream: stream}
}

func (d *RedisDispatcher) Dispatch(ctx context.Context, analysisID string) error {
	return d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: d.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			FieldAnalysisID: analysisID,
			"enqueued_at":   time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
}
