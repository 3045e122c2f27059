package transport

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type RedisTransport struct {
	rdb *redis.Client
}

func NewRedisTransport(rdb *redis.Client) *RedisTransport {
	return &RedisTransport{
		rdb: rdb,
	}
}

func traceKey(id string) string {
	return "ragpipe:trace:" + id
}

func (t *RedisTransport) SetTrace(ctx context.Context, trace *JobTrace) error {
	key := traceKey(trace.ID)

	pipe := t.rdb.TxPipeline()
	pipe.HSet(ctx, key, trace)
	pipe.Expire(ctx, key, TraceExpiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to persist trace %s: %w", trace.ID, err)
	}
	return nil
}

func (t *RedisTransport) GetTrace(ctx context.Context, traceID string) (*JobTrace, error) {
	cmd := t.rdb.HGetAll(ctx, traceKey(traceID))
	res, err := cmd.Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read trace %s: %w", traceID, err)
	}
	if len(res) == 0 {
		return nil, ErrTraceNotFound
	}

	var trace JobTrace
	if err := cmd.Scan(&trace); err != nil {
		return nil, fmt.Errorf("failed to decode trace %s: %w", traceID, err)
	}
	return &trace, nil
}
