package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lookwise/insight-agent/internal/agent/model"
	errx "github.com/lookwise/insight-agent/internal/core/error"
	logx "github.com/lookwise/insight-agent/pkg/logger"
)

// RedisSchemaCache memoizes per-table warehouse schemas in Redis with a TTL.
// It only fronts the external catalog; the per-query schema context cached on
// WorkflowState is unaffected by this layer.
type RedisSchemaCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisSchemaCache(rdb redis.Cmdable, ttl time.Duration) *RedisSchemaCache {
	return &RedisSchemaCache{rdb: rdb, ttl: ttl}
}

func (r *RedisSchemaCache) tableKey(table string) string {
	return fmt.Sprintf("schema:%s:fields", table)
}

func (r *RedisSchemaCache) GetTable(ctx context.Context, table string) ([]model.FieldDescriptor, bool, error) {
	key := r.tableKey(table)

	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to read schema from redis")
		return nil, false, errx.WrapRedis(err)
	}

	var fields []model.FieldDescriptor
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to unmarshal cached schema")
		return nil, false, fmt.Errorf("unmarshal cached schema for %q: %w", table, err)
	}
	return fields, true, nil
}

func (r *RedisSchemaCache) PutTable(ctx context.Context, table string, fields []model.FieldDescriptor) error {
	b, err := json.Marshal(fields)
	if err != nil {
		logx.Error().Err(err).Str("table", table).Msg("failed to marshal schema")
		return fmt.Errorf("marshal schema: %w", err)
	}
	key := r.tableKey(table)

	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to write schema to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.SchemaCache = (*RedisSchemaCache)(nil)
