package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"NYCU-SDC/survey-wizard-backend/internal"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Redis struct {
	logger *zap.Logger
	client redis.Cmdable
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedis wraps a go-redis client. A zero ttl keeps entries until they are deleted.
func NewRedis(logger *zap.Logger, client redis.Cmdable, ttl time.Duration) *Redis {
	return &Redis{
		logger: logger,
		client: client,
		ttl:    ttl,
		tracer: otel.Tracer("kv/redis"),
	}
}

// NewRedisClient parses the connection url and checks the server is reachable.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	traceCtx, span := r.tracer.Start(ctx, "Get")
	defer span.End()
	logger := logutil.WithContext(traceCtx, r.logger)

	value, err := r.client.Get(traceCtx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, internal.ErrKeyNotFound
		}
		logger.Error("Failed to get key from redis", zap.String("key", key), zap.Error(err))
		span.RecordError(err)
		return nil, fmt.Errorf("%w: get %s: %v", internal.ErrStorageFailed, key, err)
	}

	return value, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	traceCtx, span := r.tracer.Start(ctx, "Set")
	defer span.End()
	logger := logutil.WithContext(traceCtx, r.logger)

	err := r.client.Set(traceCtx, key, value, r.ttl).Err()
	if err != nil {
		logger.Error("Failed to set key in redis", zap.String("key", key), zap.Error(err))
		span.RecordError(err)
		return fmt.Errorf("%w: set %s: %v", internal.ErrStorageFailed, key, err)
	}

	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	traceCtx, span := r.tracer.Start(ctx, "Delete")
	defer span.End()
	logger := logutil.WithContext(traceCtx, r.logger)

	err := r.client.Del(traceCtx, key).Err()
	if err != nil {
		logger.Error("Failed to delete key from redis", zap.String("key", key), zap.Error(err))
		span.RecordError(err)
		return fmt.Errorf("%w: delete %s: %v", internal.ErrStorageFailed, key, err)
	}

	return nil
}
