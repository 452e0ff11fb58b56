package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"prosterio-go/internal/config"
	"prosterio-go/internal/constants"
	"prosterio-go/internal/tracing"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// 为Redis操作定义专用tracer
var redisTracer = otel.Tracer("prosterio-go/storage/redis")

// Redis操作前缀采样率配置, redisotel 已经为每条命令生成 span，这里只对业务级操作采样
var redisKeySamplingRates = map[string]float64{
	constants.KeyAnalyticsGeneration: 0.1,
	constants.AppPrefix + ":" + constants.AnalyticsModulePrefix + ":" + constants.EntitySnapshot: 0.05,
}

// shouldSampleRedisOp 根据key前缀决定是否需要创建span
func shouldSampleRedisOp(key string) bool {
	if key == "" {
		return false
	}
	for prefix, rate := range redisKeySamplingRates {
		if strings.HasPrefix(key, prefix) {
			return rand.Float64() < rate
		}
	}
	// 默认采样率5%
	return rand.Float64() < 0.05
}

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter creates a new Redis client connection
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		// 缓存是可丢弃的，命令失败不重试
		MaxRetries: -1,

		// 连接生命周期
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return NewRedisWithClient(client, cfg), nil
}

// NewRedisWithClient 包装已有的客户端，不做连接检查
func NewRedisWithClient(client *redis.Client, cfg *config.RedisConfig) *Redis {
	if cfg == nil {
		cfg = &config.RedisConfig{}
	}
	return &Redis{Client: client, config: cfg}
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// AnalyticsCacheTTL 返回统计快照的过期时间
func (r *Redis) AnalyticsCacheTTL() time.Duration {
	return config.GetDuration(r.config.AnalyticsCacheTTL, 5*time.Minute)
}

// GetJSON 读取 key 并反序列化到 dst。key 不存在时返回 (false, nil)。
func (r *Redis) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis客户端未初始化")
	}

	var span trace.Span
	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.GetJSON", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()
		span.SetAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", "GET"),
			attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
		)
	}

	val, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		if span != nil {
			span.SetAttributes(attribute.Bool("db.redis.key_exists", false))
			span.SetStatus(codes.Ok, "key not found")
		}
		return false, nil
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return false, err
	}

	if err := json.Unmarshal(val, dst); err != nil {
		return false, fmt.Errorf("解析缓存值失败 (key=%s): %w", key, err)
	}
	if span != nil {
		span.SetAttributes(
			attribute.Bool("db.redis.key_exists", true),
			attribute.Int("db.redis.value_length", len(val)),
		)
		span.SetStatus(codes.Ok, "")
	}
	return true, nil
}

// SetJSON 序列化 v 并写入 key
func (r *Redis) SetJSON(ctx context.Context, key string, v any, expiration time.Duration) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化缓存值失败: %w", err)
	}

	var span trace.Span
	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.SetJSON", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()
		span.SetAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", "SET"),
			attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
			attribute.Int("db.redis.value_length", len(data)),
		)
		if expiration > 0 {
			span.SetAttributes(attribute.Int64("db.redis.expiration_ms", expiration.Milliseconds()))
		}
	}

	if err := r.Client.Set(ctx, key, data, expiration).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return err
	}
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
	return nil
}

// AnalyticsGeneration 返回当前统计缓存代数，未初始化时为 0
func (r *Redis) AnalyticsGeneration(ctx context.Context) (int64, error) {
	n, err := r.Client.Get(ctx, constants.KeyAnalyticsGeneration).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// BumpAnalyticsGeneration 递增代数，使所有已缓存的统计快照失效
func (r *Redis) BumpAnalyticsGeneration(ctx context.Context) error {
	return r.Client.Incr(ctx, constants.KeyAnalyticsGeneration).Err()
}

// AnalyticsSnapshotKey 生成统计快照的key
func AnalyticsSnapshotKey(generation int64, report string, userID uint64) string {
	return fmt.Sprintf(constants.KeyAnalyticsSnapshot, generation, report, userID)
}
