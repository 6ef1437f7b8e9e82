/*
 * @module service/rate_limiter/redis_rate_limiter
 * @description 基于Redis的分布式限流服务，保护手动触发的全量调度接口
 * @architecture 工具层 - 提供分布式限流能力
 * @documentReference dev_docs/requirements.md
 * @stateFlow 检查限流规则 -> Redis计数 -> 判断是否超限
 * @rules 使用Lua脚本实现原子性的固定窗口限流；Redis不可用时降级为全部放行
 * @dependencies github.com/go-redis/redis/v8
 * @refs api/controllers/validation_controller.go
 */

package rate_limiter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimitResult 限流检查结果
type RateLimitResult struct {
	Allowed   bool  `json:"allowed"`   // 是否允许请求
	Limit     int   `json:"limit"`     // 限制数量
	Remaining int   `json:"remaining"` // 剩余数量
	ResetAt   int64 `json:"reset_at"`  // 重置时间（Unix时间戳）
}

// RateLimiter 限流能力接口
type RateLimiter interface {
	// Check 检查操作在时间窗口内是否超限
	Check(ctx context.Context, operation string, maxRequests int, window time.Duration) (*RateLimitResult, error)
}

// NoopRateLimiter 空实现，全部放行
type NoopRateLimiter struct{}

// Check 永远允许
func (NoopRateLimiter) Check(ctx context.Context, operation string, maxRequests int, window time.Duration) (*RateLimitResult, error) {
	return &RateLimitResult{Allowed: true, Limit: -1, Remaining: -1}, nil
}

// RedisRateLimiter Redis限流器
type RedisRateLimiter struct {
	client *redis.Client
}

// NewRedisRateLimiter 创建Redis限流器
func NewRedisRateLimiter(addr string) (*RedisRateLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis连接失败: %w", err)
	}

	slog.Info("Redis限流器初始化成功", "redis_addr", addr)

	return &RedisRateLimiter{client: client}, nil
}

// 固定窗口计数脚本，INCR与EXPIRE原子执行
const rateLimitScript = `
	local key = KEYS[1]
	local max_requests = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = redis.call('GET', key)
	if current == false then
		current = 0
	else
		current = tonumber(current)
	end

	if current >= max_requests then
		local ttl = redis.call('TTL', key)
		if ttl == -1 then
			ttl = window
		end
		return {0, current, ttl}
	end

	local new_count = redis.call('INCR', key)
	if new_count == 1 then
		redis.call('EXPIRE', key, window)
	end

	local ttl = redis.call('TTL', key)
	if ttl == -1 then
		ttl = window
	end

	return {1, new_count, ttl}
`

// Check 检查操作在时间窗口内是否超限
func (r *RedisRateLimiter) Check(ctx context.Context, operation string, maxRequests int, window time.Duration) (*RateLimitResult, error) {
	key := r.buildRateLimitKey(operation, window)

	windowSeconds := int(window.Seconds())
	result, err := r.client.Eval(ctx, rateLimitScript, []string{key}, maxRequests, windowSeconds).Result()
	if err != nil {
		return nil, fmt.Errorf("限流检查失败: %w", err)
	}

	results := result.([]interface{})
	allowed := results[0].(int64) == 1
	currentCount := int(results[1].(int64))
	ttl := int(results[2].(int64))

	remaining := maxRequests - currentCount
	if remaining < 0 {
		remaining = 0
	}

	return &RateLimitResult{
		Allowed:   allowed,
		Limit:     maxRequests,
		Remaining: remaining,
		ResetAt:   time.Now().Add(time.Duration(ttl) * time.Second).Unix(),
	}, nil
}

// buildRateLimitKey 构造限流Key，同一窗口内的请求共享计数
func (r *RedisRateLimiter) buildRateLimitKey(operation string, window time.Duration) string {
	currentWindow := time.Now().Unix() / int64(window.Seconds())
	return fmt.Sprintf("rate_limit:%s:%d", operation, currentWindow)
}

// Close 关闭Redis客户端
func (r *RedisRateLimiter) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
