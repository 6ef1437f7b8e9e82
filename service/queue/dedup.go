/*
 * @module service/queue/dedup
 * @description 任务去重器，多实例环境下用Redis SET NX防止同一数据集在时间窗口内重复入队
 * @architecture 工具层 - 提供跨实例去重能力
 * @documentReference dev_docs/requirements.md
 * @stateFlow 尝试占用去重键 -> 占用成功则入队 -> 键自动过期
 * @rules 使用Redis SET NX实现，键带TTL自动过期；无Redis时退化为不去重
 * @dependencies github.com/go-redis/redis/v8
 * @refs service/queue/task_queue.go
 */

package queue

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

// Deduper 任务去重接口
type Deduper interface {
	// TryAcquire 尝试占用去重键，返回是否占用成功
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// NoopDeduper 不做去重的实现，单实例部署或测试时使用
type NoopDeduper struct{}

// TryAcquire 总是占用成功
func (NoopDeduper) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}

// RedisDeduper Redis去重实现
type RedisDeduper struct {
	client     *redis.Client
	instanceID string // 实例ID，用于标识键的占用者
}

// NewRedisDeduper 创建Redis去重器
func NewRedisDeduper(addr, password string, db int) (*RedisDeduper, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis连接失败: %w", err)
	}

	// 生成实例ID（使用主机名+进程ID）
	hostname, _ := os.Hostname()
	instanceID := fmt.Sprintf("%s:%d", hostname, os.Getpid())

	slog.Info("Redis任务去重器初始化成功", "instance_id", instanceID, "redis_addr", addr)

	return &RedisDeduper{
		client:     client,
		instanceID: instanceID,
	}, nil
}

// TryAcquire 尝试占用去重键
// 使用SET NX命令，只有当key不存在时才会设置成功
func (r *RedisDeduper) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	dedupKey := fmt.Sprintf("validation_dispatch:dedup:%s", key)

	acquired, err := r.client.SetNX(ctx, dedupKey, r.instanceID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("占用去重键失败: %w", err)
	}
	return acquired, nil
}
