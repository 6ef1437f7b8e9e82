/*
 * @module service/config/config_service
 * @description 配置服务，集中管理验证管道的环境变量配置与默认值
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 服务调用 -> 环境变量 -> 默认值
 * @rules 所有配置读取集中于此，避免散落的 os.Getenv
 * @dependencies github.com/spf13/cast
 * @refs service/gtfsrt, service/queue
 */

package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// 配置键
const (
	EnvScratchDir       = "VALIDATION_SCRATCH_DIR"
	EnvValidatorCommand = "GTFS_RT_VALIDATOR_COMMAND"
	EnvValidatorTimeout = "GTFS_RT_VALIDATOR_TIMEOUT_SECONDS"
	EnvCacheBaseURL     = "CELLAR_BASE_URL"
	EnvHistoryBucket    = "HISTORY_BUCKET"
	EnvSnapshotBucket   = "GTFS_RT_SNAPSHOT_BUCKET"
	EnvStorageRoot      = "OBJECT_STORAGE_ROOT"
	EnvDispatchInterval = "VALIDATION_DISPATCH_INTERVAL_SECONDS"
	EnvWorkerCount      = "VALIDATION_WORKER_COUNT"
	EnvTaskMaxRetries   = "VALIDATION_TASK_MAX_RETRIES"
	EnvRedisAddr        = "REDIS_ADDR"
	EnvKafkaBrokers     = "KAFKA_BROKERS"
	EnvKafkaTopic       = "KAFKA_VALIDATION_TOPIC"
	EnvLogRetention     = "VALIDATION_LOG_RETENTION_DAYS"
	EnvRecordRetention  = "VALIDATION_RECORD_RETENTION_DAYS"
	EnvDispatchRate     = "MANUAL_DISPATCH_MAX_PER_MINUTE"
)

// 默认值
const (
	DefaultValidatorCommand = "gtfs-realtime-validator"
	DefaultValidatorTimeout = 180
	DefaultHistoryBucket    = "resource-history"
	DefaultSnapshotBucket   = "gtfs-rt-snapshots"
	DefaultDispatchInterval = 1800
	DefaultWorkerCount      = 4
	DefaultTaskMaxRetries   = 2
	DefaultKafkaTopic       = "validation-events"
	DefaultLogRetention     = 30
	DefaultRecordRetention  = 180
	DefaultDispatchRate     = 10
)

// ConfigService 配置服务
type ConfigService struct{}

// NewConfigService 创建配置服务实例
func NewConfigService() *ConfigService {
	return &ConfigService{}
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ScratchDir 验证管道临时文件目录
func (s *ConfigService) ScratchDir() string {
	return getEnvWithDefault(EnvScratchDir, os.TempDir())
}

// ValidatorCommand 外部验证引擎可执行文件
func (s *ConfigService) ValidatorCommand() string {
	return getEnvWithDefault(EnvValidatorCommand, DefaultValidatorCommand)
}

// ValidatorTimeout 单次验证引擎调用超时
func (s *ConfigService) ValidatorTimeout() time.Duration {
	seconds := cast.ToInt(os.Getenv(EnvValidatorTimeout))
	if seconds <= 0 {
		seconds = DefaultValidatorTimeout
	}
	return time.Duration(seconds) * time.Second
}

// CacheBaseURL 对象存储的公开访问基础地址
func (s *ConfigService) CacheBaseURL() string {
	return getEnvWithDefault(EnvCacheBaseURL, "http://localhost:9000")
}

// HistoryBucket 静态资源快照桶类别
func (s *ConfigService) HistoryBucket() string {
	return getEnvWithDefault(EnvHistoryBucket, DefaultHistoryBucket)
}

// SnapshotBucket 实时快照桶类别
func (s *ConfigService) SnapshotBucket() string {
	return getEnvWithDefault(EnvSnapshotBucket, DefaultSnapshotBucket)
}

// StorageRoot 文件系统对象存储根目录
func (s *ConfigService) StorageRoot() string {
	return getEnvWithDefault(EnvStorageRoot, "/var/lib/transit-data/storage")
}

// DispatchInterval 候选数据集扫描周期
func (s *ConfigService) DispatchInterval() time.Duration {
	seconds := cast.ToInt(os.Getenv(EnvDispatchInterval))
	if seconds <= 0 {
		seconds = DefaultDispatchInterval
	}
	return time.Duration(seconds) * time.Second
}

// WorkerCount 任务队列工作协程数
func (s *ConfigService) WorkerCount() int {
	count := cast.ToInt(os.Getenv(EnvWorkerCount))
	if count <= 0 {
		count = DefaultWorkerCount
	}
	return count
}

// TaskMaxRetries 任务失败后的最大重试次数
func (s *ConfigService) TaskMaxRetries() int {
	raw := os.Getenv(EnvTaskMaxRetries)
	if raw == "" {
		return DefaultTaskMaxRetries
	}
	retries := cast.ToInt(raw)
	if retries < 0 {
		return DefaultTaskMaxRetries
	}
	return retries
}

// RedisAddr Redis地址，为空表示不启用跨实例去重
func (s *ConfigService) RedisAddr() string {
	return os.Getenv(EnvRedisAddr)
}

// KafkaBrokers Kafka broker 列表（逗号分隔），为空表示不启用事件发布
func (s *ConfigService) KafkaBrokers() []string {
	raw := os.Getenv(EnvKafkaBrokers)
	if raw == "" {
		return nil
	}
	var brokers []string
	for _, broker := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}

// KafkaTopic 验证事件主题
func (s *ConfigService) KafkaTopic() string {
	return getEnvWithDefault(EnvKafkaTopic, DefaultKafkaTopic)
}

// LogRetentionDays 验证审计日志保留天数
func (s *ConfigService) LogRetentionDays() int {
	days := cast.ToInt(os.Getenv(EnvLogRetention))
	if days <= 0 {
		days = DefaultLogRetention
	}
	return days
}

// RecordRetentionDays 验证结果记录保留天数
func (s *ConfigService) RecordRetentionDays() int {
	days := cast.ToInt(os.Getenv(EnvRecordRetention))
	if days <= 0 {
		days = DefaultRecordRetention
	}
	return days
}

// DispatchRatePerMinute 手动触发全量调度的每分钟上限
func (s *ConfigService) DispatchRatePerMinute() int {
	rate := cast.ToInt(os.Getenv(EnvDispatchRate))
	if rate <= 0 {
		rate = DefaultDispatchRate
	}
	return rate
}
