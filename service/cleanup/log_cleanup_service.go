/*
 * @module service/cleanup/log_cleanup_service
 * @description 日志清理服务，负责定期清理过期的验证审计日志与验证结果记录
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 定时触发 -> 读取保留天数配置 -> 执行清理 -> 记录结果
 * @rules 确保日志清理不影响验证管道正常运行
 * @dependencies transit-data-service/service/config, gorm.io/gorm, github.com/robfig/cron/v3
 * @refs service/config
 */

package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"transit-data-service/service/config"
	"transit-data-service/service/models"
)

// LogCleanupService 日志清理服务
type LogCleanupService struct {
	db            *gorm.DB
	configService *config.ConfigService
	cron          *cron.Cron
	ctx           context.Context
	cancel        context.CancelFunc
	started       bool
}

// NewLogCleanupService 创建日志清理服务实例
func NewLogCleanupService(db *gorm.DB, configService *config.ConfigService) *LogCleanupService {
	ctx, cancel := context.WithCancel(context.Background())

	return &LogCleanupService{
		db:            db,
		configService: configService,
		cron:          cron.New(cron.WithSeconds()),
		ctx:           ctx,
		cancel:        cancel,
		started:       false,
	}
}

// CleanupExpiredLogs 清理所有过期的验证数据
func (s *LogCleanupService) CleanupExpiredLogs(ctx context.Context) error {
	slog.Info("开始清理过期验证数据")
	startTime := time.Now()

	logRetentionDays := s.configService.LogRetentionDays()
	logsDeleted, err := s.CleanupValidationLogs(ctx, logRetentionDays)
	if err != nil {
		slog.Error("清理验证审计日志失败", "error", err)
	} else {
		slog.Info("清理验证审计日志完成", "deleted_count", logsDeleted, "retention_days", logRetentionDays)
	}

	recordRetentionDays := s.configService.RecordRetentionDays()
	recordsDeleted, err := s.CleanupValidationRecords(ctx, recordRetentionDays)
	if err != nil {
		slog.Error("清理验证结果记录失败", "error", err)
	} else {
		slog.Info("清理验证结果记录完成", "deleted_count", recordsDeleted, "retention_days", recordRetentionDays)
	}

	slog.Info("验证数据清理完成",
		"logs_deleted", logsDeleted,
		"records_deleted", recordsDeleted,
		"duration_ms", time.Since(startTime).Milliseconds())

	return nil
}

// CleanupValidationLogs 清理超过保留期的验证审计日志
func (s *LogCleanupService) CleanupValidationLogs(ctx context.Context, retentionDays int) (int64, error) {
	cutoffDate := time.Now().AddDate(0, 0, -retentionDays)

	slog.Debug("清理验证审计日志", "cutoff_date", cutoffDate.Format("2006-01-02 15:04:05"), "retention_days", retentionDays)

	result := s.db.WithContext(ctx).Where("inserted_at < ?", cutoffDate).Delete(&models.ValidationLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("删除验证审计日志失败: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// CleanupValidationRecords 清理超过保留期的验证结果记录
// 结果记录保留期通常长于审计日志，供历史趋势查询使用
func (s *LogCleanupService) CleanupValidationRecords(ctx context.Context, retentionDays int) (int64, error) {
	cutoffDate := time.Now().AddDate(0, 0, -retentionDays)

	slog.Debug("清理验证结果记录", "cutoff_date", cutoffDate.Format("2006-01-02 15:04:05"), "retention_days", retentionDays)

	result := s.db.WithContext(ctx).Where("validated_at < ?", cutoffDate).Delete(&models.ValidationRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("删除验证结果记录失败: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// StartScheduledCleanup 启动定时清理任务
func (s *LogCleanupService) StartScheduledCleanup() error {
	if s.started {
		return fmt.Errorf("日志清理调度器已经启动")
	}

	slog.Info("启动日志清理调度器")

	// 每天凌晨2点执行清理任务
	// Cron表达式：秒 分 时 日 月 周
	_, err := s.cron.AddFunc("0 0 2 * * *", func() {
		slog.Info("开始执行定时日志清理任务")

		if err := s.CleanupExpiredLogs(s.ctx); err != nil {
			slog.Error("定时日志清理任务失败", "error", err)
		}
	})

	if err != nil {
		return fmt.Errorf("添加定时任务失败: %w", err)
	}

	s.cron.Start()
	s.started = true

	slog.Info("日志清理调度器启动成功，将于每天凌晨2点执行清理任务")

	return nil
}

// StopScheduledCleanup 停止定时清理任务
func (s *LogCleanupService) StopScheduledCleanup() {
	if !s.started {
		return
	}

	slog.Info("停止日志清理调度器")

	s.cancel()

	if s.cron != nil {
		s.cron.Stop()
	}

	s.started = false

	slog.Info("日志清理调度器已停止")
}
