/*
 * @module service/gtfsrt/orchestrator
 * @description 验证编排器，驱动单个数据集的快照-验证-解析-持久化完整流程
 * @architecture 分层架构 - 业务编排层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 加载数据集 -> 选取静态资源与最新快照 -> 下载静态内容 ->
 *            逐个实时资源快照并验证 -> defer统一清理临时文件
 * @rules 致命错误中止整个运行交由队列重试；单个实时资源的失败只记录审计日志，
 *        绝不影响兄弟资源；清理在所有退出路径上执行
 * @dependencies transit-data-service/service/models, gorm.io/gorm
 * @refs service/gtfsrt/snapshot.go, service/gtfsrt/invoker.go, service/gtfsrt/persister.go
 */

package gtfsrt

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"transit-data-service/service/config"
	"transit-data-service/service/event"
	"transit-data-service/service/models"
	"transit-data-service/service/monitoring"
)

// Orchestrator 验证编排器
type Orchestrator struct {
	db        *gorm.DB
	snapshots *SnapshotManager
	invoker   Invoker
	persister *Persister
	publisher event.Publisher
	config    *config.ConfigService
}

// NewOrchestrator 创建验证编排器实例
func NewOrchestrator(db *gorm.DB, snapshots *SnapshotManager, invoker Invoker,
	publisher event.Publisher, config *config.ConfigService) *Orchestrator {
	if publisher == nil {
		publisher = event.NoopPublisher{}
	}
	return &Orchestrator{
		db:        db,
		snapshots: snapshots,
		invoker:   invoker,
		persister: NewPersister(db),
		publisher: publisher,
		config:    config,
	}
}

// Run 对单个数据集执行一次完整的验证运行
func (o *Orchestrator) Run(ctx context.Context, datasetID string) error {
	start := time.Now()
	err := o.run(ctx, datasetID)
	monitoring.ValidationRunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		monitoring.ValidationRuns.WithLabelValues("fatal").Inc()
	} else {
		monitoring.ValidationRuns.WithLabelValues("ok").Inc()
	}
	return err
}

func (o *Orchestrator) run(ctx context.Context, datasetID string) error {
	var dataset models.Dataset
	if err := o.db.WithContext(ctx).Preload("Resources").
		First(&dataset, "id = ?", datasetID).Error; err != nil {
		return fmt.Errorf("加载数据集 %s 失败: %w", datasetID, err)
	}

	realtime := dataset.AvailableRealtimeResources()
	if len(realtime) == 0 {
		return fmt.Errorf("数据集 %s: %w", dataset.DatagouvID, ErrNoRealtimeResources)
	}

	static, err := o.selectStaticResource(&dataset)
	if err != nil {
		return err
	}

	history, err := o.latestHistory(ctx, static)
	if err != nil {
		return err
	}

	// 临时文件在所有退出路径上统一清理
	scratch := newScratchSet(o.config.ScratchDir())
	defer scratch.Cleanup()

	staticPath, err := o.downloadStatic(ctx, scratch, static, history)
	if err != nil {
		return err
	}

	slog.Info("开始数据集验证运行", "dataset_id", dataset.ID,
		"datagouv_id", dataset.DatagouvID, "realtime_resources", len(realtime))

	// 实时资源顺序处理，单个失败不影响兄弟资源
	for i := range realtime {
		select {
		case <-ctx.Done():
			slog.Info("验证运行被中断", "dataset_id", dataset.ID, "processed", i)
			return ctx.Err()
		default:
		}

		if err := o.validateResource(ctx, scratch, staticPath, history, &realtime[i]); err != nil {
			return err
		}
	}

	return nil
}

// selectStaticResource 按调度器的资格规则选取唯一有效的静态资源
// 零个或多个同时有效的静态资源都视为无法消歧，返回致命错误
func (o *Orchestrator) selectStaticResource(dataset *models.Dataset) (*models.Resource, error) {
	valid := dataset.ValidStaticResources(time.Now())
	if len(valid) != 1 {
		return nil, fmt.Errorf("数据集 %s (有效静态资源 %d 个): %w",
			dataset.DatagouvID, len(valid), ErrNoStaticResource)
	}
	return &valid[0], nil
}

// latestHistory 选取静态资源最新的历史快照
func (o *Orchestrator) latestHistory(ctx context.Context, resource *models.Resource) (*models.ResourceHistory, error) {
	var history models.ResourceHistory
	err := o.db.WithContext(ctx).Where("resource_id = ?", resource.ID).
		Order("inserted_at DESC").First(&history).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("资源 %s: %w", resource.DatagouvID, ErrNoSnapshotAvailable)
		}
		return nil, fmt.Errorf("查询资源 %s 历史快照失败: %w", resource.DatagouvID, err)
	}
	return &history, nil
}

// downloadStatic 从快照永久地址下载静态内容到临时文件
// 静态内容缺失则验证无从进行，失败升级为致命错误
func (o *Orchestrator) downloadStatic(ctx context.Context, scratch *scratchSet,
	resource *models.Resource, history *models.ResourceHistory) (string, error) {
	body, err := o.snapshots.FetchStatic(ctx, history.PermanentURL)
	if err != nil {
		return "", fmt.Errorf("资源 %s: %w", resource.DatagouvID, err)
	}

	path := scratch.StaticPath(resource.DatagouvID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("创建临时目录失败: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("写入静态临时文件失败: %w", err)
	}
	scratch.Track(path)
	return path, nil
}

// validateResource 对单个实时资源执行快照-验证-解析-持久化
// 可恢复失败记录审计日志后返回nil；返回非nil仅限致命错误（如解析模式漂移）
func (o *Orchestrator) validateResource(ctx context.Context, scratch *scratchSet,
	staticPath string, history *models.ResourceHistory, resource *models.Resource) error {
	scratchPath, storageKey, err := o.snapshots.FetchAndArchiveRealtime(ctx, resource, scratch)
	if err != nil {
		monitoring.ResourceValidations.WithLabelValues("download_failed").Inc()
		o.recordFailure(ctx, resource, fmt.Sprintf("实时快照失败: %v", err))
		return nil
	}

	if err := o.invoker.Invoke(ctx, staticPath, filepath.Dir(scratchPath)); err != nil {
		monitoring.ResourceValidations.WithLabelValues("validator_failed").Inc()
		o.recordFailure(ctx, resource, fmt.Sprintf("验证引擎失败: %v", err))
		return nil
	}

	raw, err := os.ReadFile(ResultsPath(scratchPath))
	if err != nil {
		monitoring.ResourceValidations.WithLabelValues("report_failed").Inc()
		o.recordFailure(ctx, resource, fmt.Sprintf("读取验证结果失败: %v", err))
		return nil
	}

	files := models.ReportFiles{
		GTFSResourceHistoryUUID: history.UUID,
		GTFSPermanentURL:        history.PermanentURL,
		GTFSRTFilename:          storageKey,
		GTFSRTPermanentURL:      o.snapshots.SnapshotPermanentURL(storageKey),
	}

	report, err := ParseReport(raw, files, time.Now())
	if err != nil {
		// 未知严重级别是模式漂移信号，升级为致命错误中止整个运行
		monitoring.ResourceValidations.WithLabelValues("report_failed").Inc()
		o.recordFailure(ctx, resource, fmt.Sprintf("解析验证结果失败: %v", err))
		return fmt.Errorf("资源 %s: %w", resource.DatagouvID, err)
	}

	if err := o.persister.Save(resource, report); err != nil {
		monitoring.ResourceValidations.WithLabelValues("report_failed").Inc()
		o.recordFailure(ctx, resource, fmt.Sprintf("持久化验证结果失败: %v", err))
		return nil
	}

	if err := o.persister.LogAttempt(resource, true, ""); err != nil {
		slog.Error("写入成功审计日志失败", "resource_id", resource.ID, "error", err)
	}

	monitoring.ResourceValidations.WithLabelValues("ok").Inc()
	o.publisher.Publish(ctx, event.ValidationEvent{
		Type:        event.TypeValidationSucceeded,
		DatasetID:   resource.DatasetID,
		ResourceID:  resource.ID,
		MaxSeverity: report.MaxSeverity,
		ErrorsCount: report.ErrorsCount,
		OccurredAt:  time.Now().UTC(),
	})

	slog.Info("资源验证完成", "resource_id", resource.ID,
		"datagouv_id", resource.DatagouvID, "errors_count", report.ErrorsCount)
	return nil
}

// recordFailure 记录一次失败的验证尝试
func (o *Orchestrator) recordFailure(ctx context.Context, resource *models.Resource, message string) {
	slog.Error("资源验证失败", "resource_id", resource.ID,
		"datagouv_id", resource.DatagouvID, "reason", message)

	if err := o.persister.LogAttempt(resource, false, message); err != nil {
		slog.Error("写入失败审计日志失败", "resource_id", resource.ID, "error", err)
	}

	o.publisher.Publish(ctx, event.ValidationEvent{
		Type:       event.TypeValidationFailed,
		DatasetID:  resource.DatasetID,
		ResourceID: resource.ID,
		Message:    message,
		OccurredAt: time.Now().UTC(),
	})
}
