/*
 * @module service/gtfsrt/dispatcher
 * @description 验证调度器，定期扫描目录选出候选数据集并为每个数据集入队一个编排任务
 * @architecture 基于Go协程和定时器的调度器模式
 * @documentReference dev_docs/requirements.md
 * @stateFlow 定时触发 -> 资格筛选 -> 逐数据集入队 -> 队列按窗口去重
 * @rules 任务体只携带数据集标识，执行时重新读取实时状态避免陈旧；
 *        零个或多个同时有效的静态资源的数据集直接跳过，不算错误
 * @dependencies github.com/robfig/cron/v3, gorm.io/gorm
 * @refs service/queue/task_queue.go, service/gtfsrt/orchestrator.go
 */

package gtfsrt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"transit-data-service/service/models"
	"transit-data-service/service/monitoring"
	"transit-data-service/service/queue"
)

// Dispatcher 验证调度器
type Dispatcher struct {
	db       *gorm.DB
	queue    *queue.TaskQueue
	cron     *cron.Cron
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewDispatcher 创建验证调度器实例
func NewDispatcher(db *gorm.DB, taskQueue *queue.TaskQueue, interval time.Duration) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		db:       db,
		queue:    taskQueue,
		cron:     cron.New(cron.WithSeconds()),
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start 启动调度器，按固定间隔执行一轮调度
func (d *Dispatcher) Start() error {
	spec := fmt.Sprintf("@every %s", d.interval)
	_, err := d.cron.AddFunc(spec, func() {
		if _, err := d.DispatchAll(d.ctx); err != nil {
			slog.Error("调度轮次失败", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("注册调度任务失败: %w", err)
	}

	d.cron.Start()
	slog.Info("验证调度器启动完成", "interval", d.interval.String())
	return nil
}

// Stop 停止调度器
func (d *Dispatcher) Stop() {
	d.cancel()
	if d.cron != nil {
		d.cron.Stop()
	}
	slog.Info("验证调度器已停止")
}

// SelectValidationCandidates 选出有资格进行实时验证的数据集
// 资格条件：数据集激活；至少一个可用实时资源；恰好一个可用且有效期覆盖今天的静态资源
func (d *Dispatcher) SelectValidationCandidates(ctx context.Context) ([]models.Dataset, error) {
	var datasets []models.Dataset
	err := d.db.WithContext(ctx).Preload("Resources").
		Where("is_active = ?", true).Find(&datasets).Error
	if err != nil {
		return nil, fmt.Errorf("查询激活数据集失败: %w", err)
	}

	today := time.Now()
	var candidates []models.Dataset
	for _, dataset := range datasets {
		if len(dataset.AvailableRealtimeResources()) == 0 {
			continue
		}
		// 恰好一个有效静态资源，避免静态资源选择歧义
		if len(dataset.ValidStaticResources(today)) != 1 {
			continue
		}
		candidates = append(candidates, dataset)
	}

	return candidates, nil
}

// DispatchAll 执行一轮调度，为每个候选数据集入队一个编排任务
// 返回入队的任务数；重复执行由队列按数据集+时间窗口去重
func (d *Dispatcher) DispatchAll(ctx context.Context) (int, error) {
	candidates, err := d.SelectValidationCandidates(ctx)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, dataset := range candidates {
		task := queue.Task{
			ID:         uuid.New().String(),
			Type:       queue.TaskTypeGTFSRTValidation,
			DatasetID:  dataset.ID,
			EnqueuedAt: time.Now().UTC(),
		}
		if err := d.queue.Enqueue(ctx, task); err != nil {
			slog.Error("验证任务入队失败", "dataset_id", dataset.ID, "error", err)
			continue
		}
		monitoring.DispatchedDatasets.Inc()
		enqueued++
	}

	slog.Info("调度轮次完成", "candidates", len(candidates), "enqueued", enqueued)
	return enqueued, nil
}
