/*
 * @module service/queue/task_queue
 * @description 任务队列，负责验证任务的排队、工作池分发、失败重试与退避
 * @architecture 基于Go协程和通道的工作池模式
 * @documentReference dev_docs/requirements.md
 * @stateFlow 任务入队 -> 去重检查 -> 工作协程执行 -> 成功结束/退避重试
 * @rules 至少一次执行语义；任务体只携带数据集标识，执行时重新读取实时状态
 * @dependencies transit-data-service/service/queue(dedup), context, sync
 * @refs service/gtfsrt/dispatcher.go, service/gtfsrt/orchestrator.go
 */

package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// 任务类型
const (
	TaskTypeGTFSRTValidation = "gtfs_rt_validation"
)

// Task 队列任务，只携带数据集标识，其余状态由执行方重新读取
type Task struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	DatasetID  string    `json:"dataset_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	RetryCount int       `json:"retry_count"`
}

// Handler 任务处理函数，返回错误时按退避策略重试
type Handler func(ctx context.Context, task Task) error

// TaskQueue 任务队列
type TaskQueue struct {
	tasks        chan Task
	workerPool   chan struct{}
	handlers     map[string]Handler
	handlerMutex sync.RWMutex
	deduper      Deduper
	maxRetries   int
	retryBase    time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewTaskQueue 创建任务队列实例
func NewTaskQueue(maxWorkers, maxRetries int, deduper Deduper) *TaskQueue {
	ctx, cancel := context.WithCancel(context.Background())

	if deduper == nil {
		deduper = NoopDeduper{}
	}

	q := &TaskQueue{
		tasks:      make(chan Task, 1000),
		workerPool: make(chan struct{}, maxWorkers),
		handlers:   make(map[string]Handler),
		deduper:    deduper,
		maxRetries: maxRetries,
		retryBase:  30 * time.Second,
		ctx:        ctx,
		cancel:     cancel,
	}

	// 启动工作池
	for i := 0; i < maxWorkers; i++ {
		q.wg.Add(1)
		go q.worker()
	}

	return q
}

// RegisterHandler 注册任务类型的处理函数
func (q *TaskQueue) RegisterHandler(taskType string, handler Handler) {
	q.handlerMutex.Lock()
	defer q.handlerMutex.Unlock()
	q.handlers[taskType] = handler
}

// Enqueue 任务入队；同一去重键在时间窗口内只接受一次
func (q *TaskQueue) Enqueue(ctx context.Context, task Task) error {
	acquired, err := q.deduper.TryAcquire(ctx, task.DedupKey(), time.Hour)
	if err != nil {
		// 去重检查失败时照常入队，至少一次语义优先于去重
		slog.Error("任务去重检查失败", "task_id", task.ID, "error", err)
	} else if !acquired {
		slog.Info("任务已在时间窗口内入队，跳过", "task_id", task.ID, "dedup_key", task.DedupKey())
		return nil
	}

	select {
	case q.tasks <- task:
		return nil
	default:
		return fmt.Errorf("任务队列已满")
	}
}

// DedupKey 任务去重键，按类型+数据集+小时窗口
func (t Task) DedupKey() string {
	return fmt.Sprintf("%s:%s:%s", t.Type, t.DatasetID, t.EnqueuedAt.UTC().Format("2006010215"))
}

// worker 工作协程
func (q *TaskQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case task := <-q.tasks:
			q.executeTask(task)
		}
	}
}

// executeTask 执行任务，失败按指数退避重新入队
func (q *TaskQueue) executeTask(task Task) {
	// 获取工作者槽位
	q.workerPool <- struct{}{}
	defer func() { <-q.workerPool }()

	q.handlerMutex.RLock()
	handler, ok := q.handlers[task.Type]
	q.handlerMutex.RUnlock()
	if !ok {
		slog.Error("未注册的任务类型", "task_type", task.Type, "task_id", task.ID)
		return
	}

	start := time.Now()
	err := handler(q.ctx, task)
	if err == nil {
		slog.Info("任务执行完成", "task_id", task.ID, "dataset_id", task.DatasetID,
			"duration_ms", time.Since(start).Milliseconds())
		return
	}

	slog.Error("任务执行失败", "task_id", task.ID, "dataset_id", task.DatasetID,
		"retry_count", task.RetryCount, "error", err)

	if task.RetryCount >= q.maxRetries {
		slog.Error("任务重试次数耗尽，放弃", "task_id", task.ID, "dataset_id", task.DatasetID)
		return
	}

	// 指数退避后重新入队
	task.RetryCount++
	delay := q.retryBase * time.Duration(1<<(task.RetryCount-1))
	go func(t Task, d time.Duration) {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-timer.C:
			select {
			case q.tasks <- t:
			default:
				slog.Error("重试入队失败: 队列已满", "task_id", t.ID)
			}
		case <-q.ctx.Done():
		}
	}(task, delay)
}

// Stop 停止任务队列，等待工作协程退出
func (q *TaskQueue) Stop() {
	q.cancel()
	q.wg.Wait()
}
