/*
 * @module service/queue/task_queue_test
 * @description 任务队列测试，覆盖处理函数分发、去重跳过、去重降级与失败重试
 * @architecture 测试层
 * @documentReference dev_docs/test_plan.md
 * @stateFlow 入队 -> 等待工作协程执行 -> 断言执行次数
 * @rules 缩短退避基数以便测试，不依赖外部Redis
 * @dependencies testing, sync/atomic, github.com/stretchr/testify
 * @refs task_queue.go, dedup.go
 */

package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDeduper 可编程的去重器
type fakeDeduper struct {
	acquired bool
	err      error
	calls    int32
}

func (d *fakeDeduper) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&d.calls, 1)
	return d.acquired, d.err
}

func newTask(datasetID string) Task {
	return Task{
		ID:         fmt.Sprintf("task-%s", datasetID),
		Type:       TaskTypeGTFSRTValidation,
		DatasetID:  datasetID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// waitFor 轮询等待条件成立，避免测试中的固定长睡眠
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond(), "条件在超时前未成立")
}

func TestTaskQueue_ExecutesRegisteredHandler(t *testing.T) {
	q := NewTaskQueue(2, 0, NoopDeduper{})
	defer q.Stop()

	var executed int32
	var gotDatasetID atomic.Value
	q.RegisterHandler(TaskTypeGTFSRTValidation, func(ctx context.Context, task Task) error {
		gotDatasetID.Store(task.DatasetID)
		atomic.AddInt32(&executed, 1)
		return nil
	})

	require.NoError(t, q.Enqueue(context.Background(), newTask("ds-1")))

	waitFor(t, 2*time.Second, func() bool {
		return atomic.LoadInt32(&executed) == 1
	})
	assert.Equal(t, "ds-1", gotDatasetID.Load())
}

func TestTaskQueue_DedupSkipsDuplicate(t *testing.T) {
	deduper := &fakeDeduper{acquired: false}
	q := NewTaskQueue(1, 0, deduper)
	defer q.Stop()

	var executed int32
	q.RegisterHandler(TaskTypeGTFSRTValidation, func(ctx context.Context, task Task) error {
		atomic.AddInt32(&executed, 1)
		return nil
	})

	// 去重器判定重复，入队成功但任务被跳过
	require.NoError(t, q.Enqueue(context.Background(), newTask("ds-1")))

	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&executed))
	assert.EqualValues(t, 1, atomic.LoadInt32(&deduper.calls))
}

func TestTaskQueue_DedupErrorFallsBackToEnqueue(t *testing.T) {
	deduper := &fakeDeduper{err: errors.New("redis连接失败")}
	q := NewTaskQueue(1, 0, deduper)
	defer q.Stop()

	var executed int32
	q.RegisterHandler(TaskTypeGTFSRTValidation, func(ctx context.Context, task Task) error {
		atomic.AddInt32(&executed, 1)
		return nil
	})

	// 去重检查失败时照常入队，至少一次语义优先
	require.NoError(t, q.Enqueue(context.Background(), newTask("ds-1")))

	waitFor(t, 2*time.Second, func() bool {
		return atomic.LoadInt32(&executed) == 1
	})
}

func TestTaskQueue_RetriesFailedTaskWithBackoff(t *testing.T) {
	q := NewTaskQueue(1, 2, NoopDeduper{})
	q.retryBase = 5 * time.Millisecond
	defer q.Stop()

	var attempts int32
	q.RegisterHandler(TaskTypeGTFSRTValidation, func(ctx context.Context, task Task) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("验证运行失败")
		}
		return nil
	})

	require.NoError(t, q.Enqueue(context.Background(), newTask("ds-1")))

	// 首次执行 + 两次重试后成功
	waitFor(t, 2*time.Second, func() bool {
		return atomic.LoadInt32(&attempts) == 3
	})
}

func TestTaskQueue_GivesUpAfterMaxRetries(t *testing.T) {
	q := NewTaskQueue(1, 1, NoopDeduper{})
	q.retryBase = 5 * time.Millisecond
	defer q.Stop()

	var attempts int32
	q.RegisterHandler(TaskTypeGTFSRTValidation, func(ctx context.Context, task Task) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("持续失败")
	})

	require.NoError(t, q.Enqueue(context.Background(), newTask("ds-1")))

	waitFor(t, 2*time.Second, func() bool {
		return atomic.LoadInt32(&attempts) == 2
	})

	// 重试耗尽后不再执行
	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 2, atomic.LoadInt32(&attempts))
}

func TestTaskQueue_UnregisteredTypeIsDropped(t *testing.T) {
	q := NewTaskQueue(1, 0, NoopDeduper{})
	defer q.Stop()

	task := newTask("ds-1")
	task.Type = "unknown_type"
	require.NoError(t, q.Enqueue(context.Background(), task))

	// 未注册类型被丢弃，不阻塞后续任务
	var executed int32
	q.RegisterHandler(TaskTypeGTFSRTValidation, func(ctx context.Context, task Task) error {
		atomic.AddInt32(&executed, 1)
		return nil
	})
	require.NoError(t, q.Enqueue(context.Background(), newTask("ds-2")))

	waitFor(t, 2*time.Second, func() bool {
		return atomic.LoadInt32(&executed) == 1
	})
}

func TestTaskDedupKey(t *testing.T) {
	enqueuedAt := time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC)
	task := Task{
		Type:       TaskTypeGTFSRTValidation,
		DatasetID:  "ds-1",
		EnqueuedAt: enqueuedAt,
	}
	assert.Equal(t, "gtfs_rt_validation:ds-1:2026082914", task.DedupKey())

	// 同一小时窗口内的任务共享去重键
	other := task
	other.EnqueuedAt = enqueuedAt.Add(25 * time.Minute)
	assert.Equal(t, task.DedupKey(), other.DedupKey())

	// 跨窗口的任务键不同
	next := task
	next.EnqueuedAt = enqueuedAt.Add(time.Hour)
	assert.NotEqual(t, task.DedupKey(), next.DedupKey())
}
