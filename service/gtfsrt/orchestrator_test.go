/*
 * @module service/gtfsrt/orchestrator_test
 * @description 验证编排器测试，覆盖致命错误分类、单资源失败隔离、审计日志与临时文件清理
 * @architecture 测试层
 * @documentReference dev_docs/test_plan.md
 * @stateFlow 构造目录数据 -> 注入伪造的下载器/验证引擎 -> 执行运行 -> 断言持久化产物与清理
 * @rules 使用内存sqlite与临时目录，不访问网络与真实验证引擎
 * @dependencies testing, github.com/stretchr/testify, testutil
 * @refs orchestrator.go
 */

package gtfsrt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transit-data-service/service/config"
	"transit-data-service/service/models"
	"transit-data-service/service/storage"
	"transit-data-service/testutil"
)

// fakeResponse 伪造的HTTP响应
type fakeResponse struct {
	status int
	body   []byte
	err    error
}

// fakeFetcher 按URL返回预设响应的下载器
type fakeFetcher struct {
	responses map[string]fakeResponse
}

func (f *fakeFetcher) Get(ctx context.Context, url string) (int, []byte, error) {
	resp, ok := f.responses[url]
	if !ok {
		return 404, nil, nil
	}
	if resp.err != nil {
		return 0, nil, resp.err
	}
	return resp.status, resp.body, nil
}

// fakeInvoker 伪造的验证引擎：为实时目录下每个.bin文件写出预设的结果JSON
type fakeInvoker struct {
	results   string
	invokeErr error
	calls     int
}

func (f *fakeInvoker) Invoke(ctx context.Context, staticPath, realtimeDir string) error {
	f.calls++
	if f.invokeErr != nil {
		return f.invokeErr
	}
	bins, err := filepath.Glob(filepath.Join(realtimeDir, "*.bin"))
	if err != nil {
		return err
	}
	for _, bin := range bins {
		if err := os.WriteFile(ResultsPath(bin), []byte(f.results), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// orchestratorEnv 编排器测试环境
type orchestratorEnv struct {
	tdb     *testutil.TestDB
	factory *testutil.TestDataFactory
	fetcher *fakeFetcher
	invoker *fakeInvoker
	orch    *Orchestrator
	scratch string
}

func newOrchestratorEnv(t *testing.T) *orchestratorEnv {
	t.Helper()

	scratch := t.TempDir()
	t.Setenv(config.EnvScratchDir, scratch)
	t.Setenv(config.EnvStorageRoot, t.TempDir())
	t.Setenv(config.EnvCacheBaseURL, "https://cache.example.com")

	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)

	cfg := config.NewConfigService()
	fetcher := &fakeFetcher{responses: map[string]fakeResponse{}}
	store := storage.NewFSObjectStore(cfg.StorageRoot(), cfg.CacheBaseURL())
	invoker := &fakeInvoker{results: `[]`}
	snapshots := NewSnapshotManager(fetcher, store, cfg)

	return &orchestratorEnv{
		tdb:     tdb,
		factory: testutil.NewTestDataFactory(tdb.DB),
		fetcher: fetcher,
		invoker: invoker,
		orch:    NewOrchestrator(tdb.DB, snapshots, invoker, nil, cfg),
		scratch: scratch,
	}
}

// seedDataset 创建一个带唯一有效静态资源与快照的数据集
func (e *orchestratorEnv) seedDataset(t *testing.T) (*models.Dataset, *models.Resource) {
	t.Helper()

	dataset := e.factory.CreateDataset()
	static := e.factory.CreateResource(dataset.ID,
		testutil.WithFormat(models.FormatGTFS),
		testutil.WithValidity(time.Now().AddDate(0, -1, 0), time.Now().AddDate(0, 1, 0)),
	)
	permanentURL := "https://cache.example.com/resource-history/gtfs.zip"
	e.factory.CreateResourceHistory(static.ID, permanentURL, time.Now().Add(-time.Hour))
	e.fetcher.responses[permanentURL] = fakeResponse{status: 200, body: []byte("gtfs-zip-bytes")}
	return dataset, static
}

func (e *orchestratorEnv) countLogs(t *testing.T) []models.ValidationLog {
	t.Helper()
	var logs []models.ValidationLog
	require.NoError(t, e.tdb.DB.Order("inserted_at ASC").Find(&logs).Error)
	return logs
}

func TestOrchestrator_NoRealtimeResourcesIsFatal(t *testing.T) {
	env := newOrchestratorEnv(t)
	dataset, _ := env.seedDataset(t)

	err := env.orch.Run(context.Background(), dataset.ID)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoRealtimeResources))
	// 致命错误不产生任何审计日志
	assert.Empty(t, env.countLogs(t))
}

func TestOrchestrator_NoStaticResourceIsFatal(t *testing.T) {
	env := newOrchestratorEnv(t)
	dataset := env.factory.CreateDataset()
	env.factory.CreateResource(dataset.ID, testutil.WithURL("https://feeds.example.com/rt"))

	err := env.orch.Run(context.Background(), dataset.ID)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoStaticResource))
}

func TestOrchestrator_AmbiguousStaticResourceIsFatal(t *testing.T) {
	env := newOrchestratorEnv(t)
	dataset, _ := env.seedDataset(t)
	// 第二个同时有效的静态资源使选择产生歧义
	env.factory.CreateResource(dataset.ID,
		testutil.WithFormat(models.FormatGTFS),
		testutil.WithValidity(time.Now().AddDate(0, -1, 0), time.Now().AddDate(0, 1, 0)),
	)
	env.factory.CreateResource(dataset.ID, testutil.WithURL("https://feeds.example.com/rt"))

	err := env.orch.Run(context.Background(), dataset.ID)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoStaticResource))
}

func TestOrchestrator_NoSnapshotIsFatal(t *testing.T) {
	env := newOrchestratorEnv(t)
	dataset := env.factory.CreateDataset()
	env.factory.CreateResource(dataset.ID,
		testutil.WithFormat(models.FormatGTFS),
		testutil.WithValidity(time.Now().AddDate(0, -1, 0), time.Now().AddDate(0, 1, 0)),
	)
	env.factory.CreateResource(dataset.ID, testutil.WithURL("https://feeds.example.com/rt"))

	err := env.orch.Run(context.Background(), dataset.ID)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSnapshotAvailable))
}

func TestOrchestrator_PartialFailureIsolation(t *testing.T) {
	env := newOrchestratorEnv(t)
	dataset, _ := env.seedDataset(t)

	// R1 验证成功：3条ERROR + 1条WARNING
	r1 := env.factory.CreateResource(dataset.ID, testutil.WithURL("https://feeds.example.com/rt-1"))
	env.fetcher.responses[r1.URL] = fakeResponse{status: 200, body: []byte("rt-proto-1")}
	env.invoker.results = fmt.Sprintf(`[%s,%s,%s,%s]`,
		rawRule("E002", "ERROR", 1), rawRule("E003", "ERROR", 1),
		rawRule("E004", "ERROR", 1), rawRule("W001", "WARNING", 1))

	// R2 下载返回HTTP 500
	r2 := env.factory.CreateResource(dataset.ID, testutil.WithURL("https://feeds.example.com/rt-2"))
	env.fetcher.responses[r2.URL] = fakeResponse{status: 500}

	err := env.orch.Run(context.Background(), dataset.ID)
	require.NoError(t, err)

	// R1 有且仅有一条验证记录，最高严重级别ERROR，总数4
	var records []models.ValidationRecord
	require.NoError(t, env.tdb.DB.Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, r1.ID, records[0].ResourceID)
	require.NotNil(t, records[0].MaxSeverity)
	assert.Equal(t, models.SeverityError, *records[0].MaxSeverity)

	report, err := models.ReportFromJSONB(records[0].Report)
	require.NoError(t, err)
	assert.Equal(t, 4, report.ErrorsCount)

	// 两条审计日志：R1成功，R2失败且信息包含500
	logs := env.countLogs(t)
	require.Len(t, logs, 2)
	byResource := map[string]models.ValidationLog{}
	for _, l := range logs {
		byResource[l.ResourceID] = l
	}
	assert.True(t, byResource[r1.ID].IsSuccess)
	assert.False(t, byResource[r2.ID].IsSuccess)
	assert.Contains(t, byResource[r2.ID].Message, "500")

	// 所有临时文件已清理
	entries, err := os.ReadDir(env.scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOrchestrator_ValidatorFailureIsRecorded(t *testing.T) {
	env := newOrchestratorEnv(t)
	dataset, _ := env.seedDataset(t)
	rt := env.factory.CreateResource(dataset.ID, testutil.WithURL("https://feeds.example.com/rt"))
	env.fetcher.responses[rt.URL] = fakeResponse{status: 200, body: []byte("rt-proto")}
	env.invoker.invokeErr = errors.New("exit status 1")

	err := env.orch.Run(context.Background(), dataset.ID)
	// 验证引擎失败是可恢复错误，不中止运行
	require.NoError(t, err)
	assert.Equal(t, 1, env.invoker.calls)

	logs := env.countLogs(t)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].IsSuccess)
	assert.Contains(t, logs[0].Message, "验证引擎")

	var recordCount int64
	require.NoError(t, env.tdb.DB.Model(&models.ValidationRecord{}).Count(&recordCount).Error)
	assert.Zero(t, recordCount)

	entries, err := os.ReadDir(env.scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOrchestrator_UnknownSeverityAbortsRun(t *testing.T) {
	env := newOrchestratorEnv(t)
	dataset, _ := env.seedDataset(t)
	rt := env.factory.CreateResource(dataset.ID, testutil.WithURL("https://feeds.example.com/rt"))
	env.fetcher.responses[rt.URL] = fakeResponse{status: 200, body: []byte("rt-proto")}
	env.invoker.results = fmt.Sprintf(`[%s]`, rawRule("X001", "INFO", 1))

	err := env.orch.Run(context.Background(), dataset.ID)
	// 模式漂移升级为致命错误
	require.Error(t, err)

	logs := env.countLogs(t)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].IsSuccess)

	// 清理在致命退出路径上同样执行
	entries, readErr := os.ReadDir(env.scratch)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestOrchestrator_NetworkErrorIsRecorded(t *testing.T) {
	env := newOrchestratorEnv(t)
	dataset, _ := env.seedDataset(t)
	rt := env.factory.CreateResource(dataset.ID, testutil.WithURL("https://feeds.example.com/rt"))
	env.fetcher.responses[rt.URL] = fakeResponse{err: errors.New("connection refused")}

	err := env.orch.Run(context.Background(), dataset.ID)
	require.NoError(t, err)

	logs := env.countLogs(t)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].IsSuccess)
	assert.Contains(t, logs[0].Message, "connection refused")
	assert.Equal(t, 0, env.invoker.calls)
}
