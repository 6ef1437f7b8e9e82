/*
 * @module service/gtfsrt/snapshot_test
 * @description 快照管理器测试，覆盖静态下载、实时归档与存储键格式
 * @architecture 测试层
 * @documentReference dev_docs/test_plan.md
 * @stateFlow 启动测试HTTP服务 -> 下载归档 -> 断言临时文件与存储对象
 * @rules 使用httptest与临时目录，不访问外部网络
 * @dependencies testing, net/http/httptest, github.com/stretchr/testify
 * @refs snapshot.go
 */

package gtfsrt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transit-data-service/service/config"
	"transit-data-service/service/httpclient"
	"transit-data-service/service/models"
	"transit-data-service/service/storage"
)

func newSnapshotManager(t *testing.T) (*SnapshotManager, string) {
	t.Helper()

	storageRoot := t.TempDir()
	t.Setenv(config.EnvStorageRoot, storageRoot)
	t.Setenv(config.EnvCacheBaseURL, "https://cache.example.com")

	cfg := config.NewConfigService()
	fetcher := httpclient.NewHTTPFetcher(5 * time.Second)
	store := storage.NewFSObjectStore(cfg.StorageRoot(), cfg.CacheBaseURL())
	return NewSnapshotManager(fetcher, store, cfg), storageRoot
}

func TestFetchStatic(t *testing.T) {
	manager, _ := newSnapshotManager(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("gtfs-zip-bytes"))
	}))
	defer server.Close()

	body, err := manager.FetchStatic(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte("gtfs-zip-bytes"), body)
}

func TestFetchStatic_FollowsRedirect(t *testing.T) {
	manager, _ := newSnapshotManager(t)

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("redirected-bytes"))
	}))
	defer target.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer server.Close()

	body, err := manager.FetchStatic(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte("redirected-bytes"), body)
}

func TestFetchStatic_NonOKStatusIsError(t *testing.T) {
	manager, _ := newSnapshotManager(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := manager.FetchStatic(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchAndArchiveRealtime(t *testing.T) {
	manager, storageRoot := newSnapshotManager(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("rt-proto-bytes"))
	}))
	defer server.Close()

	scratch := newScratchSet(t.TempDir())
	defer scratch.Cleanup()

	resource := &models.Resource{DatagouvID: "rt-abc", URL: server.URL}
	scratchPath, storageKey, err := manager.FetchAndArchiveRealtime(context.Background(), resource, scratch)
	require.NoError(t, err)

	// 临时文件内容与下载字节一致
	data, err := os.ReadFile(scratchPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("rt-proto-bytes"), data)

	// 存储键按资源标识命名空间并带微秒时间戳
	keyPattern := regexp.MustCompile(`^rt-abc/rt-abc\.\d{8}-\d{6}\.\d{6}\.bin$`)
	assert.Regexp(t, keyPattern, storageKey)

	// 同一份字节已归档到对象存储
	stored, err := os.ReadFile(filepath.Join(storageRoot, config.DefaultSnapshotBucket, filepath.FromSlash(storageKey)))
	require.NoError(t, err)
	assert.Equal(t, []byte("rt-proto-bytes"), stored)
}

func TestFetchAndArchiveRealtime_HTTPErrorIsValue(t *testing.T) {
	manager, _ := newSnapshotManager(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	scratch := newScratchSet(t.TempDir())
	defer scratch.Cleanup()

	resource := &models.Resource{DatagouvID: "rt-err", URL: server.URL}
	_, _, err := manager.FetchAndArchiveRealtime(context.Background(), resource, scratch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestSnapshotKeysAreChronologicallyOrdered(t *testing.T) {
	manager, _ := newSnapshotManager(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer server.Close()

	scratch := newScratchSet(t.TempDir())
	defer scratch.Cleanup()

	resource := &models.Resource{DatagouvID: "rt-ord", URL: server.URL}
	_, first, err := manager.FetchAndArchiveRealtime(context.Background(), resource, scratch)
	require.NoError(t, err)
	time.Sleep(2 * time.Microsecond)
	_, second, err := manager.FetchAndArchiveRealtime(context.Background(), resource, scratch)
	require.NoError(t, err)

	// 微秒时间戳保证同资源重复归档的键唯一且按时间排序
	assert.NotEqual(t, first, second)
	assert.Less(t, first, second)
}

func TestScratchSetCleanup(t *testing.T) {
	base := t.TempDir()
	scratch := newScratchSet(base)

	path := scratch.StaticPath("ds-1")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	scratch.Track(path)

	dir := scratch.RealtimeDir("rt-1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rt-1.bin"), []byte("y"), 0o644))
	scratch.Track(dir)

	scratch.Cleanup()

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
