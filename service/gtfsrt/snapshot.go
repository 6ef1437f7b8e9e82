/*
 * @module service/gtfsrt/snapshot
 * @description 快照管理器，下载静态资源内容并将实时资源快照归档到对象存储
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 下载字节 -> 写入临时路径 -> 上传对象存储（实时资源）
 * @rules 实时资源下载失败是高频预期错误，以错误值返回而非中断运行；
 *        存储键带微秒时间戳后缀，保证全局唯一且按时间自然排序
 * @dependencies transit-data-service/service/httpclient, transit-data-service/service/storage
 * @refs service/gtfsrt/orchestrator.go
 */

package gtfsrt

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"transit-data-service/service/config"
	"transit-data-service/service/httpclient"
	"transit-data-service/service/models"
	"transit-data-service/service/storage"
)

// 存储键时间戳格式，微秒精度
const snapshotTimestampLayout = "20060102-150405.000000"

// SnapshotManager 快照管理器
type SnapshotManager struct {
	fetcher httpclient.Fetcher
	store   storage.ObjectStore
	config  *config.ConfigService
}

// NewSnapshotManager 创建快照管理器实例
func NewSnapshotManager(fetcher httpclient.Fetcher, store storage.ObjectStore, config *config.ConfigService) *SnapshotManager {
	return &SnapshotManager{
		fetcher: fetcher,
		store:   store,
		config:  config,
	}
}

// FetchStatic 下载静态资源快照的字节内容
// 任何非200状态或网络错误都是错误，由编排器升级为致命错误
func (m *SnapshotManager) FetchStatic(ctx context.Context, url string) ([]byte, error) {
	status, body, err := m.fetcher.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("下载静态资源失败: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("下载静态资源失败: HTTP %d", status)
	}
	return body, nil
}

// FetchAndArchiveRealtime 下载实时资源并归档到对象存储
// 返回临时文件路径与存储键；下载失败以错误值返回
func (m *SnapshotManager) FetchAndArchiveRealtime(ctx context.Context, resource *models.Resource, scratch *scratchSet) (string, string, error) {
	status, body, err := m.fetcher.Get(ctx, resource.URL)
	if err != nil {
		return "", "", fmt.Errorf("下载实时资源失败: %w", err)
	}
	if status != http.StatusOK {
		return "", "", fmt.Errorf("下载实时资源失败: HTTP %d", status)
	}

	// 写入按资源标识隔离的临时目录
	dir := scratch.RealtimeDir(resource.DatagouvID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("创建临时目录失败: %w", err)
	}
	scratch.Track(dir)

	scratchPath := filepath.Join(dir, resource.DatagouvID+".bin")
	if err := os.WriteFile(scratchPath, body, 0o644); err != nil {
		return "", "", fmt.Errorf("写入临时文件失败: %w", err)
	}

	// 上传同一份字节到对象存储，键带微秒时间戳
	timestamp := time.Now().UTC().Format(snapshotTimestampLayout)
	storageKey := fmt.Sprintf("%s/%s.%s.bin", resource.DatagouvID, resource.DatagouvID, timestamp)
	if _, err := m.store.Upload(m.config.SnapshotBucket(), storageKey, body); err != nil {
		return "", "", fmt.Errorf("上传实时快照失败: %w", err)
	}

	return scratchPath, storageKey, nil
}

// SnapshotPermanentURL 推导实时快照存储键的永久访问地址
func (m *SnapshotManager) SnapshotPermanentURL(storageKey string) string {
	return m.store.PermanentURL(m.config.SnapshotBucket(), storageKey)
}
