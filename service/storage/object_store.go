/*
 * @module service/storage/object_store
 * @description 对象存储能力封装，提供按桶类别上传字节并返回永久访问地址的统一接口
 * @architecture 适配器模式 - 封装存储后端，提供统一的接口
 * @documentReference dev_docs/requirements.md
 * @stateFlow 上传字节 -> 生成永久地址；永久地址推导为纯函数，不发起网络调用
 * @rules 键由调用方保证唯一；同键重复上传为幂等覆盖
 * @dependencies os, path/filepath
 * @refs service/gtfsrt/snapshot.go
 */

package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ObjectStore 对象存储能力接口
type ObjectStore interface {
	// Upload 上传字节到指定桶类别下的键，返回永久访问地址
	Upload(bucketCategory, key string, data []byte) (string, error)
	// PermanentURL 推导键的永久访问地址，纯函数
	PermanentURL(bucketCategory, key string) string
}

// FSObjectStore 文件系统对象存储实现
// 每个桶类别对应根目录下的一个子目录，永久地址由公开基础地址拼接得出
type FSObjectStore struct {
	root    string
	baseURL string
}

// NewFSObjectStore 创建文件系统对象存储实例
func NewFSObjectStore(root, baseURL string) *FSObjectStore {
	return &FSObjectStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Upload 上传字节到指定桶类别下的键
func (s *FSObjectStore) Upload(bucketCategory, key string, data []byte) (string, error) {
	target := filepath.Join(s.root, bucketCategory, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("创建存储目录失败: %w", err)
	}

	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("写入存储对象失败: %w", err)
	}

	url := s.PermanentURL(bucketCategory, key)
	slog.Debug("对象上传完成", "bucket", bucketCategory, "key", key, "size", len(data), "url", url)
	return url, nil
}

// PermanentURL 推导键的永久访问地址
func (s *FSObjectStore) PermanentURL(bucketCategory, key string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, bucketCategory, key)
}
