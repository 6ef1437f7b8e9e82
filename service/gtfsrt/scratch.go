/*
 * @module service/gtfsrt/scratch
 * @description 临时文件集合，跟踪一次验证运行创建的所有临时路径并保证退出时清理
 * @architecture 作用域资源管理 - 获取路径、执行管道、defer统一释放
 * @documentReference dev_docs/requirements.md
 * @stateFlow 路径登记 -> 管道执行 -> 无论正常返回/提前返回/异常均执行清理
 * @rules 清理失败只记录日志，绝不上抛；临时目录按资源稳定标识隔离
 * @dependencies os, path/filepath
 * @refs service/gtfsrt/orchestrator.go, service/gtfsrt/snapshot.go
 */

package gtfsrt

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// scratchSet 一次验证运行的临时路径集合
type scratchSet struct {
	base  string
	paths []string
}

// newScratchSet 创建临时路径集合
func newScratchSet(base string) *scratchSet {
	return &scratchSet{base: base}
}

// Track 登记一个待清理的临时路径
func (s *scratchSet) Track(path string) {
	s.paths = append(s.paths, path)
}

// StaticPath 静态资源的临时文件路径，按资源稳定标识隔离
func (s *scratchSet) StaticPath(datagouvID string) string {
	return filepath.Join(s.base, fmt.Sprintf("gtfs-%s.zip", datagouvID))
}

// RealtimeDir 实时资源的临时目录，按资源稳定标识隔离
func (s *scratchSet) RealtimeDir(datagouvID string) string {
	return filepath.Join(s.base, fmt.Sprintf("gtfs-rt-%s", datagouvID))
}

// Cleanup 清理所有已登记的临时路径
// 清理失败只记录日志，不影响运行结果
func (s *scratchSet) Cleanup() {
	for _, path := range s.paths {
		if err := os.RemoveAll(path); err != nil {
			slog.Error("临时文件清理失败", "path", path, "error", err)
		}
	}
	s.paths = nil
}
