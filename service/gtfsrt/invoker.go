/*
 * @module service/gtfsrt/invoker
 * @description 验证引擎调用器，以子进程方式运行外部GTFS-RT验证引擎
 * @architecture 适配器模式 - 窄接口封装子进程调用，便于替换验证引擎实现
 * @documentReference dev_docs/requirements.md
 * @stateFlow 启动子进程(静态文件路径, 实时快照目录) -> 等待退出 -> 退出码判定
 * @rules 非零退出或启动失败是错误值，绝不中断整个数据集运行；
 *        引擎将结果写入 <实时临时文件>.results.json，本层不解析输出
 * @dependencies os/exec, context
 * @refs service/gtfsrt/orchestrator.go, service/gtfsrt/parser.go
 */

package gtfsrt

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// Invoker 验证引擎调用能力接口
type Invoker interface {
	// Invoke 对(静态文件, 实时快照目录)运行验证引擎
	Invoke(ctx context.Context, staticPath, realtimeDir string) error
}

// CommandInvoker 子进程验证引擎调用器
type CommandInvoker struct {
	command string
	timeout time.Duration
}

// NewCommandInvoker 创建子进程调用器实例
func NewCommandInvoker(command string, timeout time.Duration) *CommandInvoker {
	return &CommandInvoker{
		command: command,
		timeout: timeout,
	}
}

// Invoke 运行外部验证引擎
// 引擎接收两个位置参数：静态文件路径与实时快照目录
func (i *CommandInvoker) Invoke(ctx context.Context, staticPath, realtimeDir string) error {
	runCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, i.command, staticPath, realtimeDir)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("验证引擎执行失败: %w: %s", err, truncateOutput(output))
	}
	return nil
}

// ResultsPath 验证引擎输出文件的固定路径
func ResultsPath(realtimeScratchPath string) string {
	return realtimeScratchPath + ".results.json"
}

// truncateOutput 截断子进程输出用于错误信息
func truncateOutput(output []byte) string {
	const limit = 300
	if len(output) > limit {
		return string(output[:limit]) + "..."
	}
	return string(output)
}
