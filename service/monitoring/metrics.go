/*
 * @module service/monitoring/metrics
 * @description 验证管道指标收集，注册Prometheus计数器与直方图
 * @architecture 分层架构 - 监控层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 管道执行 -> 指标打点 -> /metrics 暴露
 * @rules 指标打点不影响管道执行结果
 * @dependencies github.com/prometheus/client_golang
 * @refs service/gtfsrt/orchestrator.go, main.go
 */

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ValidationRuns 数据集级验证运行计数，按结果分类
	ValidationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validation_runs_total",
		Help: "数据集级GTFS-RT验证运行总数",
	}, []string{"result"}) // ok, fatal

	// ResourceValidations 资源级验证尝试计数，按结果分类
	ResourceValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resource_validations_total",
		Help: "资源级GTFS-RT验证尝试总数",
	}, []string{"result"}) // ok, download_failed, validator_failed, report_failed

	// ValidationRunDuration 数据集级验证运行耗时
	ValidationRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "validation_run_duration_seconds",
		Help:    "数据集级GTFS-RT验证运行耗时（秒）",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// DispatchedDatasets 调度器入队的数据集计数
	DispatchedDatasets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "validation_dispatched_datasets_total",
		Help: "调度器入队的候选数据集总数",
	})
)
