/*
 * @module service/models/report
 * @description GTFS-RT 验证报告值对象定义，持久化 JSON 结构与严重级别集合
 * @architecture DDD领域驱动设计 - 值对象
 * @documentReference dev_docs/model.md
 * @stateFlow 由报告解析器生成，经结果持久化器写入 ValidationRecord.Report
 * @rules 严重级别只认 WARNING 和 ERROR；MaxSeverity 为空当且仅当无任何规则条目
 * @dependencies encoding/json
 * @refs service/gtfsrt/parser.go
 */

package models

import "encoding/json"

// 验证发现的严重级别，ERROR 高于 WARNING
const (
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
)

// RuleErrorSampleLimit 每条规则保留的出现示例上限
const RuleErrorSampleLimit = 5

// Report GTFS-RT 验证报告，一次（实时资源, 静态快照）验证运行的结构化结果
type Report struct {
	ErrorsCount int         `json:"errors_count"`
	HasErrors   bool        `json:"has_errors"`
	Errors      []RuleError `json:"errors"`
	MaxSeverity *string     `json:"max_severity"`
	Files       ReportFiles `json:"files"`
	UUID        string      `json:"uuid"`
	Datetime    string      `json:"datetime"`
}

// RuleError 单条验证规则的发现汇总
type RuleError struct {
	ErrorID     string   `json:"error_id"`
	Severity    string   `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ErrorsCount int      `json:"errors_count"`
	Errors      []string `json:"errors"` // 出现示例，至多 RuleErrorSampleLimit 条
}

// ReportFiles 报告的文件溯源信息
type ReportFiles struct {
	GTFSResourceHistoryUUID string `json:"gtfs_resource_history_uuid"`
	GTFSPermanentURL        string `json:"gtfs_permanent_url"`
	GTFSRTFilename          string `json:"gtfs_rt_filename"`
	GTFSRTPermanentURL      string `json:"gtfs_rt_permanent_url"`
}

// ToJSONB 将报告转换为可持久化的 JSONB 结构
func (r *Report) ToJSONB() (JSONB, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var result JSONB
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ReportFromJSONB 从持久化的 JSONB 结构还原报告
func ReportFromJSONB(data JSONB) (*Report, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var report Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
