/*
 * @module service/gtfsrt/parser
 * @description 报告解析器，将外部验证引擎的原始JSON输出归一化为带严重级别的结构化报告
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 原始JSON -> 逐规则提取 -> 严重级别聚合 -> 溯源信息附加
 * @rules 严重级别集合必须是{WARNING, ERROR}的子集，出现未知级别立即报错（模式漂移信号）；
 *        每条规则的出现示例截断到固定上限
 * @dependencies encoding/json, github.com/google/uuid
 * @refs service/gtfsrt/orchestrator.go, service/models/report.go
 */

package gtfsrt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"transit-data-service/service/models"
)

// 验证引擎原始输出结构
type rawEntry struct {
	ErrorMessage   rawErrorMessage `json:"errorMessage"`
	OccurrenceList []rawOccurrence `json:"occurrenceList"`
}

type rawErrorMessage struct {
	ValidationRule rawValidationRule `json:"validationRule"`
}

type rawValidationRule struct {
	ErrorID          string `json:"errorId"`
	Severity         string `json:"severity"`
	Title            string `json:"title"`
	ErrorDescription string `json:"errorDescription"`
	OccurrenceSuffix string `json:"occurrenceSuffix"`
}

type rawOccurrence struct {
	Prefix string `json:"prefix"`
}

// ParseReport 解析验证引擎的原始输出
// 附加文件溯源信息、新生成的唯一标识与当前时间戳
func ParseReport(raw []byte, files models.ReportFiles, now time.Time) (*models.Report, error) {
	var entries []rawEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("解析验证结果失败: %w", err)
	}

	report := &models.Report{
		Errors:   make([]models.RuleError, 0, len(entries)),
		Files:    files,
		UUID:     uuid.New().String(),
		Datetime: now.UTC().Format(time.RFC3339),
	}

	hasError := false
	hasWarning := false

	for _, entry := range entries {
		rule := entry.ErrorMessage.ValidationRule

		switch rule.Severity {
		case models.SeverityError:
			hasError = true
		case models.SeverityWarning:
			hasWarning = true
		default:
			return nil, fmt.Errorf("未知的严重级别 %q (规则 %s)", rule.Severity, rule.ErrorID)
		}

		// 出现示例由前缀与规则级后缀拼接，截断到固定上限
		samples := make([]string, 0, models.RuleErrorSampleLimit)
		for _, occurrence := range entry.OccurrenceList {
			if len(samples) >= models.RuleErrorSampleLimit {
				break
			}
			samples = append(samples, occurrence.Prefix+" "+rule.OccurrenceSuffix)
		}

		report.Errors = append(report.Errors, models.RuleError{
			ErrorID:     rule.ErrorID,
			Severity:    rule.Severity,
			Title:       rule.Title,
			Description: rule.ErrorDescription,
			ErrorsCount: len(entry.OccurrenceList),
			Errors:      samples,
		})
		report.ErrorsCount += len(entry.OccurrenceList)
	}

	report.HasErrors = report.ErrorsCount > 0

	// 最高严重级别：无任何规则条目时为空
	switch {
	case hasError:
		severity := models.SeverityError
		report.MaxSeverity = &severity
	case hasWarning:
		severity := models.SeverityWarning
		report.MaxSeverity = &severity
	}

	return report, nil
}
