/*
 * @module service/gtfsrt/persister
 * @description 结果持久化器，写入验证结果记录与审计日志
 * @architecture 分层架构 - 数据访问层
 * @documentReference dev_docs/model.md
 * @stateFlow 报告合并到资源元数据 -> 创建不可变验证记录 -> 创建审计日志
 * @rules 每次（资源, 验证尝试）恰好写入一条审计日志；验证记录创建后不可变更
 * @dependencies transit-data-service/service/models, gorm.io/gorm
 * @refs service/gtfsrt/orchestrator.go
 */

package gtfsrt

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"transit-data-service/service/models"
)

// Persister 结果持久化器
type Persister struct {
	db *gorm.DB
}

// NewPersister 创建结果持久化器实例
func NewPersister(db *gorm.DB) *Persister {
	return &Persister{db: db}
}

// Save 持久化验证报告
// 将报告合并到资源元数据，并在同一事务内创建新的不可变验证记录
func (p *Persister) Save(resource *models.Resource, report *models.Report) error {
	reportJSON, err := report.ToJSONB()
	if err != nil {
		return fmt.Errorf("报告序列化失败: %w", err)
	}

	validatedAt, err := time.Parse(time.RFC3339, report.Datetime)
	if err != nil {
		validatedAt = time.Now().UTC()
	}

	return p.db.Transaction(func(tx *gorm.DB) error {
		// 合并报告到资源元数据字段
		if resource.Metadata == nil {
			resource.Metadata = models.JSONB{}
		}
		resource.Metadata["validation"] = map[string]interface{}(reportJSON)
		if err := tx.Model(&models.Resource{}).Where("id = ?", resource.ID).
			Update("metadata", resource.Metadata).Error; err != nil {
			return fmt.Errorf("更新资源元数据失败: %w", err)
		}

		record := &models.ValidationRecord{
			ResourceID:  resource.ID,
			Report:      reportJSON,
			MaxSeverity: report.MaxSeverity,
			ValidatedAt: validatedAt,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("创建验证记录失败: %w", err)
		}
		return nil
	})
}

// LogAttempt 写入一条验证尝试的审计日志
// 成功或失败都恰好写入一条，失败时附带可读的原因说明
func (p *Persister) LogAttempt(resource *models.Resource, isSuccess bool, message string) error {
	log := &models.ValidationLog{
		ResourceID: resource.ID,
		DatasetID:  resource.DatasetID,
		IsSuccess:  isSuccess,
		Message:    message,
		InsertedAt: time.Now().UTC(),
	}
	if err := p.db.Create(log).Error; err != nil {
		return fmt.Errorf("写入审计日志失败: %w", err)
	}
	return nil
}
