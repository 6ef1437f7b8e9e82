/*
 * @module service/models/validation
 * @description 实时数据验证相关模型定义，包括验证结果记录和验证审计日志
 * @architecture DDD领域驱动设计 - 实体模型
 * @documentReference dev_docs/model.md
 * @stateFlow 每次验证运行创建新记录，记录创建后不可变更
 * @rules 每个资源的每次验证尝试恰好产生一条审计日志
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/gtfsrt
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ValidationLogMessageLimit 审计日志错误信息最大长度
const ValidationLogMessageLimit = 500

// ValidationRecord 验证结果记录模型，一次实时资源验证运行的持久化产物
type ValidationRecord struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ResourceID  string    `json:"resource_id" gorm:"not null;type:varchar(36);index"`
	Report      JSONB     `json:"report" gorm:"type:jsonb;not null"`
	MaxSeverity *string   `json:"max_severity" gorm:"size:20;index"` // ERROR/WARNING/null
	ValidatedAt time.Time `json:"validated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	// 关联关系
	Resource *Resource `json:"resource,omitempty" gorm:"foreignKey:ResourceID"`
}

// BeforeCreate 创建前钩子
func (v *ValidationRecord) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}

// ValidationLog 验证审计日志模型，每次（资源, 验证尝试）一条
type ValidationLog struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ResourceID string    `json:"resource_id" gorm:"not null;type:varchar(36);index"`
	DatasetID  string    `json:"dataset_id" gorm:"not null;type:varchar(36);index"`
	IsSuccess  bool      `json:"is_success" gorm:"not null"`
	Message    string    `json:"message" gorm:"size:500"`
	InsertedAt time.Time `json:"inserted_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate 创建前钩子，超长错误信息在写入前截断
func (l *ValidationLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if len(l.Message) > ValidationLogMessageLimit {
		l.Message = l.Message[:ValidationLogMessageLimit]
	}
	return nil
}

// LatestValidation 视图模型，每个资源最近一次验证的结果摘要，只读
type LatestValidation struct {
	ID          string    `json:"id"`
	ResourceID  string    `json:"resource_id"`
	DatasetID   string    `json:"dataset_id"`
	DatagouvID  string    `json:"datagouv_id"`
	MaxSeverity *string   `json:"max_severity"`
	ValidatedAt time.Time `json:"validated_at"`
}

// TableName 指定视图名
func (LatestValidation) TableName() string {
	return "latest_validations"
}
