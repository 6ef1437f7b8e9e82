/*
 * @module service/models/catalog
 * @description 开放数据目录相关模型定义，包括数据集、资源、资源快照等核心实体
 * @architecture DDD领域驱动设计 - 实体模型
 * @documentReference dev_docs/model.md
 * @stateFlow 数据集/资源由上游采集管道维护，本服务只读消费
 * @rules 遵循数据库设计规范，确保数据完整性和一致性
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs dev_docs/requirements.md
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 资源格式常量
const (
	FormatGTFS   = "GTFS"    // 静态时刻表数据集
	FormatGTFSRT = "gtfs-rt" // 实时位置/告警数据流
)

// Dataset 数据集模型，对应目录中的一个开放数据条目
type Dataset struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	DatagouvID  string     `json:"datagouv_id" gorm:"not null;unique;size:100"`
	CustomTitle string     `json:"custom_title" gorm:"size:500"`
	IsActive    bool       `json:"is_active" gorm:"not null;default:true;index"`
	CreatedAt   time.Time  `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	Resources   []Resource `json:"resources,omitempty" gorm:"foreignKey:DatasetID"`
}

// BeforeCreate 创建前钩子
func (d *Dataset) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// AvailableRealtimeResources 返回当前可用的实时资源列表
func (d *Dataset) AvailableRealtimeResources() []Resource {
	var result []Resource
	for _, resource := range d.Resources {
		if resource.Format == FormatGTFSRT && resource.IsAvailable {
			result = append(result, resource)
		}
	}
	return result
}

// ValidStaticResources 返回在指定日期内有效且可用的静态资源列表
func (d *Dataset) ValidStaticResources(today time.Time) []Resource {
	var result []Resource
	for _, resource := range d.Resources {
		if resource.Format == FormatGTFS && resource.IsAvailable && resource.ValidityContains(today) {
			result = append(result, resource)
		}
	}
	return result
}

// Resource 资源模型，一个数据集下的单个可下载文件或数据流
type Resource struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	DatasetID   string     `json:"dataset_id" gorm:"not null;type:varchar(36);index"`
	DatagouvID  string     `json:"datagouv_id" gorm:"not null;size:100;index"`
	URL         string     `json:"url" gorm:"not null;size:2000"`
	Title       string     `json:"title" gorm:"size:500"`
	Format      string     `json:"format" gorm:"not null;size:20;index"` // GTFS, gtfs-rt
	IsAvailable bool       `json:"is_available" gorm:"not null;default:true"`
	StartDate   *time.Time `json:"start_date" gorm:"type:date"` // 静态资源有效期起点
	EndDate     *time.Time `json:"end_date" gorm:"type:date"`   // 静态资源有效期终点
	Metadata    JSONB      `json:"metadata" gorm:"type:jsonb"`
	CreatedAt   time.Time  `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	// 关联关系
	Dataset   *Dataset          `json:"dataset,omitempty" gorm:"foreignKey:DatasetID"`
	Histories []ResourceHistory `json:"histories,omitempty" gorm:"foreignKey:ResourceID"`
}

// BeforeCreate 创建前钩子
func (r *Resource) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// ValidityContains 判断资源有效期是否覆盖指定日期
// 有效期端点为空视为未知，不覆盖任何日期
func (r *Resource) ValidityContains(day time.Time) bool {
	if r.StartDate == nil || r.EndDate == nil {
		return false
	}
	d := day.Truncate(24 * time.Hour)
	start := r.StartDate.Truncate(24 * time.Hour)
	end := r.EndDate.Truncate(24 * time.Hour)
	return !d.Before(start) && !d.After(end)
}

// ResourceHistory 资源快照模型，静态资源内容的不可变历史记录
// 由外部快照管道写入，本服务只读选取最新一条
type ResourceHistory struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ResourceID   string    `json:"resource_id" gorm:"not null;type:varchar(36);index"`
	UUID         string    `json:"uuid" gorm:"not null;size:36"`
	PermanentURL string    `json:"permanent_url" gorm:"not null;size:2000"`
	Format       string    `json:"format" gorm:"not null;size:20"`
	InsertedAt   time.Time `json:"inserted_at" gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

// BeforeCreate 创建前钩子
func (h *ResourceHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.UUID == "" {
		h.UUID = uuid.New().String()
	}
	return nil
}
