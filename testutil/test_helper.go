/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @documentReference dev_docs/test_plan.md
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具，确保测试环境的一致性
 * @dependencies gorm, sqlite, time
 * @refs service/models
 */

package testutil

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"transit-data-service/service/models"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建测试数据库
func NewTestDB() *TestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&models.Dataset{},
		&models.Resource{},
		&models.ResourceHistory{},
		&models.ValidationRecord{},
		&models.ValidationLog{},
	)
	if err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &TestDB{DB: db}
}

// CleanDB 清理数据库
func (tdb *TestDB) CleanDB() {
	// 清空所有表的数据
	tables := []string{
		"datasets",
		"resources",
		"resource_histories",
		"validation_records",
		"validation_logs",
	}

	for _, table := range tables {
		tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table))
	}
}

// Close 关闭数据库连接
func (tdb *TestDB) Close() {
	if db, err := tdb.DB.DB(); err == nil {
		db.Close()
	}
}

// TestDataFactory 测试数据工厂
type TestDataFactory struct {
	DB *gorm.DB
}

// NewTestDataFactory 创建测试数据工厂
func NewTestDataFactory(db *gorm.DB) *TestDataFactory {
	return &TestDataFactory{DB: db}
}

// DatasetOption 数据集选项函数类型
type DatasetOption func(*models.Dataset)

// CreateDataset 创建测试数据集
func (f *TestDataFactory) CreateDataset(opts ...DatasetOption) *models.Dataset {
	dataset := &models.Dataset{
		DatagouvID:  "dataset-" + generateSuffix(),
		CustomTitle: "测试数据集",
		IsActive:    true,
	}

	// 应用选项
	for _, opt := range opts {
		opt(dataset)
	}

	if err := f.DB.Create(dataset).Error; err != nil {
		panic(fmt.Sprintf("failed to create test dataset: %v", err))
	}

	return dataset
}

// WithInactive 将数据集标记为未激活
func WithInactive() DatasetOption {
	return func(d *models.Dataset) {
		d.IsActive = false
	}
}

// ResourceOption 资源选项函数类型
type ResourceOption func(*models.Resource)

// CreateResource 创建测试资源
func (f *TestDataFactory) CreateResource(datasetID string, opts ...ResourceOption) *models.Resource {
	resource := &models.Resource{
		DatasetID:   datasetID,
		DatagouvID:  "resource-" + generateSuffix(),
		URL:         "https://example.com/feed",
		Title:       "测试资源",
		Format:      models.FormatGTFSRT,
		IsAvailable: true,
	}

	for _, opt := range opts {
		opt(resource)
	}

	if err := f.DB.Create(resource).Error; err != nil {
		panic(fmt.Sprintf("failed to create test resource: %v", err))
	}

	return resource
}

// WithFormat 设置资源格式
func WithFormat(format string) ResourceOption {
	return func(r *models.Resource) {
		r.Format = format
	}
}

// WithUnavailable 将资源标记为不可用
func WithUnavailable() ResourceOption {
	return func(r *models.Resource) {
		r.IsAvailable = false
	}
}

// WithURL 设置资源地址
func WithURL(url string) ResourceOption {
	return func(r *models.Resource) {
		r.URL = url
	}
}

// WithValidity 设置静态资源有效期
func WithValidity(start, end time.Time) ResourceOption {
	return func(r *models.Resource) {
		r.StartDate = &start
		r.EndDate = &end
	}
}

// CreateResourceHistory 创建测试资源快照
func (f *TestDataFactory) CreateResourceHistory(resourceID, permanentURL string, insertedAt time.Time) *models.ResourceHistory {
	history := &models.ResourceHistory{
		ResourceID:   resourceID,
		PermanentURL: permanentURL,
		Format:       models.FormatGTFS,
		InsertedAt:   insertedAt,
	}

	if err := f.DB.Create(history).Error; err != nil {
		panic(fmt.Sprintf("failed to create test resource history: %v", err))
	}

	return history
}

var suffixCounter int

// generateSuffix 生成唯一后缀
func generateSuffix() string {
	suffixCounter++
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), suffixCounter)
}
