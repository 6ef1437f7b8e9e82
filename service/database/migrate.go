/*
 * @module service/database/migrate
 * @description 数据库迁移模块，负责创建和更新数据库表结构
 * @architecture 数据访问层 - 迁移管理
 * @documentReference dev_docs/model.md
 * @stateFlow 应用启动时执行数据库迁移
 * @rules 确保数据库结构与模型定义保持一致
 * @dependencies transit-data-service/service/models, gorm.io/gorm
 * @refs dev_docs/requirements.md
 */

package database

import (
	"log"

	"transit-data-service/service/models"

	"gorm.io/gorm"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	log.Println("开始数据库迁移...")

	// 开放数据目录相关表
	err := db.AutoMigrate(
		&models.Dataset{},
		&models.Resource{},
		&models.ResourceHistory{},
	)
	if err != nil {
		return err
	}

	// 实时数据验证相关表
	err = db.AutoMigrate(
		&models.ValidationRecord{},
		&models.ValidationLog{},
	)
	if err != nil {
		return err
	}

	// 查询视图
	if err := AutoMigrateView(db); err != nil {
		return err
	}

	log.Println("数据库迁移完成")
	return nil
}

// InitializeData 初始化基础数据
func InitializeData(db *gorm.DB) error {
	log.Println("开始初始化基础数据...")

	// 支持的资源格式
	resourceFormats := []string{
		models.FormatGTFS,   // 静态时刻表
		models.FormatGTFSRT, // 实时数据流
	}

	// 验证发现的严重级别
	severities := []string{
		models.SeverityWarning,
		models.SeverityError,
	}

	log.Printf("支持的资源格式: %v", resourceFormats)
	log.Printf("支持的严重级别: %v", severities)

	log.Println("基础数据初始化完成")
	return nil
}
