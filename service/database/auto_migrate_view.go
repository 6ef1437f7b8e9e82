package database

import (
	"fmt"

	"gorm.io/gorm"

	"transit-data-service/service/database/views"
)

// AutoMigrateView 重建所有数据库视图
func AutoMigrateView(db *gorm.DB) error {
	for name, viewSQL := range views.ValidationViews {
		if err := db.Exec(fmt.Sprintf("DROP VIEW IF EXISTS %s", name)).Error; err != nil {
			return fmt.Errorf("删除旧视图 %s 失败: %w", name, err)
		}
		if err := db.Exec(viewSQL).Error; err != nil {
			return fmt.Errorf("创建视图 %s 失败: %w", name, err)
		}
	}
	return nil
}
