/*
 * @module api/controllers/dataset_controller
 * @description 数据集控制器，提供目录数据集及其资源的查询接口
 * @architecture MVC架构 - 控制器层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 请求接收 -> 业务逻辑处理 -> 响应返回
 * @rules 目录数据由上游采集维护，本层只读
 * @dependencies net/http, gorm.io/gorm
 * @refs service/models/catalog.go
 */

package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"gorm.io/gorm"

	"transit-data-service/service/models"
)

// DatasetController 数据集控制器
type DatasetController struct {
	db *gorm.DB
}

// NewDatasetController 创建数据集控制器实例
func NewDatasetController(db *gorm.DB) *DatasetController {
	return &DatasetController{db: db}
}

// ListDatasets 分页获取数据集列表
func (c *DatasetController) ListDatasets(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = 10
	}

	query := c.db.Model(&models.Dataset{})
	if active := r.URL.Query().Get("is_active"); active != "" {
		query = query.Where("is_active = ?", active == "true")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		render.JSON(w, r, InternalErrorResponse("查询数据集总数失败", err))
		return
	}

	var datasets []models.Dataset
	err := query.Preload("Resources").
		Offset((page - 1) * size).Limit(size).
		Order("created_at DESC").Find(&datasets).Error
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("查询数据集列表失败", err))
		return
	}

	render.JSON(w, r, &PaginatedResponse{
		Status: 0,
		Msg:    "获取数据集列表成功",
		Data:   datasets,
		Total:  total,
		Page:   page,
		Size:   size,
	})
}

// GetDataset 获取数据集详情
func (c *DatasetController) GetDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var dataset models.Dataset
	err := c.db.Preload("Resources").First(&dataset, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			render.JSON(w, r, NotFoundResponse("数据集不存在"))
			return
		}
		render.JSON(w, r, InternalErrorResponse("查询数据集失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取数据集成功", dataset))
}
