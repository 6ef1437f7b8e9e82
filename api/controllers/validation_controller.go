/*
 * @module api/controllers/validation_controller
 * @description 验证控制器，提供验证记录与审计日志查询、手动触发调度的接口
 * @architecture MVC架构 - 控制器层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 请求接收 -> 业务逻辑处理 -> 响应返回
 * @rules 验证记录与审计日志只读；手动调度与定时调度共用同一条入队路径
 * @dependencies net/http, gorm.io/gorm
 * @refs service/gtfsrt/dispatcher.go, service/models/validation.go
 */

package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"gorm.io/gorm"

	"transit-data-service/service/config"
	"transit-data-service/service/gtfsrt"
	"transit-data-service/service/models"
	"transit-data-service/service/rate_limiter"
)

// ValidationController 验证控制器
type ValidationController struct {
	db         *gorm.DB
	dispatcher *gtfsrt.Dispatcher
	limiter    rate_limiter.RateLimiter
	config     *config.ConfigService
}

// NewValidationController 创建验证控制器实例
func NewValidationController(db *gorm.DB, dispatcher *gtfsrt.Dispatcher, limiter rate_limiter.RateLimiter, config *config.ConfigService) *ValidationController {
	if limiter == nil {
		limiter = rate_limiter.NoopRateLimiter{}
	}
	return &ValidationController{db: db, dispatcher: dispatcher, limiter: limiter, config: config}
}

// ListDatasetValidations 获取数据集下所有资源的验证记录
func (c *ValidationController) ListDatasetValidations(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "id")

	var records []models.ValidationRecord
	err := c.db.Joins("JOIN resources ON resources.id = validation_records.resource_id").
		Where("resources.dataset_id = ?", datasetID).
		Order("validation_records.validated_at DESC").
		Limit(100).Find(&records).Error
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("查询验证记录失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取验证记录成功", records))
}

// GetValidation 获取单条验证记录详情
func (c *ValidationController) GetValidation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var record models.ValidationRecord
	if err := c.db.First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			render.JSON(w, r, NotFoundResponse("验证记录不存在"))
			return
		}
		render.JSON(w, r, InternalErrorResponse("查询验证记录失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取验证记录成功", record))
}

// ListValidationLogs 获取资源的验证审计日志
func (c *ValidationController) ListValidationLogs(w http.ResponseWriter, r *http.Request) {
	resourceID := r.URL.Query().Get("resource_id")
	if resourceID == "" {
		render.JSON(w, r, BadRequestResponse("缺少resource_id参数", nil))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var logs []models.ValidationLog
	err := c.db.Where("resource_id = ?", resourceID).
		Order("inserted_at DESC").Limit(limit).Find(&logs).Error
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("查询审计日志失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取审计日志成功", logs))
}

// ListLatestValidations 获取每个资源最近一次验证的结果摘要
func (c *ValidationController) ListLatestValidations(w http.ResponseWriter, r *http.Request) {
	var latest []models.LatestValidation
	if err := c.db.Order("validated_at DESC").Limit(500).Find(&latest).Error; err != nil {
		render.JSON(w, r, InternalErrorResponse("查询最新验证摘要失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("获取最新验证摘要成功", latest))
}

// Dispatch 手动触发一轮验证调度，受固定窗口限流保护
func (c *ValidationController) Dispatch(w http.ResponseWriter, r *http.Request) {
	result, err := c.limiter.Check(r.Context(), "manual_dispatch", c.config.DispatchRatePerMinute(), time.Minute)
	if err != nil {
		// 限流检查失败时放行，可用性优先于限流
		result = &rate_limiter.RateLimitResult{Allowed: true}
	}
	if !result.Allowed {
		render.Status(r, http.StatusTooManyRequests)
		render.JSON(w, r, BadRequestResponse("触发过于频繁，请稍后重试", nil))
		return
	}

	enqueued, err := c.dispatcher.DispatchAll(r.Context())
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("触发验证调度失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("验证调度触发成功", map[string]interface{}{
		"enqueued": enqueued,
	}))
}
