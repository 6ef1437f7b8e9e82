/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference dev_docs/requirements.md
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs dev_docs/model.md
 */

package api

import (
	"transit-data-service/api/controllers"
	"transit-data-service/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// InitRoute 初始化所有API路由
func InitRoute(r *chi.Mux) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 健康检查
	healthController := controllers.NewHealthController()
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// 数据集目录
	r.Route("/datasets", func(r chi.Router) {
		datasetController := controllers.NewDatasetController(service.DB)
		validationController := controllers.NewValidationController(service.DB, service.GlobalDispatcher, service.GlobalRateLimiter, service.GlobalConfigService)

		r.Get("/", datasetController.ListDatasets)
		r.Get("/{id}", datasetController.GetDataset)
		r.Get("/{id}/validations", validationController.ListDatasetValidations)
	})

	// 验证记录与调度
	r.Route("/validations", func(r chi.Router) {
		validationController := controllers.NewValidationController(service.DB, service.GlobalDispatcher, service.GlobalRateLimiter, service.GlobalConfigService)

		r.Get("/latest", validationController.ListLatestValidations)
		r.Get("/{id}", validationController.GetValidation)
		r.Post("/dispatch", validationController.Dispatch)
	})

	// 验证审计日志
	validationController := controllers.NewValidationController(service.DB, service.GlobalDispatcher, service.GlobalRateLimiter, service.GlobalConfigService)
	r.Get("/validation-logs", validationController.ListValidationLogs)
}
