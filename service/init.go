/*
 * @module service/init
 * @description 服务初始化模块，负责数据库连接、配置加载、验证管道装配等初始化工作
 * @architecture 分层架构 - 服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 应用启动时执行初始化流程
 * @rules 确保所有依赖服务正常启动后才提供API服务
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres
 * @refs dev_docs/model.md
 */

package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"transit-data-service/service/cleanup"
	"transit-data-service/service/config"
	"transit-data-service/service/database"
	"transit-data-service/service/event"
	"transit-data-service/service/gtfsrt"
	"transit-data-service/service/httpclient"
	"transit-data-service/service/queue"
	"transit-data-service/service/rate_limiter"
	"transit-data-service/service/storage"
)

var (
	DB                   *gorm.DB
	GlobalConfigService  *config.ConfigService
	GlobalTaskQueue      *queue.TaskQueue
	GlobalEventPublisher event.Publisher
	GlobalOrchestrator   *gtfsrt.Orchestrator
	GlobalDispatcher     *gtfsrt.Dispatcher
	GlobalRateLimiter    rate_limiter.RateLimiter
	GlobalLogCleanup     *cleanup.LogCleanupService
)

func init() {
	initDatabase()
	runMigrations()
	initServices()
}

// initDatabase 初始化数据库连接
func initDatabase() {
	var dsn string

	// 优先使用DATABASE_URL环境变量
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		dsn = databaseURL
	} else {
		// 使用分离的环境变量构建连接字符串
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "postgres")
		dbname := getEnvWithDefault("DB_NAME", "postgres")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")
		schema := getEnvWithDefault("DB_SCHEMA", "public")

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s TimeZone=UTC",
			host, port, user, password, dbname, sslmode, schema)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	log.Println("数据库连接成功")
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// runMigrations 运行数据库迁移
func runMigrations() {
	log.Println("开始运行数据库迁移...")

	if err := database.AutoMigrate(DB); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	log.Println("数据库表结构迁移完成")

	if err := database.InitializeData(DB); err != nil {
		log.Fatalf("基础数据初始化失败: %v", err)
	}
	log.Println("基础数据初始化完成")
}

// initServices 初始化服务
func initServices() {
	GlobalConfigService = config.NewConfigService()

	// 任务去重器：配置了Redis则跨实例去重，否则退化为不去重
	var deduper queue.Deduper = queue.NoopDeduper{}
	if addr := GlobalConfigService.RedisAddr(); addr != "" {
		redisDeduper, err := queue.NewRedisDeduper(addr, os.Getenv("REDIS_PASSWORD"), 0)
		if err != nil {
			log.Printf("Redis去重器初始化失败，退化为不去重: %v", err)
		} else {
			deduper = redisDeduper
		}
	}

	GlobalTaskQueue = queue.NewTaskQueue(
		GlobalConfigService.WorkerCount(),
		GlobalConfigService.TaskMaxRetries(),
		deduper,
	)

	// 事件发布器：配置了Kafka则发布验证事件，否则丢弃
	GlobalEventPublisher = event.NoopPublisher{}
	if brokers := GlobalConfigService.KafkaBrokers(); len(brokers) > 0 {
		GlobalEventPublisher = event.NewKafkaPublisher(brokers, GlobalConfigService.KafkaTopic())
		log.Printf("Kafka事件发布器初始化完成: brokers=%v", brokers)
	}

	// 装配验证管道
	fetcher := httpclient.NewHTTPFetcher(60 * time.Second)
	store := storage.NewFSObjectStore(GlobalConfigService.StorageRoot(), GlobalConfigService.CacheBaseURL())
	snapshots := gtfsrt.NewSnapshotManager(fetcher, store, GlobalConfigService)
	invoker := gtfsrt.NewCommandInvoker(GlobalConfigService.ValidatorCommand(), GlobalConfigService.ValidatorTimeout())

	GlobalOrchestrator = gtfsrt.NewOrchestrator(DB, snapshots, invoker, GlobalEventPublisher, GlobalConfigService)

	GlobalTaskQueue.RegisterHandler(queue.TaskTypeGTFSRTValidation, func(ctx context.Context, task queue.Task) error {
		return GlobalOrchestrator.Run(ctx, task.DatasetID)
	})

	// 启动调度器
	GlobalDispatcher = gtfsrt.NewDispatcher(DB, GlobalTaskQueue, GlobalConfigService.DispatchInterval())
	if err := GlobalDispatcher.Start(); err != nil {
		log.Printf("启动验证调度器失败: %v", err)
	}

	// 手动调度接口限流器：配置了Redis则跨实例限流，否则全部放行
	GlobalRateLimiter = rate_limiter.NoopRateLimiter{}
	if addr := GlobalConfigService.RedisAddr(); addr != "" {
		limiter, err := rate_limiter.NewRedisRateLimiter(addr)
		if err != nil {
			log.Printf("Redis限流器初始化失败，退化为不限流: %v", err)
		} else {
			GlobalRateLimiter = limiter
		}
	}

	// 启动验证数据保留期清理
	GlobalLogCleanup = cleanup.NewLogCleanupService(DB, GlobalConfigService)
	if err := GlobalLogCleanup.StartScheduledCleanup(); err != nil {
		log.Printf("启动日志清理调度器失败: %v", err)
	}

	log.Println("服务初始化完成")
}
