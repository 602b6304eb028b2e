package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"k8s.io/klog/v2"

	"github.com/promptweaver/backend/config"
	"github.com/promptweaver/backend/internal/handler"
	"github.com/promptweaver/backend/internal/pkg/cache"
	"github.com/promptweaver/backend/internal/pkg/database"
	"github.com/promptweaver/backend/internal/repository"
	"github.com/promptweaver/backend/internal/router"
	"github.com/promptweaver/backend/internal/service"
)

func main() {
	// 初始化 klog
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.V(6).Info("服务启动中...")

	cfg := config.GetConfig()

	if cfg.Database.Type == "sqlite" || cfg.Database.Type == "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}

	// 初始化数据库
	db, err := database.InitDB(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// 初始化系统默认模板（statistics 流程依赖）
	if err := service.InitSystemDefaultTemplate(db); err != nil {
		log.Fatalf("Failed to seed system default template: %v", err)
	}

	// 初始化缓存
	var c cache.Cache
	switch cfg.Cache.Type {
	case "redis":
		c, err = cache.NewRedis(cache.RedisOptions{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			Prefix:   cfg.Cache.Prefix,
		})
		if err != nil {
			log.Fatalf("Failed to connect redis: %v", err)
		}
	default:
		c = cache.NewMemory()
	}

	// 初始化 Repository
	templateRepo := repository.NewTemplateRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	overrideRepo := repository.NewOverrideRepository(db)

	// 初始化 Service
	templateService := service.NewTemplateService(templateRepo, assignmentRepo, c)
	assignmentService := service.NewAssignmentService(assignmentRepo, templateRepo, c)
	overrideService := service.NewOverrideService(overrideRepo, c)
	composerService := service.NewComposerService(templateRepo, assignmentRepo, overrideRepo, c)
	tenantConfigService := service.NewTenantConfigService(assignmentRepo, templateRepo, overrideRepo, c)

	// 初始化 Handler
	templateHandler := handler.NewTemplateHandler(templateService)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService)
	overrideHandler := handler.NewOverrideHandler(overrideService)
	promptHandler := handler.NewPromptHandler(composerService, tenantConfigService)

	// 设置路由
	r := router.Setup(cfg, templateHandler, assignmentHandler, overrideHandler, promptHandler)

	log.Printf("Server starting on port %s...", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
