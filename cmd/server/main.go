package main

import (
	"log"

	"github.com/coldbrew/cps/internal/chain"
	"github.com/coldbrew/cps/internal/config"
	"github.com/coldbrew/cps/internal/logger"
	"github.com/coldbrew/cps/internal/repository"
	"github.com/coldbrew/cps/internal/router"
	"github.com/coldbrew/cps/internal/scheduler"
	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化日志器
	initLogger(cfg.Log)
	defer logger.Sync()

	// 初始化数据库
	db, err := repository.Init(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// 初始化链客户端解析器
	resolver := chain.NewResolver(cfg.Chains)
	defer resolver.Close()

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(db, resolver, cfg)

	// 启动定时任务
	manager := scheduler.Start(db, resolver, cfg)
	defer manager.Stop()

	// 启动服务器
	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// initLogger 按配置初始化默认日志器
func initLogger(cfg config.LogConfig) {
	level := logger.ParseLogLevel(cfg.GetLevel())

	var (
		l   *logger.Logger
		err error
	)
	if cfg.GetOutput() == "file" {
		l, err = logger.NewWithFileRotation(level, cfg.GetFile())
	} else {
		l, err = logger.New(level)
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.SetDefaultLogger(l)
}
