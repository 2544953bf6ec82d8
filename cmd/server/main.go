package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"exeat/backend/config"
	"exeat/backend/internal/api/handler"
	"exeat/backend/internal/api/router"
	"exeat/backend/internal/repository"
	"exeat/backend/internal/service"
	"exeat/backend/pkg/database"
	"exeat/backend/pkg/jwt"
	applogger "exeat/backend/pkg/logger"
	"exeat/backend/pkg/mailer"
	"exeat/backend/pkg/redis"
)

func main() {
	// 0. 加载 .env（可选）
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "读取 .env 失败: %v\n", err)
	}

	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("EXEAT_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("hostel_stages_enabled", cfg.Workflow.HostelStagesEnabled),
	)

	// 3. 连接数据库并执行迁移
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：失败时请求锁降级为进程内锁，公开接口不限流）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，降级运行", zap.Error(err))
		rdb = nil
	}

	// 5. 邮件通道（可选）
	var mail service.Mailer
	if m := mailer.New(&cfg.Mail, logger); m != nil {
		mail = m
	}

	debtRate, err := cfg.Workflow.DebtRate()
	if err != nil {
		logger.Fatal("解析逾期费率失败", zap.Error(err))
	}

	// 6. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(repo, service.EngineOptions{
		Graph:          service.NewStageGraph(cfg.Workflow.HostelStagesEnabled),
		DebtRate:       debtRate,
		ConsentTTL:     cfg.Workflow.ConsentTTL,
		ConsentBaseURL: cfg.Workflow.ConsentBaseURL,
		Locker:         service.NewRequestLocker(rdb, cfg.Workflow.LockTTL, cfg.Workflow.LockWait, logger),
		Notifier: service.NewFanoutGateway(logger, true,
			service.NewStoreGateway(repo.Notification),
			service.NewEmailGateway(mail),
		),
		ConsentSender: service.NewConsentSender(mail),
	}, logger)
	h := handler.NewHandler(svc)

	// 7. 初始化路由
	jwtMgr := jwt.NewManager(&cfg.Auth)
	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	// 8. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 9. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	if err := sqlDB.Close(); err != nil {
		logger.Warn("关闭数据库连接失败", zap.Error(err))
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Warn("关闭 Redis 连接失败", zap.Error(err))
		}
	}

	logger.Info("服务器已关闭")
}
