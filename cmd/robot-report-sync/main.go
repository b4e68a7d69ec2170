package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"robot-report-sync/internal/config"
	"robot-report-sync/internal/database"
	httpapi "robot-report-sync/internal/http"
	"robot-report-sync/internal/logger"
	"robot-report-sync/internal/repository"
	"robot-report-sync/internal/service"
	"robot-report-sync/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "robot-report-sync")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	kv := store.NewRedisKV(redisClient)

	// Repository
	storesRepo := repository.NewPostgresStoresRepository(db)
	robotsRepo := repository.NewPostgresRobotsRepository(db)
	reportsRepo := repository.NewPostgresCleanReportsRepository(db)
	recordsRepo := repository.NewPostgresSyncRecordsRepository(db)

	// 厂家客户端 + 同步服务
	vendorClient := service.NewVendorClient(cfg.Vendor.BaseURL, cfg.Vendor.AppKey, cfg.Vendor.Secret, log)
	syncService := service.NewReportSyncService(storesRepo, robotsRepo, reportsRepo, vendorClient, cfg.Sync, log)

	// 定时调度（门店/机器人元数据由独立进程同步，这里不挂协作方）
	interval := time.Duration(cfg.Sync.IntervalHours) * time.Hour
	scheduler := service.NewSyncScheduler(syncService, storesRepo, recordsRepo, nil, kv, interval, log)

	// HTTP
	router := httpapi.NewRouter(log)
	router.RegisterSyncRoutes(httpapi.NewReportSyncHandler(syncService, scheduler, recordsRepo, cfg.Sync, log))
	router.RegisterReportRoutes(httpapi.NewReportHandler(reportsRepo, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go scheduler.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case err := <-errCh:
		log.Error("HTTP server exited", zap.Error(err))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}
