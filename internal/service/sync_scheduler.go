package service

import (
	"context"
	"fmt"
	"time"

	"robot-report-sync/internal/domain"
	"robot-report-sync/internal/repository"
	"robot-report-sync/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// syncLockKey 定时同步运行锁（多实例部署时只允许一个实例触发同一轮）
const syncLockKey = "report:sync:lock"

// syncStatusKey 最近一轮同步结果缓存（展示用）
const syncStatusKey = "report:sync:status"

// FleetSyncer 外部协作方：门店元数据与机器人状态的同步入口
// 报告同步依赖机器人行已存在，所以每轮先跑它们再拉报告
type FleetSyncer interface {
	SyncStores(ctx context.Context) error
	SyncRobots(ctx context.Context) error
}

// SyncScheduler 定时同步调度器 + 同步水位记录
type SyncScheduler struct {
	syncService ReportSyncService
	storesRepo  repository.StoresRepository
	recordsRepo repository.SyncRecordsRepository
	fleetSyncer FleetSyncer // 可选，nil 时跳过协作方同步
	kv          store.KV
	interval    time.Duration
	logger      *zap.Logger
}

// NewSyncScheduler 创建同步调度器
func NewSyncScheduler(
	syncService ReportSyncService,
	storesRepo repository.StoresRepository,
	recordsRepo repository.SyncRecordsRepository,
	fleetSyncer FleetSyncer,
	kv store.KV,
	interval time.Duration,
	logger *zap.Logger,
) *SyncScheduler {
	return &SyncScheduler{
		syncService: syncService,
		storesRepo:  storesRepo,
		recordsRepo: recordsRepo,
		fleetSyncer: fleetSyncer,
		kv:          kv,
		interval:    interval,
		logger:      logger,
	}
}

// Start 启动定时循环，ctx 取消后退出
// 启动时先跑一轮，之后每个周期跑一轮；同步窗口始终是刚过去的一个周期
func (s *SyncScheduler) Start(ctx context.Context) {
	s.logger.Info("starting report sync scheduler",
		zap.Duration("interval", s.interval),
	)

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("scheduled sync cycle failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("report sync scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("scheduled sync cycle failed", zap.Error(err))
			}
		}
	}
}

// RunOnce 跑一轮全量同步
// 顺序：运行锁 -> 门店元数据同步 -> 机器人同步 -> 报告同步 -> 水位更新
func (s *SyncScheduler) RunOnce(ctx context.Context) (int, error) {
	runID := uuid.NewString()

	acquired, err := s.kv.SetNX(ctx, syncLockKey, runID, s.interval)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !acquired {
		s.logger.Info("sync lock held by another run, skipping cycle")
		return 0, nil
	}
	defer func() {
		if err := s.kv.Del(ctx, syncLockKey); err != nil {
			s.logger.Warn("failed to release sync lock", zap.Error(err))
		}
	}()

	s.logger.Info("starting sync cycle", zap.String("run_id", runID))

	// 协作方同步：失败记日志继续，报告同步还能覆盖已有机器人
	if s.fleetSyncer != nil {
		if err := s.fleetSyncer.SyncStores(ctx); err != nil {
			s.logger.Error("store metadata sync failed", zap.Error(err))
		}
		if err := s.fleetSyncer.SyncRobots(ctx); err != nil {
			s.logger.Error("robot sync failed", zap.Error(err))
		}
	}

	now := time.Now()
	win := TimeWindow{Start: now.Add(-s.interval).Unix(), End: now.Unix()}

	count, err := s.syncService.SyncAllStores(ctx, win)
	if err != nil {
		return count, err
	}

	if err := s.recordSyncTimes(ctx, runID, now.Unix()); err != nil {
		s.logger.Error("failed to update sync records", zap.Error(err))
	}

	status := fmt.Sprintf(`{"run_id":%q,"synced_at":%d,"inserted":%d}`, runID, now.Unix(), count)
	if err := s.kv.Set(ctx, syncStatusKey, status, 0); err != nil {
		s.logger.Warn("failed to cache sync status", zap.Error(err))
	}

	s.logger.Info("sync cycle finished",
		zap.String("run_id", runID),
		zap.Int("inserted", count),
	)
	return count, nil
}

// SyncStoreNow 立即同步一个门店（非管理员的"立即同步"入口）
// 窗口与定时同步一致：刚过去的一个周期
func (s *SyncScheduler) SyncStoreNow(ctx context.Context, storeID int64) (int, error) {
	runID := uuid.NewString()
	now := time.Now()
	win := TimeWindow{Start: now.Add(-s.interval).Unix(), End: now.Unix()}

	count, err := s.syncService.SyncStoreReports(ctx, storeID, win)
	if err != nil {
		return count, err
	}

	if err := s.recordsRepo.Upsert(ctx, &domain.SyncRecord{
		StoreID:  storeID,
		SyncedAt: now.Unix(),
		RunID:    runID,
	}); err != nil {
		s.logger.Error("failed to update sync record",
			zap.Int64("store_id", storeID),
			zap.Error(err),
		)
	}
	return count, nil
}

// recordSyncTimes 更新每个门店以及全局的同步水位
func (s *SyncScheduler) recordSyncTimes(ctx context.Context, runID string, syncedAt int64) error {
	stores, err := s.storesRepo.ListActiveStores(ctx)
	if err != nil {
		return err
	}

	for _, st := range stores {
		if err := s.recordsRepo.Upsert(ctx, &domain.SyncRecord{
			StoreID:  st.ID,
			SyncedAt: syncedAt,
			RunID:    runID,
		}); err != nil {
			return err
		}
	}

	return s.recordsRepo.Upsert(ctx, &domain.SyncRecord{
		StoreID:  domain.GlobalSyncStoreID,
		SyncedAt: syncedAt,
		RunID:    runID,
	})
}
