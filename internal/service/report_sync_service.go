package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"robot-report-sync/internal/config"
	"robot-report-sync/internal/domain"
	"robot-report-sync/internal/pool"
	"robot-report-sync/internal/repository"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// vendorClientInterface 厂家客户端接口（用于测试和扩展）
type vendorClientInterface interface {
	QueryTaskList(ctx context.Context, shopID string, win TimeWindow, offset, limit, tzOffset int) ([]TaskRef, error)
	QueryTaskDetail(ctx context.Context, sn, reportID, shopID string, win TimeWindow, tzOffset int) (*TaskDetail, error)
}

// ReportSyncService 清洁报告同步服务接口
type ReportSyncService interface {
	// SyncStoreReports 同步一个门店在指定时间窗口内的报告，返回新入库的报告数
	SyncStoreReports(ctx context.Context, storeID int64, win TimeWindow) (int, error)

	// SyncAllStores 顺序同步所有未删除门店，返回新入库的报告总数
	// 单个门店失败只记日志，不影响后续门店
	SyncAllStores(ctx context.Context, win TimeWindow) (int, error)

	// SyncHistory 历史回填：按天数窗口并发同步所有门店（门店级并发有上限）
	SyncHistory(ctx context.Context, days int) (int, error)
}

// reportSyncService 实现
type reportSyncService struct {
	storesRepo   repository.StoresRepository
	robotsRepo   repository.RobotsRepository
	reportsRepo  repository.CleanReportsRepository
	vendorClient vendorClientInterface
	detailPool   *pool.Pool // 详情解析共享 worker 池（跨门店共享，压住出站并发）
	cfg          config.SyncConfig
	logger       *zap.Logger
}

// NewReportSyncService 创建 ReportSyncService 实例
func NewReportSyncService(
	storesRepo repository.StoresRepository,
	robotsRepo repository.RobotsRepository,
	reportsRepo repository.CleanReportsRepository,
	vendorClient *VendorClient,
	cfg config.SyncConfig,
	logger *zap.Logger,
) ReportSyncService {
	s := &reportSyncService{
		storesRepo:  storesRepo,
		robotsRepo:  robotsRepo,
		reportsRepo: reportsRepo,
		detailPool:  pool.New(cfg.DetailWorkers, cfg.DetailQueue),
		cfg:         cfg,
		logger:      logger,
	}
	if vendorClient != nil {
		s.vendorClient = vendorClient
	}
	return s
}

// SetVendorClientForTest 设置厂家客户端接口（用于测试）
func (s *reportSyncService) SetVendorClientForTest(client vendorClientInterface) {
	s.vendorClient = client
}

// syncRun 一次门店同步的运行状态
type syncRun struct {
	mu       sync.Mutex
	buffer   []*domain.CleanReport
	inflight map[string]struct{} // 本次运行内已在解析的 report_id，防止同页重复项并发双写
	inserted int
}

// claim 认领一个 report_id；已被本次运行认领过则返回 false
func (r *syncRun) claim(reportID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inflight[reportID]; ok {
		return false
	}
	r.inflight[reportID] = struct{}{}
	return true
}

func (r *syncRun) append(report *domain.CleanReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffer = append(r.buffer, report)
}

// SyncStoreReports 同步一个门店在指定时间窗口内的报告
func (s *reportSyncService) SyncStoreReports(ctx context.Context, storeID int64, win TimeWindow) (int, error) {
	if s.vendorClient == nil {
		return 0, fmt.Errorf("vendor client not initialized")
	}
	if win.Start == 0 || win.End == 0 || win.End < win.Start {
		return 0, fmt.Errorf("valid start_time and end_time are required")
	}

	store, err := s.storesRepo.GetStore(ctx, storeID)
	if err != nil {
		return 0, err
	}
	if store == nil || store.Deleted {
		return 0, fmt.Errorf("store not found: store_id=%d", storeID)
	}

	s.logger.Info("starting store report sync",
		zap.Int64("store_id", storeID),
		zap.String("shop_id", store.ShopID),
		zap.Int64("start_time", win.Start),
		zap.Int64("end_time", win.End),
	)

	run := &syncRun{inflight: make(map[string]struct{})}
	offset := 0
	emptyRetried := false

	for {
		refs, err := s.vendorClient.QueryTaskList(ctx, store.ShopID, win, offset, s.cfg.PageSize, s.cfg.TimezoneOffset)
		if err != nil {
			// 列表页失败按"本单元无结果"处理：结束翻页，已缓冲的结果照常落库
			s.logger.Error("failed to fetch task list page, stopping pagination",
				zap.Int64("store_id", storeID),
				zap.Int("offset", offset),
				zap.Error(err),
			)
			break
		}

		if len(refs) == 0 {
			// 空页可能是瞬时的：重查一次再判定翻页结束
			if !emptyRetried {
				emptyRetried = true
				continue
			}
			break
		}
		emptyRetried = false

		// 同一页内并发解析详情，全部完成后再落库、再翻下一页
		var wg sync.WaitGroup
		for _, ref := range refs {
			ref := ref
			wg.Add(1)
			s.detailPool.Submit(func() {
				defer wg.Done()
				s.resolveTask(ctx, run, store, ref, win)
			})
		}
		wg.Wait()

		if err := s.flush(ctx, run, false); err != nil {
			return run.inserted, err
		}

		offset += s.cfg.PageSize
	}

	// 收尾：落掉缓冲区剩余的报告
	if err := s.flush(ctx, run, true); err != nil {
		return run.inserted, err
	}

	s.logger.Info("store report sync finished",
		zap.Int64("store_id", storeID),
		zap.Int("inserted", run.inserted),
	)

	return run.inserted, nil
}

// resolveTask 解析一条任务引用并缓冲归一化后的报告
// 任何一条失败只记日志不中断：跳过已入库、机器人不存在、详情拉取/解析失败的条目
func (s *reportSyncService) resolveTask(ctx context.Context, run *syncRun, store *domain.Store, ref TaskRef, win TimeWindow) {
	if ref.ReportID == "" || ref.SN == "" {
		return
	}
	if !run.claim(ref.ReportID) {
		return
	}

	exists, err := s.reportsRepo.ReportExists(ctx, ref.ReportID)
	if err != nil {
		s.logger.Error("failed to check report existence",
			zap.String("report_id", ref.ReportID),
			zap.Error(err),
		)
		return
	}
	if exists {
		return
	}

	robot, err := s.robotsRepo.GetRobotBySN(ctx, ref.SN)
	if err != nil {
		s.logger.Error("failed to look up robot by sn",
			zap.String("sn", ref.SN),
			zap.Error(err),
		)
		return
	}
	if robot == nil {
		// 未知序列号的报告丢弃，不入库为孤儿
		s.logger.Warn("robot not found for serial, dropping report",
			zap.String("sn", ref.SN),
			zap.String("report_id", ref.ReportID),
		)
		return
	}

	detail, err := s.vendorClient.QueryTaskDetail(ctx, ref.SN, ref.ReportID, store.ShopID, win, s.cfg.TimezoneOffset)
	if err != nil {
		s.logger.Error("failed to fetch task detail, skipping item",
			zap.String("sn", ref.SN),
			zap.String("report_id", ref.ReportID),
			zap.Error(err),
		)
		return
	}

	run.append(mapTaskDetail(ref, robot, detail))
}

// mapTaskDetail 厂家详情 -> 领域模型
// 非正的数值遥测字段归一化为 NULL 而不是 0
func mapTaskDetail(ref TaskRef, robot *domain.Robot, detail *TaskDetail) *domain.CleanReport {
	return &domain.CleanReport{
		ReportID:    ref.ReportID,
		RobotID:     robot.ID,
		RobotSN:     robot.SN,
		Status:      detail.Status,
		StartTime:   detail.StartTime,
		EndTime:     detail.EndTime,
		Mode:        detail.Mode.String(),
		CleanTime:   nullInt64(detail.CleanTime),
		TaskArea:    nullFloat64(detail.TaskArea),
		CleanArea:   nullFloat64(detail.CleanArea),
		CostBattery: nullInt64(detail.CostBattery),
		CostWater:   nullInt64(detail.CostWater),
		MapName:     detail.FloorList.MapName(),
		MapURL:      detail.FloorList.MapURL(),
	}
}

func nullInt64(v int64) sql.NullInt64 {
	if v <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func nullFloat64(v float64) sql.NullFloat64 {
	if v <= 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// flush 批量落库
// final=false 时按 BatchSize 整批落；final=true 时连尾巴一起落
func (s *reportSyncService) flush(ctx context.Context, run *syncRun, final bool) error {
	for {
		run.mu.Lock()
		var batch []*domain.CleanReport
		switch {
		case len(run.buffer) >= s.cfg.BatchSize:
			batch = run.buffer[:s.cfg.BatchSize]
			run.buffer = run.buffer[s.cfg.BatchSize:]
		case final && len(run.buffer) > 0:
			batch = run.buffer
			run.buffer = nil
		}
		run.mu.Unlock()

		if len(batch) == 0 {
			return nil
		}

		inserted, err := s.reportsRepo.InsertBatch(ctx, batch)
		if err != nil {
			// 唯一约束冲突按重复处理：丢掉这批里重复的部分继续跑
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				s.logger.Warn("duplicate reports in batch, skipping",
					zap.Int("batch_size", len(batch)),
				)
				continue
			}
			return fmt.Errorf("failed to flush report batch: %w", err)
		}
		run.mu.Lock()
		run.inserted += inserted
		run.mu.Unlock()

		s.logger.Debug("flushed report batch",
			zap.Int("batch_size", len(batch)),
			zap.Int("inserted", inserted),
		)
	}
}

// SyncAllStores 顺序同步所有未删除门店
func (s *reportSyncService) SyncAllStores(ctx context.Context, win TimeWindow) (int, error) {
	stores, err := s.storesRepo.ListActiveStores(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list stores: %w", err)
	}

	total := 0
	for _, store := range stores {
		count, err := s.SyncStoreReports(ctx, store.ID, win)
		total += count
		if err != nil {
			// 单店失败不影响后续门店
			s.logger.Error("store report sync failed",
				zap.Int64("store_id", store.ID),
				zap.Error(err),
			)
			continue
		}
	}
	return total, nil
}

// SyncHistory 历史回填：每个门店一个任务，门店级并发上限 StoreWorkers
func (s *reportSyncService) SyncHistory(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		days = s.cfg.HistoryDays
	}
	now := time.Now().Unix()
	win := TimeWindow{Start: now - int64(days)*86400, End: now}

	stores, err := s.storesRepo.ListActiveStores(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list stores: %w", err)
	}

	var total int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.StoreWorkers)
	for _, store := range stores {
		store := store
		g.Go(func() error {
			count, err := s.SyncStoreReports(gctx, store.ID, win)
			atomic.AddInt64(&total, int64(count))
			if err != nil {
				// 失败不取消其他门店的回填
				s.logger.Error("store history sync failed",
					zap.Int64("store_id", store.ID),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	return int(atomic.LoadInt64(&total)), nil
}
