package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"robot-report-sync/internal/domain"
	"robot-report-sync/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockSyncService 记录调用的 ReportSyncService mock
type mockSyncService struct {
	mu       sync.Mutex
	calls    []string
	allCount int
	oneCount int
}

func (m *mockSyncService) SyncStoreReports(_ context.Context, storeID int64, _ TimeWindow) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "store-reports")
	return m.oneCount, nil
}

func (m *mockSyncService) SyncAllStores(_ context.Context, _ TimeWindow) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "all-reports")
	return m.allCount, nil
}

func (m *mockSyncService) SyncHistory(_ context.Context, _ int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "history")
	return 0, nil
}

// mockFleetSyncer 协作方 mock，与 mockSyncService 共享调用序列
type mockFleetSyncer struct {
	svc *mockSyncService
}

func (m *mockFleetSyncer) SyncStores(_ context.Context) error {
	m.svc.mu.Lock()
	defer m.svc.mu.Unlock()
	m.svc.calls = append(m.svc.calls, "stores")
	return nil
}

func (m *mockFleetSyncer) SyncRobots(_ context.Context) error {
	m.svc.mu.Lock()
	defer m.svc.mu.Unlock()
	m.svc.calls = append(m.svc.calls, "robots")
	return nil
}

// mockSyncRecordsRepo 内存版水位仓库
type mockSyncRecordsRepo struct {
	mu   sync.Mutex
	recs map[int64]*domain.SyncRecord
}

func newMockSyncRecordsRepo() *mockSyncRecordsRepo {
	return &mockSyncRecordsRepo{recs: make(map[int64]*domain.SyncRecord)}
}

func (m *mockSyncRecordsRepo) Upsert(_ context.Context, rec *domain.SyncRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.StoreID] = rec
	return nil
}

func (m *mockSyncRecordsRepo) Get(_ context.Context, storeID int64) (*domain.SyncRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recs[storeID], nil
}

func (m *mockSyncRecordsRepo) List(_ context.Context) ([]*domain.SyncRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.SyncRecord
	for _, r := range m.recs {
		out = append(out, r)
	}
	return out, nil
}

func newSchedulerFixture() (*SyncScheduler, *mockSyncService, *mockSyncRecordsRepo, *store.MemoryKV) {
	svc := &mockSyncService{allCount: 5, oneCount: 2}
	storesRepo := &mockStoresRepo{
		stores: map[int64]*domain.Store{
			1: {ID: 1, ShopID: "shop-1"},
			2: {ID: 2, ShopID: "shop-2"},
		},
		errOn: make(map[int64]error),
	}
	recs := newMockSyncRecordsRepo()
	kv := store.NewMemoryKV()
	sched := NewSyncScheduler(svc, storesRepo, recs, &mockFleetSyncer{svc: svc}, kv, 3*time.Hour, zap.NewNop())
	return sched, svc, recs, kv
}

// TestRunOnce_UpdatesSyncRecords 测试一轮同步后每个门店和全局水位都被更新
func TestRunOnce_UpdatesSyncRecords(t *testing.T) {
	sched, _, recs, kv := newSchedulerFixture()

	count, err := sched.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, count)

	for _, id := range []int64{1, 2, domain.GlobalSyncStoreID} {
		rec, err := recs.Get(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, rec, "expected sync record for store %d", id)
		require.NotEmpty(t, rec.RunID)
		require.NotZero(t, rec.SyncedAt)
	}

	// 三条记录共享同一个运行 ID
	r1, _ := recs.Get(context.Background(), 1)
	rg, _ := recs.Get(context.Background(), domain.GlobalSyncStoreID)
	require.Equal(t, r1.RunID, rg.RunID)

	// 状态缓存写入、运行锁释放
	status, err := kv.Get(context.Background(), syncStatusKey)
	require.NoError(t, err)
	require.Contains(t, status, `"inserted":5`)
	_, err = kv.Get(context.Background(), syncLockKey)
	require.ErrorIs(t, err, store.ErrMiss)
}

// TestRunOnce_CollaboratorsRunBeforeReports 测试门店/机器人同步先于报告同步
func TestRunOnce_CollaboratorsRunBeforeReports(t *testing.T) {
	sched, svc, _, _ := newSchedulerFixture()

	_, err := sched.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"stores", "robots", "all-reports"}, svc.calls)
}

// TestRunOnce_SkipsWhenLockHeld 测试运行锁被占用时整轮跳过
func TestRunOnce_SkipsWhenLockHeld(t *testing.T) {
	sched, svc, _, kv := newSchedulerFixture()
	require.NoError(t, kv.Set(context.Background(), syncLockKey, "other-run", time.Hour))

	count, err := sched.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, count)
	require.Empty(t, svc.calls)
}

// TestSyncStoreNow 测试单店立即同步并更新该店水位
func TestSyncStoreNow(t *testing.T) {
	sched, svc, recs, _ := newSchedulerFixture()

	count, err := sched.SyncStoreNow(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, []string{"store-reports"}, svc.calls)

	rec, err := recs.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, rec)

	// 只更新该门店，不更新全局记录
	global, err := recs.Get(context.Background(), domain.GlobalSyncStoreID)
	require.NoError(t, err)
	require.Nil(t, global)
}

// TestStart_RunsImmediatelyAndStopsOnCancel 测试启动即跑一轮、取消后退出
func TestStart_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	sched, svc, _, _ := newSchedulerFixture()
	sched.interval = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return len(svc.calls) >= 3 // 第一轮的 stores/robots/all-reports
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}
}
