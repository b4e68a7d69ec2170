package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"robot-report-sync/internal/config"
	"robot-report-sync/internal/domain"
	"robot-report-sync/internal/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ============================================================
// Mock 实现
// ============================================================

type mockStoresRepo struct {
	stores map[int64]*domain.Store
	errOn  map[int64]error
}

func (m *mockStoresRepo) GetStore(_ context.Context, id int64) (*domain.Store, error) {
	if err, ok := m.errOn[id]; ok {
		return nil, err
	}
	return m.stores[id], nil
}

func (m *mockStoresRepo) ListActiveStores(_ context.Context) ([]*domain.Store, error) {
	var out []*domain.Store
	for _, s := range m.stores {
		if !s.Deleted {
			out = append(out, s)
		}
	}
	return out, nil
}

type mockRobotsRepo struct {
	robots map[string]*domain.Robot
}

func (m *mockRobotsRepo) GetRobotBySN(_ context.Context, sn string) (*domain.Robot, error) {
	return m.robots[sn], nil
}

// mockReportsRepo 内存版报告仓库，按 report_id 去重，模拟唯一约束冲突跳过
type mockReportsRepo struct {
	mu   sync.Mutex
	rows map[string]*domain.CleanReport
}

func newMockReportsRepo() *mockReportsRepo {
	return &mockReportsRepo{rows: make(map[string]*domain.CleanReport)}
}

func (m *mockReportsRepo) ReportExists(_ context.Context, reportID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[reportID]
	return ok, nil
}

func (m *mockReportsRepo) InsertBatch(_ context.Context, reports []*domain.CleanReport) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, r := range reports {
		if _, ok := m.rows[r.ReportID]; ok {
			continue
		}
		m.rows[r.ReportID] = r
		inserted++
	}
	return inserted, nil
}

func (m *mockReportsRepo) ListReports(_ context.Context, _ repository.ReportQuery) ([]*domain.CleanReport, int, error) {
	return nil, 0, nil
}

func (m *mockReportsRepo) UpdateRemark(_ context.Context, reportID, remark string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[reportID]
	if !ok {
		return fmt.Errorf("report not found: %s", reportID)
	}
	r.Remark.String = remark
	r.Remark.Valid = true
	return nil
}

func (m *mockReportsRepo) get(reportID string) *domain.CleanReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[reportID]
}

func (m *mockReportsRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// mockVendorClient 厂家客户端 mock：按 offset 返回固定页，详情可注入错误
type mockVendorClient struct {
	mu        sync.Mutex
	pages     map[int][]TaskRef // offset -> 页内容（缺省为空页）
	emptyOnce map[int]bool      // 首次查询返回空页（模拟瞬时空页）
	listErrOn map[int]error
	listCalls map[int]int

	details     map[string]*TaskDetail // "sn/report_id" -> 详情
	detailErrs  map[string]error
	detailCalls int64
}

func newMockVendorClient() *mockVendorClient {
	return &mockVendorClient{
		pages:      make(map[int][]TaskRef),
		emptyOnce:  make(map[int]bool),
		listErrOn:  make(map[int]error),
		listCalls:  make(map[int]int),
		details:    make(map[string]*TaskDetail),
		detailErrs: make(map[string]error),
	}
}

func (m *mockVendorClient) QueryTaskList(_ context.Context, _ string, _ TimeWindow, offset, _, _ int) ([]TaskRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls[offset]++
	if err, ok := m.listErrOn[offset]; ok {
		return nil, err
	}
	if m.emptyOnce[offset] && m.listCalls[offset] == 1 {
		return nil, nil
	}
	return m.pages[offset], nil
}

func (m *mockVendorClient) QueryTaskDetail(_ context.Context, sn, reportID, _ string, _ TimeWindow, _ int) (*TaskDetail, error) {
	atomic.AddInt64(&m.detailCalls, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sn + "/" + reportID
	if err, ok := m.detailErrs[key]; ok {
		return nil, err
	}
	if d, ok := m.details[key]; ok {
		return d, nil
	}
	// 缺省详情：合法的已完成任务
	return &TaskDetail{
		Status:    4,
		StartTime: 1700000000,
		EndTime:   1700003600,
		CleanTime: 3600,
		TaskArea:  100,
		CleanArea: 90,
		Mode:      "1",
	}, nil
}

// ============================================================
// 测试工具
// ============================================================

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		IntervalHours:  3,
		PageSize:       2,
		BatchSize:      50,
		DetailWorkers:  4,
		DetailQueue:    8,
		StoreWorkers:   2,
		TimezoneOffset: 480,
		HistoryDays:    180,
	}
}

type syncFixture struct {
	svc     *reportSyncService
	stores  *mockStoresRepo
	robots  *mockRobotsRepo
	reports *mockReportsRepo
	vendor  *mockVendorClient
}

func newSyncFixture(cfg config.SyncConfig) *syncFixture {
	f := &syncFixture{
		stores: &mockStoresRepo{
			stores: map[int64]*domain.Store{
				1: {ID: 1, ShopID: "shop-1", Name: "Store One"},
			},
			errOn: make(map[int64]error),
		},
		robots: &mockRobotsRepo{
			robots: map[string]*domain.Robot{
				"R1": {ID: 11, StoreID: 1, SN: "R1"},
				"R2": {ID: 12, StoreID: 1, SN: "R2"},
			},
		},
		reports: newMockReportsRepo(),
		vendor:  newMockVendorClient(),
	}
	svc := NewReportSyncService(f.stores, f.robots, f.reports, nil, cfg, zap.NewNop()).(*reportSyncService)
	svc.SetVendorClientForTest(f.vendor)
	f.svc = svc
	return f
}

var testWindow = TimeWindow{Start: 1700000000, End: 1700010000}

// ============================================================
// 测试用例
// ============================================================

// TestSyncStoreReports_Basic 测试基本同步与字段映射
func TestSyncStoreReports_Basic(t *testing.T) {
	f := newSyncFixture(testSyncConfig())
	f.vendor.pages[0] = []TaskRef{
		{SN: "R1", ReportID: "100"},
		{SN: "R2", ReportID: "101"},
	}
	// report 101 的水量消耗缺失（0），应映射为 NULL 而不是 0
	f.vendor.details["R2/101"] = &TaskDetail{
		Status:    4,
		StartTime: 1700001000,
		EndTime:   1700002000,
		CleanTime: 1000,
		TaskArea:  50,
		CleanArea: 45.5,
		Mode:      "2",
		CostWater: 0,
		FloorList: FloorList{{MapName: "F2", TaskLocalURL: "local.png"}},
	}

	count, err := f.svc.SyncStoreReports(context.Background(), 1, testWindow)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	r := f.reports.get("101")
	require.NotNil(t, r)
	require.Equal(t, int64(12), r.RobotID)
	require.Equal(t, "R2", r.RobotSN)
	require.Equal(t, 4, r.Status)
	require.Equal(t, "2", r.Mode)
	require.Equal(t, 45.5, r.CleanArea.Float64)
	require.True(t, r.CleanArea.Valid)
	require.False(t, r.CostWater.Valid)
	require.False(t, r.CostBattery.Valid)
	require.Equal(t, "F2", r.MapName)
	require.Equal(t, "local.png", r.MapURL)
}

// TestSyncStoreReports_Idempotent 测试重复同步不产生重复行
func TestSyncStoreReports_Idempotent(t *testing.T) {
	f := newSyncFixture(testSyncConfig())
	f.vendor.pages[0] = []TaskRef{
		{SN: "R1", ReportID: "100"},
		{SN: "R2", ReportID: "101"},
	}

	count, err := f.svc.SyncStoreReports(context.Background(), 1, testWindow)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// 第二轮同样的窗口：已入库的全部跳过
	count, err = f.svc.SyncStoreReports(context.Background(), 1, testWindow)
	require.NoError(t, err)
	require.Equal(t, 0, count)
	require.Equal(t, 2, f.reports.count())
}

// TestSyncStoreReports_Pagination 测试翻页到空页终止（空页重查一次）
func TestSyncStoreReports_Pagination(t *testing.T) {
	f := newSyncFixture(testSyncConfig())
	f.vendor.pages[0] = []TaskRef{{SN: "R1", ReportID: "100"}, {SN: "R1", ReportID: "101"}}
	f.vendor.pages[2] = []TaskRef{{SN: "R1", ReportID: "102"}, {SN: "R2", ReportID: "103"}}
	f.vendor.pages[4] = []TaskRef{{SN: "R2", ReportID: "104"}, {SN: "R2", ReportID: "105"}}

	count, err := f.svc.SyncStoreReports(context.Background(), 1, testWindow)
	require.NoError(t, err)
	require.Equal(t, 6, count)
	require.Equal(t, int64(6), atomic.LoadInt64(&f.vendor.detailCalls))

	// offset 6 为空页：重查一次后才判定结束
	require.Equal(t, 2, f.vendor.listCalls[6])
	require.Equal(t, 1, f.vendor.listCalls[0])
}

// TestSyncStoreReports_EmptyPageTransientRecovers 测试瞬时空页重查后继续翻页
func TestSyncStoreReports_EmptyPageTransientRecovers(t *testing.T) {
	f := newSyncFixture(testSyncConfig())
	f.vendor.emptyOnce[0] = true
	f.vendor.pages[0] = []TaskRef{{SN: "R1", ReportID: "100"}, {SN: "R1", ReportID: "101"}}

	count, err := f.svc.SyncStoreReports(context.Background(), 1, testWindow)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, 2, f.vendor.listCalls[0])
}

// TestSyncStoreReports_UnknownRobotDropped 测试未知序列号的报告被丢弃不报错
func TestSyncStoreReports_UnknownRobotDropped(t *testing.T) {
	f := newSyncFixture(testSyncConfig())
	f.vendor.pages[0] = []TaskRef{
		{SN: "R1", ReportID: "100"},
		{SN: "UNKNOWN", ReportID: "200"},
	}

	count, err := f.svc.SyncStoreReports(context.Background(), 1, testWindow)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Nil(t, f.reports.get("200"))
}

// TestSyncStoreReports_DetailFailureSkipsItem 测试单条详情失败只跳过该条
func TestSyncStoreReports_DetailFailureSkipsItem(t *testing.T) {
	f := newSyncFixture(testSyncConfig())
	f.vendor.pages[0] = []TaskRef{
		{SN: "R1", ReportID: "100"},
		{SN: "R1", ReportID: "101"},
	}
	f.vendor.detailErrs["R1/101"] = fmt.Errorf("connection reset")

	count, err := f.svc.SyncStoreReports(context.Background(), 1, testWindow)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.NotNil(t, f.reports.get("100"))
	require.Nil(t, f.reports.get("101"))
}

// TestSyncStoreReports_DuplicateRefsInPage 测试同页重复 report_id 只入库一次
func TestSyncStoreReports_DuplicateRefsInPage(t *testing.T) {
	f := newSyncFixture(testSyncConfig())
	f.vendor.pages[0] = []TaskRef{
		{SN: "R1", ReportID: "100"},
		{SN: "R1", ReportID: "100"},
	}

	count, err := f.svc.SyncStoreReports(context.Background(), 1, testWindow)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, 1, f.reports.count())
}

// TestSyncStoreReports_ListPageFailureKeepsBuffered 测试列表页失败后已缓冲结果照常落库
func TestSyncStoreReports_ListPageFailureKeepsBuffered(t *testing.T) {
	f := newSyncFixture(testSyncConfig())
	f.vendor.pages[0] = []TaskRef{{SN: "R1", ReportID: "100"}, {SN: "R1", ReportID: "101"}}
	f.vendor.listErrOn[2] = fmt.Errorf("gateway timeout")

	count, err := f.svc.SyncStoreReports(context.Background(), 1, testWindow)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

// TestSyncStoreReports_InvalidInput 测试窗口与门店校验
func TestSyncStoreReports_InvalidInput(t *testing.T) {
	f := newSyncFixture(testSyncConfig())

	_, err := f.svc.SyncStoreReports(context.Background(), 1, TimeWindow{})
	require.Error(t, err)

	_, err = f.svc.SyncStoreReports(context.Background(), 1, TimeWindow{Start: 2000, End: 1000})
	require.Error(t, err)

	// 不存在的门店
	_, err = f.svc.SyncStoreReports(context.Background(), 99, testWindow)
	require.Error(t, err)
	require.Contains(t, err.Error(), "store not found")

	// 已软删除的门店
	f.stores.stores[2] = &domain.Store{ID: 2, ShopID: "shop-2", Deleted: true}
	_, err = f.svc.SyncStoreReports(context.Background(), 2, testWindow)
	require.Error(t, err)
}

// TestSyncAllStores_ContinuesPastFailingStore 测试单店失败不影响后续门店
func TestSyncAllStores_ContinuesPastFailingStore(t *testing.T) {
	f := newSyncFixture(testSyncConfig())
	f.stores.stores[2] = &domain.Store{ID: 2, ShopID: "shop-2", Name: "Store Two"}
	f.stores.errOn[2] = fmt.Errorf("database connection lost")
	f.vendor.pages[0] = []TaskRef{{SN: "R1", ReportID: "100"}}

	count, err := f.svc.SyncAllStores(context.Background(), testWindow)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

// TestSyncHistory 测试历史回填汇总所有门店的入库数
func TestSyncHistory(t *testing.T) {
	f := newSyncFixture(testSyncConfig())
	f.stores.stores[2] = &domain.Store{ID: 2, ShopID: "shop-2", Name: "Store Two"}
	f.vendor.pages[0] = []TaskRef{{SN: "R1", ReportID: "100"}, {SN: "R2", ReportID: "101"}}

	// 两个门店查的是同一个 mock 页：第二个门店拉到的 report_id 已入库，被跳过
	count, err := f.svc.SyncHistory(context.Background(), 30)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, 2, f.reports.count())
}

// TestSyncStoreReports_BatchFlushing 测试缓冲达到批量阈值时分批落库
func TestSyncStoreReports_BatchFlushing(t *testing.T) {
	cfg := testSyncConfig()
	cfg.PageSize = 4
	cfg.BatchSize = 3
	f := newSyncFixture(cfg)
	f.vendor.pages[0] = []TaskRef{
		{SN: "R1", ReportID: "100"},
		{SN: "R1", ReportID: "101"},
		{SN: "R1", ReportID: "102"},
		{SN: "R1", ReportID: "103"},
	}

	count, err := f.svc.SyncStoreReports(context.Background(), 1, testWindow)
	require.NoError(t, err)
	require.Equal(t, 4, count)
	require.Equal(t, 4, f.reports.count())
}
