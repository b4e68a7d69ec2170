package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"robot-report-sync/internal/config"
	"robot-report-sync/internal/repository"
	"robot-report-sync/internal/service"

	"go.uber.org/zap"
)

// AdminRole "立即同步"接口触发全局同步所需的角色
const AdminRole = "Admin"

// ReportSyncHandler 报告同步触发 Handler
// 所有接口返回本次新入库的报告数；时间范围参数缺省时使用刚过去的一个同步周期
type ReportSyncHandler struct {
	syncService service.ReportSyncService
	scheduler   *service.SyncScheduler
	recordsRepo repository.SyncRecordsRepository
	cfg         config.SyncConfig
	logger      *zap.Logger
}

// NewReportSyncHandler 创建 ReportSyncHandler
func NewReportSyncHandler(
	syncService service.ReportSyncService,
	scheduler *service.SyncScheduler,
	recordsRepo repository.SyncRecordsRepository,
	cfg config.SyncConfig,
	logger *zap.Logger,
) *ReportSyncHandler {
	return &ReportSyncHandler{
		syncService: syncService,
		scheduler:   scheduler,
		recordsRepo: recordsRepo,
		cfg:         cfg,
		logger:      logger,
	}
}

// windowFromReq 解析 start/end 查询参数（Unix 秒），缺省为刚过去的一个同步周期
func (h *ReportSyncHandler) windowFromReq(r *http.Request) service.TimeWindow {
	now := time.Now()
	def := service.TimeWindow{
		Start: now.Add(-time.Duration(h.cfg.IntervalHours) * time.Hour).Unix(),
		End:   now.Unix(),
	}
	return service.TimeWindow{
		Start: parseInt64Query(r, "start", def.Start),
		End:   parseInt64Query(r, "end", def.End),
	}
}

// SyncStore 同步单个门店
// POST /report/api/v1/sync/store/{id}?start=&end=
func (h *ReportSyncHandler) SyncStore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/report/api/v1/sync/store/")
	storeID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || storeID <= 0 {
		writeJSON(w, http.StatusOK, Fail("valid store id is required"))
		return
	}

	count, err := h.syncService.SyncStoreReports(r.Context(), storeID, h.windowFromReq(r))
	if err != nil {
		h.logger.Error("manual store sync failed",
			zap.Int64("store_id", storeID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"count": count}))
}

// SyncAll 同步所有门店
// POST /report/api/v1/sync/all?start=&end=
func (h *ReportSyncHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	count, err := h.syncService.SyncAllStores(r.Context(), h.windowFromReq(r))
	if err != nil {
		h.logger.Error("manual all-store sync failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"count": count}))
}

// SyncHistory 历史回填
// POST /report/api/v1/sync/history?days=180
func (h *ReportSyncHandler) SyncHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	days := parseIntQuery(r, "days", h.cfg.HistoryDays)
	count, err := h.syncService.SyncHistory(r.Context(), days)
	if err != nil {
		h.logger.Error("history sync failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"count": count}))
}

// SyncNow 立即同步（按角色分流）
// POST /report/api/v1/sync/now
// 管理员（X-User-Role: Admin）触发全局同步；其他角色只同步自己门店（X-Store-Id）
func (h *ReportSyncHandler) SyncNow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	role := r.Header.Get("X-User-Role")
	if role == AdminRole {
		count, err := h.scheduler.RunOnce(r.Context())
		if err != nil {
			h.logger.Error("admin sync-now failed", zap.Error(err))
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"count": count}))
		return
	}

	storeID, err := strconv.ParseInt(r.Header.Get("X-Store-Id"), 10, 64)
	if err != nil || storeID <= 0 {
		writeJSON(w, http.StatusOK, Fail("store id is required for non-admin sync"))
		return
	}

	count, err := h.scheduler.SyncStoreNow(r.Context(), storeID)
	if err != nil {
		h.logger.Error("store sync-now failed",
			zap.Int64("store_id", storeID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"count": count}))
}

// SyncRecords 查询同步水位
// GET /report/api/v1/sync/records
func (h *ReportSyncHandler) SyncRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	records, err := h.recordsRepo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list sync records", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(records))
}
