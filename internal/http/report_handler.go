package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"robot-report-sync/internal/repository"

	"go.uber.org/zap"
)

// ReportHandler 清洁报告查询/管理 Handler
type ReportHandler struct {
	reportsRepo repository.CleanReportsRepository
	logger      *zap.Logger
}

// NewReportHandler 创建 ReportHandler
func NewReportHandler(reportsRepo repository.CleanReportsRepository, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		reportsRepo: reportsRepo,
		logger:      logger,
	}
}

// queryFromReq 解析列表查询参数
func queryFromReq(r *http.Request) repository.ReportQuery {
	return repository.ReportQuery{
		StoreID:   parseInt64Query(r, "storeId", 0),
		RobotSN:   r.URL.Query().Get("robotSn"),
		StartTime: parseInt64Query(r, "start", 0),
		EndTime:   parseInt64Query(r, "end", 0),
		Page:      parseIntQuery(r, "page", 1),
		Size:      parseIntQuery(r, "size", 10),
	}
}

// ListReports 查询报告列表
// GET /report/api/v1/reports?storeId=&robotSn=&start=&end=&page=&size=
func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := queryFromReq(r)
	reports, total, err := h.reportsRepo.ListReports(r.Context(), q)
	if err != nil {
		h.logger.Error("failed to list reports", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	items := make([]map[string]any, 0, len(reports))
	for _, report := range reports {
		items = append(items, report.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": items,
		"total": total,
		"page":  q.Page,
		"size":  q.Size,
	}))
}

// ReportByID 报告单条操作路由
// PUT /report/api/v1/reports/{reportId}/remark
func (h *ReportHandler) ReportByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/report/api/v1/reports/")
	if strings.HasSuffix(rest, "/remark") {
		reportID := strings.TrimSuffix(rest, "/remark")
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.UpdateRemark(w, r, reportID)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

// UpdateRemark 修改报告备注（入库后唯一允许的修改）
func (h *ReportHandler) UpdateRemark(w http.ResponseWriter, r *http.Request, reportID string) {
	if reportID == "" {
		writeJSON(w, http.StatusOK, Fail("report_id is required"))
		return
	}

	var payload struct {
		Remark string `json:"remark"`
	}
	if err := readBodyJSON(r, 64*1024, &payload); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}

	if err := h.reportsRepo.UpdateRemark(r.Context(), reportID, payload.Remark); err != nil {
		h.logger.Error("failed to update report remark",
			zap.String("report_id", reportID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"report_id": reportID}))
}

// ExportReports 导出报告 Excel
// GET /report/api/v1/reports/export?storeId=&robotSn=&start=&end=
func (h *ReportHandler) ExportReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := queryFromReq(r)
	q.Page = 1
	q.Size = exportMaxRows
	reports, _, err := h.reportsRepo.ListReports(r.Context(), q)
	if err != nil {
		h.logger.Error("failed to load reports for export", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	data, err := GenerateReportExport(reports)
	if err != nil {
		h.logger.Error("failed to generate report export", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	filename := fmt.Sprintf("clean-reports-%s.xlsx", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
