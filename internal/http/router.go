package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterSyncRoutes 注册报告同步触发接口
func (r *Router) RegisterSyncRoutes(h *ReportSyncHandler) {
	r.Handle("/report/api/v1/sync/store/", h.SyncStore)
	r.Handle("/report/api/v1/sync/all", h.SyncAll)
	r.Handle("/report/api/v1/sync/history", h.SyncHistory)
	r.Handle("/report/api/v1/sync/now", h.SyncNow)
	r.Handle("/report/api/v1/sync/records", h.SyncRecords)
}

// RegisterReportRoutes 注册报告查询/管理接口
func (r *Router) RegisterReportRoutes(h *ReportHandler) {
	r.Handle("/report/api/v1/reports", h.ListReports)
	r.Handle("/report/api/v1/reports/export", h.ExportReports)
	r.Handle("/report/api/v1/reports/", h.ReportByID)
}
