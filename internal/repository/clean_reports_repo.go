package repository

import (
	"context"

	"robot-report-sync/internal/domain"
)

// ReportQuery 报告列表查询条件
type ReportQuery struct {
	StoreID   int64  // 0 表示不过滤
	RobotSN   string // 空串表示不过滤
	StartTime int64  // 开始时间下界（Unix 秒，0 表示不过滤）
	EndTime   int64  // 开始时间上界（Unix 秒，0 表示不过滤）
	Page      int    // 页码，默认 1
	Size      int    // 每页数量，默认 10
}

// CleanReportsRepository 清洁报告 Repository 接口
// 写入只有批量插入一条路径：ON CONFLICT (report_id) DO NOTHING，
// 重复 report_id 静默跳过，入库即不可变（remark 除外）
type CleanReportsRepository interface {
	// ReportExists 判断厂家 report_id 是否已入库
	ReportExists(ctx context.Context, reportID string) (bool, error)

	// InsertBatch 批量插入报告，重复 report_id 跳过；返回实际插入行数
	InsertBatch(ctx context.Context, reports []*domain.CleanReport) (int, error)

	// ListReports 查询报告列表（支持分页）
	ListReports(ctx context.Context, q ReportQuery) ([]*domain.CleanReport, int, error)

	// UpdateRemark 修改报告备注（入库后唯一允许的修改）
	UpdateRemark(ctx context.Context, reportID, remark string) error
}
