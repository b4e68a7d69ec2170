package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"robot-report-sync/internal/domain"
)

// PostgresCleanReportsRepository 清洁报告 Repository 实现
type PostgresCleanReportsRepository struct {
	db *sql.DB
}

// NewPostgresCleanReportsRepository 创建清洁报告 Repository
func NewPostgresCleanReportsRepository(db *sql.DB) *PostgresCleanReportsRepository {
	return &PostgresCleanReportsRepository{db: db}
}

// 确保实现了接口
var _ CleanReportsRepository = (*PostgresCleanReportsRepository)(nil)

// reportColumns SELECT 列（与 scanReport 对应）
const reportColumns = `
	id,
	report_id,
	robot_id,
	robot_sn,
	status,
	start_time,
	end_time,
	COALESCE(mode, '') AS mode,
	clean_time,
	task_area,
	clean_area,
	cost_battery,
	cost_water,
	COALESCE(map_name, '') AS map_name,
	COALESCE(map_url, '') AS map_url,
	remark,
	EXTRACT(EPOCH FROM created_at)::bigint AS created_at
`

func scanReport(row interface{ Scan(...any) error }) (*domain.CleanReport, error) {
	var report domain.CleanReport
	err := row.Scan(
		&report.ID,
		&report.ReportID,
		&report.RobotID,
		&report.RobotSN,
		&report.Status,
		&report.StartTime,
		&report.EndTime,
		&report.Mode,
		&report.CleanTime,
		&report.TaskArea,
		&report.CleanArea,
		&report.CostBattery,
		&report.CostWater,
		&report.MapName,
		&report.MapURL,
		&report.Remark,
		&report.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// ReportExists 判断厂家 report_id 是否已入库
func (r *PostgresCleanReportsRepository) ReportExists(ctx context.Context, reportID string) (bool, error) {
	if reportID == "" {
		return false, fmt.Errorf("report_id is required")
	}

	query := `SELECT EXISTS(SELECT 1 FROM clean_reports WHERE report_id = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, reportID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check if report exists: %w", err)
	}
	return exists, nil
}

// InsertBatch 批量插入报告
// ON CONFLICT (report_id) DO NOTHING：并发解析下两个 worker 同时通过了存在性
// 检查也只会落一行，重复不报错；返回实际插入行数（重复不计数）
func (r *PostgresCleanReportsRepository) InsertBatch(ctx context.Context, reports []*domain.CleanReport) (int, error) {
	if len(reports) == 0 {
		return 0, nil
	}

	const fieldCount = 15
	valueClauses := make([]string, 0, len(reports))
	args := make([]any, 0, len(reports)*fieldCount)
	now := time.Now()

	for i, report := range reports {
		base := i * fieldCount
		placeholders := make([]string, fieldCount)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueClauses = append(valueClauses, "("+strings.Join(placeholders, ", ")+")")
		args = append(args,
			report.ReportID,
			report.RobotID,
			report.RobotSN,
			report.Status,
			report.StartTime,
			report.EndTime,
			report.Mode,
			report.CleanTime,
			report.TaskArea,
			report.CleanArea,
			report.CostBattery,
			report.CostWater,
			report.MapName,
			report.MapURL,
			now,
		)
	}

	query := `
		INSERT INTO clean_reports (
			report_id,
			robot_id,
			robot_sn,
			status,
			start_time,
			end_time,
			mode,
			clean_time,
			task_area,
			clean_area,
			cost_battery,
			cost_water,
			map_name,
			map_url,
			created_at
		) VALUES ` + strings.Join(valueClauses, ", ") + `
		ON CONFLICT (report_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert clean reports: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted row count: %w", err)
	}
	return int(inserted), nil
}

// ListReports 查询报告列表（支持分页）
func (r *PostgresCleanReportsRepository) ListReports(ctx context.Context, q ReportQuery) ([]*domain.CleanReport, int, error) {
	where := []string{"1=1"}
	args := []any{}

	if q.StoreID != 0 {
		args = append(args, q.StoreID)
		where = append(where, fmt.Sprintf("robot_id IN (SELECT id FROM robots WHERE store_id = $%d)", len(args)))
	}
	if q.RobotSN != "" {
		args = append(args, q.RobotSN)
		where = append(where, fmt.Sprintf("robot_sn = $%d", len(args)))
	}
	if q.StartTime != 0 {
		args = append(args, q.StartTime)
		where = append(where, fmt.Sprintf("start_time >= $%d", len(args)))
	}
	if q.EndTime != 0 {
		args = append(args, q.EndTime)
		where = append(where, fmt.Sprintf("start_time <= $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	// 计算总数
	var total int
	countQuery := `SELECT COUNT(*) FROM clean_reports WHERE ` + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count clean reports: %w", err)
	}

	// 分页参数
	page := q.Page
	if page <= 0 {
		page = 1
	}
	size := q.Size
	if size <= 0 {
		size = 10
	}
	args = append(args, size, (page-1)*size)

	query := fmt.Sprintf(`
		SELECT %s
		FROM clean_reports
		WHERE %s
		ORDER BY start_time DESC
		LIMIT $%d OFFSET $%d
	`, reportColumns, whereClause, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list clean reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*domain.CleanReport, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan clean report: %w", err)
		}
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate clean reports: %w", err)
	}

	return reports, total, nil
}

// UpdateRemark 修改报告备注
func (r *PostgresCleanReportsRepository) UpdateRemark(ctx context.Context, reportID, remark string) error {
	if reportID == "" {
		return fmt.Errorf("report_id is required")
	}

	query := `UPDATE clean_reports SET remark = $2 WHERE report_id = $1`

	result, err := r.db.ExecContext(ctx, query, reportID, remark)
	if err != nil {
		return fmt.Errorf("failed to update report remark: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected row count: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("report not found: report_id=%s", reportID)
	}
	return nil
}
