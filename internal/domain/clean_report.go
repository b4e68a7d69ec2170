package domain

import "database/sql"

// CleanReport 清洁任务报告领域模型（对应 clean_reports 表）
// ReportID 是厂家分配的全局唯一任务标识，也是幂等写入的依据：
// 同一 report_id 只会入库一次，同步管道不会更新或删除已入库的报告
type CleanReport struct {
	ID       int64  `json:"id"`        // 内部 ID
	ReportID string `json:"report_id"` // 厂家报告 ID（唯一）
	RobotID  int64  `json:"robot_id"`  // 所属机器人
	RobotSN  string `json:"robot_sn"`  // 机器人序列号（冗余，便于展示/导出）

	// 任务执行信息
	Status    int    `json:"status"`     // 任务状态码
	StartTime int64  `json:"start_time"` // 开始时间（Unix 时间戳，秒）
	EndTime   int64  `json:"end_time"`   // 结束时间（Unix 时间戳，秒）
	Mode      string `json:"mode"`       // 清洁模式

	// 数值遥测字段：源端缺失或非正值时存 NULL 而不是 0，避免污染下游均值
	CleanTime   sql.NullInt64   `json:"-"` // 清洁时长（秒）
	TaskArea    sql.NullFloat64 `json:"-"` // 任务面积（平方米）
	CleanArea   sql.NullFloat64 `json:"-"` // 实际清洁面积（平方米）
	CostBattery sql.NullInt64   `json:"-"` // 电量消耗（百分点）
	CostWater   sql.NullInt64   `json:"-"` // 水量消耗（毫升）

	// 地图信息
	MapName string `json:"map_name"` // 地图名称
	MapURL  string `json:"map_url"`  // 地图图片 URL（可能为空）

	// 备注：入库后可由管理操作修改，同步管道不写此字段
	Remark sql.NullString `json:"-"`

	CreatedAt int64 `json:"created_at"` // 入库时间（Unix 时间戳，秒）
}

// ToJSON 转换为JSON格式（用于HTTP响应）
func (r *CleanReport) ToJSON() map[string]any {
	m := map[string]any{
		"id":         r.ID,
		"report_id":  r.ReportID,
		"robot_id":   r.RobotID,
		"robot_sn":   r.RobotSN,
		"status":     r.Status,
		"start_time": r.StartTime,
		"end_time":   r.EndTime,
		"mode":       r.Mode,
		"map_name":   r.MapName,
		"map_url":    r.MapURL,
		"created_at": r.CreatedAt,
	}
	if r.CleanTime.Valid {
		m["clean_time"] = r.CleanTime.Int64
	} else {
		m["clean_time"] = nil
	}
	if r.TaskArea.Valid {
		m["task_area"] = r.TaskArea.Float64
	} else {
		m["task_area"] = nil
	}
	if r.CleanArea.Valid {
		m["clean_area"] = r.CleanArea.Float64
	} else {
		m["clean_area"] = nil
	}
	if r.CostBattery.Valid {
		m["cost_battery"] = r.CostBattery.Int64
	} else {
		m["cost_battery"] = nil
	}
	if r.CostWater.Valid {
		m["cost_water"] = r.CostWater.Int64
	} else {
		m["cost_water"] = nil
	}
	if r.Remark.Valid {
		m["remark"] = r.Remark.String
	} else {
		m["remark"] = nil
	}
	return m
}
