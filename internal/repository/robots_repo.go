package repository

import (
	"context"

	"robot-report-sync/internal/domain"
)

// RobotsRepository 机器人 Repository 接口
// 机器人由独立的同步进程创建和更新；报告同步管道只按 SN 查询
type RobotsRepository interface {
	// GetRobotBySN 按序列号获取机器人；不存在返回 nil（不是错误）
	GetRobotBySN(ctx context.Context, sn string) (*domain.Robot, error)
}
