package repository

import (
	"context"
	"database/sql"
	"fmt"

	"robot-report-sync/internal/domain"
)

// PostgresRobotsRepository 机器人 Repository 实现
type PostgresRobotsRepository struct {
	db *sql.DB
}

// NewPostgresRobotsRepository 创建机器人 Repository
func NewPostgresRobotsRepository(db *sql.DB) *PostgresRobotsRepository {
	return &PostgresRobotsRepository{db: db}
}

// 确保实现了接口
var _ RobotsRepository = (*PostgresRobotsRepository)(nil)

// GetRobotBySN 按序列号获取机器人
func (r *PostgresRobotsRepository) GetRobotBySN(ctx context.Context, sn string) (*domain.Robot, error) {
	if sn == "" {
		return nil, fmt.Errorf("sn is required")
	}

	query := `
		SELECT
			id,
			store_id,
			sn,
			COALESCE(mac, '') AS mac,
			COALESCE(product_code, '') AS product_code,
			COALESCE(nickname, '') AS nickname,
			online,
			battery,
			status
		FROM robots
		WHERE sn = $1
	`

	var robot domain.Robot
	err := r.db.QueryRowContext(ctx, query, sn).Scan(
		&robot.ID,
		&robot.StoreID,
		&robot.SN,
		&robot.MAC,
		&robot.ProductCode,
		&robot.Nickname,
		&robot.Online,
		&robot.Battery,
		&robot.Status,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // 机器人不存在，返回 nil
		}
		return nil, fmt.Errorf("failed to get robot by sn: %w", err)
	}

	return &robot, nil
}
