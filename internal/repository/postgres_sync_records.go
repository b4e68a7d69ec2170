package repository

import (
	"context"
	"database/sql"
	"fmt"

	"robot-report-sync/internal/domain"
)

// PostgresSyncRecordsRepository 同步水位 Repository 实现
type PostgresSyncRecordsRepository struct {
	db *sql.DB
}

// NewPostgresSyncRecordsRepository 创建同步水位 Repository
func NewPostgresSyncRecordsRepository(db *sql.DB) *PostgresSyncRecordsRepository {
	return &PostgresSyncRecordsRepository{db: db}
}

// 确保实现了接口
var _ SyncRecordsRepository = (*PostgresSyncRecordsRepository)(nil)

// Upsert 写入或更新一个门店的同步水位
func (r *PostgresSyncRecordsRepository) Upsert(ctx context.Context, rec *domain.SyncRecord) error {
	if rec == nil {
		return fmt.Errorf("sync record is required")
	}

	query := `
		INSERT INTO sync_records (store_id, synced_at, run_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (store_id)
		DO UPDATE SET synced_at = EXCLUDED.synced_at,
		              run_id = EXCLUDED.run_id
	`

	if _, err := r.db.ExecContext(ctx, query, rec.StoreID, rec.SyncedAt, rec.RunID); err != nil {
		return fmt.Errorf("failed to upsert sync record: %w", err)
	}
	return nil
}

// Get 获取一个门店的同步水位
func (r *PostgresSyncRecordsRepository) Get(ctx context.Context, storeID int64) (*domain.SyncRecord, error) {
	query := `
		SELECT store_id, synced_at, COALESCE(run_id, '') AS run_id
		FROM sync_records
		WHERE store_id = $1
	`

	var rec domain.SyncRecord
	err := r.db.QueryRowContext(ctx, query, storeID).Scan(&rec.StoreID, &rec.SyncedAt, &rec.RunID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // 尚未同步过，返回 nil
		}
		return nil, fmt.Errorf("failed to get sync record: %w", err)
	}

	return &rec, nil
}

// List 列出所有同步水位
func (r *PostgresSyncRecordsRepository) List(ctx context.Context) ([]*domain.SyncRecord, error) {
	query := `
		SELECT store_id, synced_at, COALESCE(run_id, '') AS run_id
		FROM sync_records
		ORDER BY store_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync records: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.SyncRecord, 0)
	for rows.Next() {
		var rec domain.SyncRecord
		if err := rows.Scan(&rec.StoreID, &rec.SyncedAt, &rec.RunID); err != nil {
			return nil, fmt.Errorf("failed to scan sync record: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sync records: %w", err)
	}

	return records, nil
}
