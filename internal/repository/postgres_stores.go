package repository

import (
	"context"
	"database/sql"
	"fmt"

	"robot-report-sync/internal/domain"
)

// PostgresStoresRepository 门店 Repository 实现
type PostgresStoresRepository struct {
	db *sql.DB
}

// NewPostgresStoresRepository 创建门店 Repository
func NewPostgresStoresRepository(db *sql.DB) *PostgresStoresRepository {
	return &PostgresStoresRepository{db: db}
}

// 确保实现了接口
var _ StoresRepository = (*PostgresStoresRepository)(nil)

// GetStore 按内部 ID 获取门店
func (r *PostgresStoresRepository) GetStore(ctx context.Context, id int64) (*domain.Store, error) {
	query := `
		SELECT id, shop_id, name, COALESCE(industry, '') AS industry, deleted
		FROM stores
		WHERE id = $1
	`

	var store domain.Store
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&store.ID,
		&store.ShopID,
		&store.Name,
		&store.Industry,
		&store.Deleted,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // 门店不存在，返回 nil
		}
		return nil, fmt.Errorf("failed to get store: %w", err)
	}

	return &store, nil
}

// ListActiveStores 列出所有未软删除的门店
func (r *PostgresStoresRepository) ListActiveStores(ctx context.Context) ([]*domain.Store, error) {
	query := `
		SELECT id, shop_id, name, COALESCE(industry, '') AS industry, deleted
		FROM stores
		WHERE deleted = false
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	defer rows.Close()

	stores := make([]*domain.Store, 0)
	for rows.Next() {
		var store domain.Store
		if err := rows.Scan(&store.ID, &store.ShopID, &store.Name, &store.Industry, &store.Deleted); err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		stores = append(stores, &store)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stores: %w", err)
	}

	return stores, nil
}
