package repository

import (
	"context"

	"robot-report-sync/internal/domain"
)

// SyncRecordsRepository 同步水位 Repository 接口
// 每个门店一行（store_id 唯一），外加 store_id=0 的全局行；只增改不删
type SyncRecordsRepository interface {
	// Upsert 写入或更新一个门店的同步水位
	Upsert(ctx context.Context, rec *domain.SyncRecord) error

	// Get 获取一个门店的同步水位；不存在返回 nil
	Get(ctx context.Context, storeID int64) (*domain.SyncRecord, error)

	// List 列出所有同步水位
	List(ctx context.Context) ([]*domain.SyncRecord, error)
}
