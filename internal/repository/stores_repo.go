package repository

import (
	"context"

	"robot-report-sync/internal/domain"
)

// StoresRepository 门店 Repository 接口
// 门店由管理后台维护，同步管道只读
type StoresRepository interface {
	// GetStore 按内部 ID 获取门店；不存在返回 nil
	GetStore(ctx context.Context, id int64) (*domain.Store, error)

	// ListActiveStores 列出所有未软删除的门店
	ListActiveStores(ctx context.Context) ([]*domain.Store, error)
}
