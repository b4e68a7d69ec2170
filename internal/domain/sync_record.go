package domain

// GlobalSyncStoreID sync_records 表中预留的"全局同步"记录 ID
// 定时任务完成一轮全量同步后，除每个门店的记录外还会更新此记录
const GlobalSyncStoreID int64 = 0

// SyncRecord 同步水位记录（对应 sync_records 表，每个门店一行）
// 仅用于展示和审计；去重靠 clean_reports.report_id 唯一约束，不靠时间水位
type SyncRecord struct {
	StoreID  int64  `json:"store_id"`  // 门店 ID（0 表示全局）
	SyncedAt int64  `json:"synced_at"` // 最近一次成功同步的完成时间（Unix 时间戳，秒）
	RunID    string `json:"run_id"`    // 最近一次同步的运行 ID（uuid，用于日志关联）
}
