package domain

// Store 门店领域模型（对应 stores 表）
// 门店由管理后台维护；报告同步管道只读，不修改
type Store struct {
	ID       int64  `json:"id"`       // 内部 ID
	ShopID   string `json:"shop_id"`  // 厂家分配的门店 ID（调用厂家 API 时使用）
	Name     string `json:"name"`     // 门店显示名称
	Industry string `json:"industry"` // 行业分类
	Deleted  bool   `json:"deleted"`  // 软删除标记（已删除门店不参与同步）
}
