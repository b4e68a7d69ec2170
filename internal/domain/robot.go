package domain

// Robot 机器人领域模型（对应 robots 表）
// 机器人由独立的机器人同步进程维护；报告同步管道只按 SN 读取用于挂载报告
type Robot struct {
	ID          int64  `json:"id"`           // 内部 ID
	StoreID     int64  `json:"store_id"`     // 所属门店
	SN          string `json:"sn"`           // 序列号（唯一，厂家 API 的设备标识）
	MAC         string `json:"mac"`          // MAC 地址
	ProductCode string `json:"product_code"` // 产品型号编码

	// 实时状态（由机器人同步进程更新）
	Nickname string `json:"nickname"` // 昵称
	Online   bool   `json:"online"`   // 在线标记
	Battery  int    `json:"battery"`  // 电量百分比
	Status   int    `json:"status"`   // 状态码
}
