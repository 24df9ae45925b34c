package domain

// DashboardStats 用户仪表盘统计信息。
//
// ActiveAddresses 基于 is_active 标志统计；因为过期是懒执行的（读路径触发），
// 已过期但尚未收到邮件的地址仍会被计入活跃数量。
type DashboardStats struct {
	TotalAddresses  int        `json:"totalAddresses"`
	ActiveAddresses int        `json:"activeAddresses"`
	EmailsForwarded int        `json:"emailsForwarded"`
	EmailsDeleted   int        `json:"emailsDeleted"`
	RecentActivity  []EmailLog `json:"recentActivity"`
}
