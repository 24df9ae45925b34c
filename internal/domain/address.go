package domain

import "time"

// TempAddress 表示一次性临时邮箱地址的业务实体。
//
// 生命周期：创建时生成唯一地址并默认 30 天过期；显式停用或首封过期后到达的
// 邮件触发懒停用（读路径，无后台清理任务）。停用后永不恢复，也永不删除，
// 因为 EmailLog 仍引用它。
type TempAddress struct {
	ID        string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string     `json:"userId" gorm:"type:varchar(36);index;not null"`
	Address   string     `json:"address" gorm:"type:varchar(255);uniqueIndex;not null"`
	Purpose   string     `json:"purpose,omitempty" gorm:"type:varchar(255)"` // 用途说明，作为 AI 分类的上下文
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	IsActive  bool       `json:"isActive" gorm:"default:true;index"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Expired 判断地址在给定时刻是否已过期。
//
// 未设置过期时间的地址永不过期。
func (a *TempAddress) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}
