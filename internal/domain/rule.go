package domain

import "time"

// RuleAction 转发规则的动作类型
type RuleAction string

const (
	ActionForward    RuleAction = "forward"    // 转发到用户真实邮箱
	ActionDelete     RuleAction = "delete"     // 丢弃
	ActionQuarantine RuleAction = "quarantine" // 隔离（仅记录，不外发）
)

// ValidRuleAction 判断动作是否为合法的规则动作。
func ValidRuleAction(action RuleAction) bool {
	switch action {
	case ActionForward, ActionDelete, ActionQuarantine:
		return true
	}
	return false
}

// ForwardingRule 表示用户定义的关键词转发规则。
//
// Keywords 为逗号分隔的关键词列表，匹配时对 发件人+主题+正文 做不区分大小写
// 的子串匹配。规则按 Priority 升序求值，首个命中的规则直接决定动作。
// Priority 在创建时按已有规则数量递增分配，使默认求值顺序等于创建顺序。
type ForwardingRule struct {
	ID        string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string     `json:"userId" gorm:"type:varchar(36);index;not null"`
	Keywords  string     `json:"keywords" gorm:"type:varchar(500);not null"`
	Action    RuleAction `json:"action" gorm:"type:varchar(20);not null"`
	Priority  int        `json:"priority" gorm:"not null;default:0"`
	IsActive  bool       `json:"isActive" gorm:"default:true"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
