package domain

import "time"

// 记录的实际动作。决策动作与实际动作可能不同：
// 决定转发但外发失败时，记录 ActionFailed 而非 ActionForward。
const (
	LogActionForward    = "forward"
	LogActionDelete     = "delete"
	LogActionQuarantine = "quarantine"
	LogActionFailed     = "failed"
)

// EmailLog 表示一次分流决策的不可变审计记录。
//
// 每个成功处理的入站事件恰好写入一条；写入后不再修改或删除。
type EmailLog struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TempAddressID string    `json:"tempAddressId" gorm:"type:varchar(36);index;not null"`
	SenderEmail   string    `json:"senderEmail" gorm:"type:varchar(255);not null"`
	Subject       string    `json:"subject" gorm:"type:varchar(500)"`
	BodyPreview   string    `json:"bodyPreview" gorm:"type:text"` // 正文前 200 字符
	ActionTaken   string    `json:"actionTaken" gorm:"type:varchar(20);not null;index"`
	Confidence    float64   `json:"confidence"` // 规则命中固定 1.0，AI 判定在 [0,1]
	Reasoning     string    `json:"reasoning" gorm:"type:text"`
	CreatedAt     time.Time `json:"createdAt" gorm:"index"`
}
