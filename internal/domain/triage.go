package domain

// DecisionSource 决策来源
type DecisionSource string

const (
	SourceRule       DecisionSource = "rule"        // 用户规则命中
	SourceAI         DecisionSource = "ai"          // AI 分类
	SourceAIFallback DecisionSource = "ai_fallback" // AI 调用失败后的安全默认值
)

// Decision 表示对一封入站邮件的分流判定。
type Decision struct {
	Action     RuleAction     `json:"action"`
	Confidence float64        `json:"confidence"` // [0,1]
	Reasoning  string         `json:"reasoning"`
	Source     DecisionSource `json:"source"`
}

// InboundEmail 表示一封待分流的入站邮件。
//
// Body 取 html 优先于 text（两者都有时原样使用 HTML，包括标签）。
type InboundEmail struct {
	To      string `json:"to"`      // 目标临时地址，已转小写
	From    string `json:"from"`    // 发件人地址
	Subject string `json:"subject"` //
	Body    string `json:"body"`    //
}

// InboundEventType 入站 Webhook 事件类型
const InboundEventReceived = "inbound"

// InboundRecipient 入站事件中的收件人描述
type InboundRecipient struct {
	Email string `json:"email"`
}

// InboundEvent 外部收信服务推送的单个 Webhook 事件。
//
// Event 不等于 "inbound" 的事件被静默忽略。目标地址取 To 第一项的 Email。
type InboundEvent struct {
	Event   string             `json:"event"`
	To      []InboundRecipient `json:"to"`
	From    string             `json:"from"`
	Subject string             `json:"subject"`
	Text    string             `json:"text"`
	HTML    string             `json:"html"`
}

// Email 将事件转换为标准化的入站邮件。
//
// 返回 false 表示事件缺少收件人，无法分流。
func (e *InboundEvent) Email() (InboundEmail, bool) {
	if len(e.To) == 0 || e.To[0].Email == "" {
		return InboundEmail{}, false
	}

	body := e.Text
	if e.HTML != "" {
		body = e.HTML
	}

	return InboundEmail{
		To:      normalizeAddress(e.To[0].Email),
		From:    e.From,
		Subject: e.Subject,
		Body:    body,
	}, true
}
