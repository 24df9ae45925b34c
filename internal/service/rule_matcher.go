package service

import (
	"fmt"
	"strings"

	"mailrouter/backend/internal/domain"
)

// MatchRules 按顺序对规则求值，返回首个命中规则的判定；无命中返回 nil。
//
// 匹配方式：把 发件人+主题+正文 拼成小写文本，规则的逗号分隔关键词
// 任意一个作为子串出现即命中。规则命中的置信度恒为 1.0。
// 纯函数，不做任何 IO。
func MatchRules(sender, subject, body string, rules []domain.ForwardingRule) *domain.Decision {
	haystack := strings.ToLower(sender + " " + subject + " " + body)

	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}

		for _, keyword := range strings.Split(rule.Keywords, ",") {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword == "" {
				continue
			}
			if strings.Contains(haystack, keyword) {
				return &domain.Decision{
					Action:     rule.Action,
					Confidence: 1.0,
					Reasoning:  fmt.Sprintf("Matched user rule: %s", rule.Keywords),
					Source:     domain.SourceRule,
				}
			}
		}
	}

	return nil
}
