package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailrouter/backend/internal/domain"
)

var (
	// ErrInvalidAction 非法的规则动作
	ErrInvalidAction = errors.New("invalid rule action")
	// ErrEmptyKeywords 关键词为空
	ErrEmptyKeywords = errors.New("keywords must not be empty")
)

// RuleService 封装转发规则相关业务操作。
type RuleService struct {
	store domain.Store
	clock domain.Clock
	log   *zap.Logger
}

// NewRuleService 创建转发规则服务。
func NewRuleService(store domain.Store, log *zap.Logger) *RuleService {
	return &RuleService{
		store: store,
		clock: time.Now,
		log:   log,
	}
}

// CreateRuleInput 创建规则的输入。
type CreateRuleInput struct {
	Keywords string
	Action   domain.RuleAction
	Priority *int // 可选；缺省按已有规则数量递增分配
}

// Create 为用户创建一条转发规则。
//
// 未显式指定优先级时按已有规则数量分配，使默认求值顺序等于创建顺序。
func (s *RuleService) Create(userID string, input CreateRuleInput) (*domain.ForwardingRule, error) {
	keywords := strings.TrimSpace(input.Keywords)
	if err := validateKeywords(keywords); err != nil {
		return nil, err
	}
	if !domain.ValidRuleAction(input.Action) {
		return nil, ErrInvalidAction
	}

	priority := 0
	if input.Priority != nil {
		priority = *input.Priority
	} else {
		count, err := s.store.CountRulesByUserID(userID)
		if err != nil {
			return nil, fmt.Errorf("count rules: %w", err)
		}
		priority = count
	}

	now := s.clock().UTC()
	rule := &domain.ForwardingRule{
		ID:        uuid.NewString(),
		UserID:    userID,
		Keywords:  keywords,
		Action:    input.Action,
		Priority:  priority,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.SaveRule(rule); err != nil {
		return nil, fmt.Errorf("save rule: %w", err)
	}

	return rule, nil
}

// UpdateRuleInput 更新规则的输入。nil 字段保持不变。
type UpdateRuleInput struct {
	Keywords *string
	Action   *domain.RuleAction
	Priority *int
	IsActive *bool
}

// Update 更新用户的转发规则。不属于该用户的规则视同不存在。
func (s *RuleService) Update(userID, ruleID string, input UpdateRuleInput) (*domain.ForwardingRule, error) {
	rule, err := s.get(userID, ruleID)
	if err != nil {
		return nil, err
	}

	if input.Keywords != nil {
		keywords := strings.TrimSpace(*input.Keywords)
		if err := validateKeywords(keywords); err != nil {
			return nil, err
		}
		rule.Keywords = keywords
	}
	if input.Action != nil {
		if !domain.ValidRuleAction(*input.Action) {
			return nil, ErrInvalidAction
		}
		rule.Action = *input.Action
	}
	if input.Priority != nil {
		rule.Priority = *input.Priority
	}
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}

	if err := s.store.SaveRule(rule); err != nil {
		return nil, fmt.Errorf("save rule: %w", err)
	}

	return rule, nil
}

// List 返回用户的全部规则，按求值顺序排列。
func (s *RuleService) List(userID string) ([]domain.ForwardingRule, error) {
	return s.store.ListRulesByUserID(userID)
}

// Get 获取用户的单条规则。
func (s *RuleService) Get(userID, ruleID string) (*domain.ForwardingRule, error) {
	return s.get(userID, ruleID)
}

// Delete 删除用户的转发规则。
func (s *RuleService) Delete(userID, ruleID string) error {
	if _, err := s.get(userID, ruleID); err != nil {
		return err
	}
	return s.store.DeleteRule(ruleID)
}

func (s *RuleService) get(userID, ruleID string) (*domain.ForwardingRule, error) {
	rule, err := s.store.GetRule(ruleID)
	if err != nil {
		return nil, err
	}
	if rule.UserID != userID {
		return nil, domain.ErrRuleNotFound
	}
	return rule, nil
}

// validateKeywords 要求关键词列表至少包含一个非空项。
func validateKeywords(keywords string) error {
	for _, keyword := range strings.Split(keywords, ",") {
		if strings.TrimSpace(keyword) != "" {
			return nil
		}
	}
	return ErrEmptyKeywords
}
