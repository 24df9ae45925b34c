package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailrouter/backend/internal/domain"
	"mailrouter/backend/internal/storage/memory"
)

func newRuleService() *RuleService {
	return NewRuleService(memory.NewStore(), zap.NewNop())
}

func TestRuleService_Create(t *testing.T) {
	service := newRuleService()

	rule, err := service.Create("user-1", CreateRuleInput{
		Keywords: " unsubscribe, newsletter ",
		Action:   domain.ActionDelete,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rule.ID)
	assert.Equal(t, "unsubscribe, newsletter", rule.Keywords)
	assert.Equal(t, domain.ActionDelete, rule.Action)
	assert.True(t, rule.IsActive)
	assert.Equal(t, 0, rule.Priority)
}

func TestRuleService_Create_PriorityFollowsCreationOrder(t *testing.T) {
	service := newRuleService()

	first, err := service.Create("user-1", CreateRuleInput{Keywords: "a", Action: domain.ActionForward})
	require.NoError(t, err)
	second, err := service.Create("user-1", CreateRuleInput{Keywords: "b", Action: domain.ActionDelete})
	require.NoError(t, err)
	third, err := service.Create("user-1", CreateRuleInput{Keywords: "c", Action: domain.ActionForward})
	require.NoError(t, err)

	assert.Equal(t, 0, first.Priority)
	assert.Equal(t, 1, second.Priority)
	assert.Equal(t, 2, third.Priority)

	// 其他用户的优先级独立计数
	other, err := service.Create("user-2", CreateRuleInput{Keywords: "x", Action: domain.ActionForward})
	require.NoError(t, err)
	assert.Equal(t, 0, other.Priority)
}

func TestRuleService_Create_ExplicitPriority(t *testing.T) {
	service := newRuleService()

	priority := 5
	rule, err := service.Create("user-1", CreateRuleInput{
		Keywords: "invoice",
		Action:   domain.ActionForward,
		Priority: &priority,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, rule.Priority)
}

func TestRuleService_Create_Validation(t *testing.T) {
	service := newRuleService()

	_, err := service.Create("user-1", CreateRuleInput{Keywords: "", Action: domain.ActionDelete})
	assert.ErrorIs(t, err, ErrEmptyKeywords)

	_, err = service.Create("user-1", CreateRuleInput{Keywords: " , ,", Action: domain.ActionDelete})
	assert.ErrorIs(t, err, ErrEmptyKeywords)

	_, err = service.Create("user-1", CreateRuleInput{Keywords: "spam", Action: "archive"})
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestRuleService_Update(t *testing.T) {
	service := newRuleService()

	rule, err := service.Create("user-1", CreateRuleInput{Keywords: "spam", Action: domain.ActionDelete})
	require.NoError(t, err)

	keywords := "spam, promo"
	inactive := false
	updated, err := service.Update("user-1", rule.ID, UpdateRuleInput{
		Keywords: &keywords,
		IsActive: &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "spam, promo", updated.Keywords)
	assert.False(t, updated.IsActive)
	// 未指定的字段保持不变
	assert.Equal(t, domain.ActionDelete, updated.Action)
}

func TestRuleService_Update_RejectedUpdateLeavesRuleUnchanged(t *testing.T) {
	service := newRuleService()

	rule, err := service.Create("user-1", CreateRuleInput{Keywords: "newsletter", Action: domain.ActionDelete})
	require.NoError(t, err)

	// 关键词先通过校验、动作随后被拒绝，整个更新必须原子地失败
	keywords := "totally-different"
	badAction := domain.RuleAction("explode")
	_, err = service.Update("user-1", rule.ID, UpdateRuleInput{
		Keywords: &keywords,
		Action:   &badAction,
	})
	assert.ErrorIs(t, err, ErrInvalidAction)

	stored, err := service.Get("user-1", rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "newsletter", stored.Keywords)
	assert.Equal(t, domain.ActionDelete, stored.Action)
}

func TestRuleService_Update_NotOwner(t *testing.T) {
	service := newRuleService()

	rule, err := service.Create("user-1", CreateRuleInput{Keywords: "spam", Action: domain.ActionDelete})
	require.NoError(t, err)

	keywords := "x"
	_, err = service.Update("user-2", rule.ID, UpdateRuleInput{Keywords: &keywords})
	assert.ErrorIs(t, err, domain.ErrRuleNotFound)
}

func TestRuleService_Delete(t *testing.T) {
	service := newRuleService()

	rule, err := service.Create("user-1", CreateRuleInput{Keywords: "spam", Action: domain.ActionDelete})
	require.NoError(t, err)

	require.NoError(t, service.Delete("user-1", rule.ID))

	_, err = service.Get("user-1", rule.ID)
	assert.ErrorIs(t, err, domain.ErrRuleNotFound)
}

func TestRuleService_Delete_NotOwner(t *testing.T) {
	service := newRuleService()

	rule, err := service.Create("user-1", CreateRuleInput{Keywords: "spam", Action: domain.ActionDelete})
	require.NoError(t, err)

	err = service.Delete("user-2", rule.ID)
	assert.ErrorIs(t, err, domain.ErrRuleNotFound)

	// 规则仍然存在
	_, err = service.Get("user-1", rule.ID)
	assert.NoError(t, err)
}
