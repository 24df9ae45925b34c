package httptransport

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailrouter/backend/internal/domain"
	"mailrouter/backend/internal/service"
)

// RuleHandler 处理转发规则相关的 HTTP 请求
type RuleHandler struct {
	rules *service.RuleService
	log   *zap.Logger
}

// NewRuleHandler 创建转发规则处理器
func NewRuleHandler(rules *service.RuleService, log *zap.Logger) *RuleHandler {
	return &RuleHandler{
		rules: rules,
		log:   log,
	}
}

type createRuleRequest struct {
	Keywords string `json:"keywords" binding:"required"`
	Action   string `json:"action" binding:"required"`
	Priority *int   `json:"priority"`
}

type updateRuleRequest struct {
	Keywords *string `json:"keywords"`
	Action   *string `json:"action"`
	Priority *int    `json:"priority"`
	IsActive *bool   `json:"isActive"`
}

type ruleResponse struct {
	ID        string    `json:"id"`
	Keywords  string    `json:"keywords"`
	Action    string    `json:"action"`
	Priority  int       `json:"priority"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ruleListResponse struct {
	Items []ruleResponse `json:"items"`
	Count int            `json:"count"`
}

// Create 创建转发规则
// @Summary 创建转发规则
// @Description 创建关键词规则，入站邮件命中规则时跳过 AI 直接执行动作
// @Tags 转发规则
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createRuleRequest true "规则内容"
// @Success 201 {object} ruleResponse
// @Failure 400 {object} Response "请求参数错误"
// @Failure 500 {object} Response "服务器内部错误"
// @Router /v1/rules [post]
func (h *RuleHandler) Create(c *gin.Context) {
	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	rule, err := h.rules.Create(userID(c), service.CreateRuleInput{
		Keywords: req.Keywords,
		Action:   domain.RuleAction(req.Action),
		Priority: req.Priority,
	})
	if err != nil {
		switch err {
		case service.ErrInvalidAction, service.ErrEmptyKeywords:
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to create rule", zap.Error(err))
			InternalError(c, MsgRuleCreateFailed)
		}
		return
	}

	Created(c, toRuleResponse(rule))
}

// List 获取当前用户的规则列表
// @Summary 获取规则列表
// @Description 返回当前用户的全部转发规则，按优先级升序
// @Tags 转发规则
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ruleListResponse
// @Failure 500 {object} Response "服务器内部错误"
// @Router /v1/rules [get]
func (h *RuleHandler) List(c *gin.Context) {
	rules, err := h.rules.List(userID(c))
	if err != nil {
		h.log.Error("failed to list rules", zap.Error(err))
		InternalError(c, MsgRuleListFailed)
		return
	}

	items := make([]ruleResponse, 0, len(rules))
	for i := range rules {
		items = append(items, toRuleResponse(&rules[i]))
	}

	Success(c, ruleListResponse{
		Items: items,
		Count: len(items),
	})
}

// Get 获取规则详情
// @Summary 获取规则详情
// @Tags 转发规则
// @Produce json
// @Security BearerAuth
// @Param id path string true "规则ID"
// @Success 200 {object} ruleResponse
// @Failure 404 {object} Response "规则不存在"
// @Router /v1/rules/{id} [get]
func (h *RuleHandler) Get(c *gin.Context) {
	rule, err := h.rules.Get(userID(c), c.Param("id"))
	if err != nil {
		if err == domain.ErrRuleNotFound {
			NotFound(c, MsgRuleNotFound)
			return
		}
		h.log.Error("failed to get rule", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, toRuleResponse(rule))
}

// Update 更新转发规则
// @Summary 更新转发规则
// @Description 部分更新规则字段，未提供的字段保持不变
// @Tags 转发规则
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "规则ID"
// @Param request body updateRuleRequest true "要更新的字段"
// @Success 200 {object} ruleResponse
// @Failure 400 {object} Response "请求参数错误"
// @Failure 404 {object} Response "规则不存在"
// @Failure 500 {object} Response "服务器内部错误"
// @Router /v1/rules/{id} [patch]
func (h *RuleHandler) Update(c *gin.Context) {
	var req updateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	input := service.UpdateRuleInput{
		Keywords: req.Keywords,
		Priority: req.Priority,
		IsActive: req.IsActive,
	}
	if req.Action != nil {
		action := domain.RuleAction(*req.Action)
		input.Action = &action
	}

	rule, err := h.rules.Update(userID(c), c.Param("id"), input)
	if err != nil {
		switch err {
		case service.ErrInvalidAction, service.ErrEmptyKeywords:
			BadRequest(c, GetErrorMessage(err))
		case domain.ErrRuleNotFound:
			NotFound(c, MsgRuleNotFound)
		default:
			h.log.Error("failed to update rule", zap.Error(err))
			InternalError(c, MsgRuleUpdateFailed)
		}
		return
	}

	Success(c, toRuleResponse(rule))
}

// Delete 删除转发规则
// @Summary 删除转发规则
// @Tags 转发规则
// @Security BearerAuth
// @Param id path string true "规则ID"
// @Success 204
// @Failure 404 {object} Response "规则不存在"
// @Failure 500 {object} Response "服务器内部错误"
// @Router /v1/rules/{id} [delete]
func (h *RuleHandler) Delete(c *gin.Context) {
	err := h.rules.Delete(userID(c), c.Param("id"))
	if err != nil {
		if err == domain.ErrRuleNotFound {
			NotFound(c, MsgRuleNotFound)
			return
		}
		h.log.Error("failed to delete rule", zap.Error(err))
		InternalError(c, MsgRuleDeleteFailed)
		return
	}

	NoContent(c)
}

func toRuleResponse(rule *domain.ForwardingRule) ruleResponse {
	return ruleResponse{
		ID:        rule.ID,
		Keywords:  rule.Keywords,
		Action:    string(rule.Action),
		Priority:  rule.Priority,
		IsActive:  rule.IsActive,
		CreatedAt: rule.CreatedAt,
		UpdatedAt: rule.UpdatedAt,
	}
}
