package httptransport

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailrouter/backend/internal/domain"
	"mailrouter/backend/internal/monitoring"
	"mailrouter/backend/internal/service"
)

// AddressHandler 处理临时地址相关的 HTTP 请求
type AddressHandler struct {
	addresses *service.AddressService
	metrics   *monitoring.Metrics // 可选
	log       *zap.Logger
}

// NewAddressHandler 创建临时地址处理器
func NewAddressHandler(addresses *service.AddressService, metrics *monitoring.Metrics, log *zap.Logger) *AddressHandler {
	return &AddressHandler{
		addresses: addresses,
		metrics:   metrics,
		log:       log,
	}
}

type createAddressRequest struct {
	Purpose   string `json:"purpose"`
	ExpiresIn string `json:"expiresIn"` // 可选，Go duration 格式，如 "168h"
}

type addressResponse struct {
	ID        string     `json:"id"`
	Address   string     `json:"address"`
	Purpose   string     `json:"purpose,omitempty"`
	IsActive  bool       `json:"isActive"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type addressListResponse struct {
	Items []addressResponse `json:"items"`
	Count int               `json:"count"`
}

// Create 创建临时地址
// @Summary 创建临时地址
// @Description 为当前用户生成一个新的一次性转发地址，默认 30 天后过期
// @Tags 临时地址
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createAddressRequest true "地址参数"
// @Success 201 {object} addressResponse
// @Failure 400 {object} Response "请求参数错误"
// @Failure 409 {object} Response "地址数量已达上限"
// @Failure 500 {object} Response "服务器内部错误"
// @Router /v1/addresses [post]
func (h *AddressHandler) Create(c *gin.Context) {
	var req createAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	var expiresAt *time.Time
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			BadRequest(c, MsgInvalidExpiry)
			return
		}
		t := time.Now().UTC().Add(d)
		expiresAt = &t
	}

	addr, err := h.addresses.Create(userID(c), service.CreateAddressInput{
		Purpose:   req.Purpose,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		switch err {
		case service.ErrAddressLimitReached:
			Conflict(c, GetErrorMessage(err))
		case service.ErrGenerateAddress:
			InternalError(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to create address", zap.Error(err))
			InternalError(c, MsgAddressCreateFailed)
		}
		return
	}

	if h.metrics != nil {
		h.metrics.RecordAddressCreated()
	}

	Created(c, toAddressResponse(addr))
}

// List 获取当前用户的地址列表
// @Summary 获取地址列表
// @Description 返回当前用户的全部临时地址，包含已停用的
// @Tags 临时地址
// @Produce json
// @Security BearerAuth
// @Success 200 {object} addressListResponse
// @Failure 500 {object} Response "服务器内部错误"
// @Router /v1/addresses [get]
func (h *AddressHandler) List(c *gin.Context) {
	addrs, err := h.addresses.List(userID(c))
	if err != nil {
		h.log.Error("failed to list addresses", zap.Error(err))
		InternalError(c, MsgAddressListFailed)
		return
	}

	items := make([]addressResponse, 0, len(addrs))
	for i := range addrs {
		items = append(items, toAddressResponse(&addrs[i]))
	}

	Success(c, addressListResponse{
		Items: items,
		Count: len(items),
	})
}

// Get 获取地址详情
// @Summary 获取地址详情
// @Description 根据地址 ID 查看详细信息，只能查看自己的地址
// @Tags 临时地址
// @Produce json
// @Security BearerAuth
// @Param id path string true "地址ID"
// @Success 200 {object} addressResponse
// @Failure 404 {object} Response "地址不存在"
// @Router /v1/addresses/{id} [get]
func (h *AddressHandler) Get(c *gin.Context) {
	addr, err := h.addresses.Get(userID(c), c.Param("id"))
	if err != nil {
		if err == domain.ErrAddressNotFound {
			NotFound(c, MsgAddressNotFound)
			return
		}
		h.log.Error("failed to get address", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, toAddressResponse(addr))
}

// Deactivate 停用临时地址
// @Summary 停用临时地址
// @Description 停用后该地址不再接收邮件，历史日志保留。停用不可恢复
// @Tags 临时地址
// @Security BearerAuth
// @Param id path string true "地址ID"
// @Success 204
// @Failure 404 {object} Response "地址不存在"
// @Failure 500 {object} Response "服务器内部错误"
// @Router /v1/addresses/{id} [delete]
func (h *AddressHandler) Deactivate(c *gin.Context) {
	err := h.addresses.Deactivate(userID(c), c.Param("id"))
	if err != nil {
		if err == domain.ErrAddressNotFound {
			NotFound(c, MsgAddressNotFound)
			return
		}
		h.log.Error("failed to deactivate address", zap.Error(err))
		InternalError(c, MsgAddressDeactFailed)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordAddressDeactivated()
	}

	NoContent(c)
}

func toAddressResponse(addr *domain.TempAddress) addressResponse {
	return addressResponse{
		ID:        addr.ID,
		Address:   addr.Address,
		Purpose:   addr.Purpose,
		IsActive:  addr.IsActive,
		CreatedAt: addr.CreatedAt,
		ExpiresAt: addr.ExpiresAt,
	}
}

// userID 读取认证中间件注入的用户 ID。
func userID(c *gin.Context) string {
	id, _ := c.Get("userID")
	s, _ := id.(string)
	return s
}
