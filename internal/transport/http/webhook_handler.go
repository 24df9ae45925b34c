package httptransport

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailrouter/backend/internal/domain"
	"mailrouter/backend/internal/service"
)

// WebhookHandler 处理收信服务推送的入站邮件 Webhook
type WebhookHandler struct {
	pipeline *service.TriagePipeline
	log      *zap.Logger
}

// NewWebhookHandler 创建入站 Webhook 处理器
func NewWebhookHandler(pipeline *service.TriagePipeline, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		pipeline: pipeline,
		log:      log,
	}
}

// Inbound 处理入站邮件事件
// @Summary 入站邮件 Webhook
// @Description 接收收信服务批量推送的入站事件，对每封邮件执行分流管道。
// @Description 未知地址和非 inbound 事件被静默跳过，单个事件的失败不影响批次。
// @Tags Webhook
// @Accept json
// @Produce json
// @Param request body []domain.InboundEvent true "入站事件数组"
// @Success 200 {object} object{processed=int} "处理结果"
// @Failure 400 {object} Response "载荷格式错误"
// @Router /v1/webhooks/inbound [post]
func (h *WebhookHandler) Inbound(c *gin.Context) {
	var events []domain.InboundEvent
	if err := c.ShouldBindJSON(&events); err != nil {
		h.log.Warn("malformed webhook payload", zap.Error(err))
		BadRequest(c, MsgInvalidPayload)
		return
	}

	processed := h.pipeline.ProcessBatch(c.Request.Context(), events)

	h.log.Info("webhook batch processed",
		zap.Int("events", len(events)),
		zap.Int("processed", processed),
	)

	SuccessWithMsg(c, fmt.Sprintf("已处理 %d 封邮件", processed), gin.H{
		"processed": processed,
	})
}
