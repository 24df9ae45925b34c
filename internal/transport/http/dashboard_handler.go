package httptransport

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailrouter/backend/internal/service"
)

// DashboardHandler 处理仪表盘相关的 HTTP 请求
type DashboardHandler struct {
	dashboard *service.DashboardService
	log       *zap.Logger
}

// NewDashboardHandler 创建仪表盘处理器
func NewDashboardHandler(dashboard *service.DashboardService, log *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboard: dashboard,
		log:       log,
	}
}

// Stats 获取用户仪表盘统计
// @Summary 获取仪表盘统计
// @Description 返回地址数量、转发/丢弃计数和最近 10 条邮件日志
// @Tags 仪表盘
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.DashboardStats
// @Failure 500 {object} Response "服务器内部错误"
// @Router /v1/dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context(), userID(c))
	if err != nil {
		h.log.Error("failed to get dashboard stats", zap.Error(err))
		InternalError(c, MsgStatsGetFailed)
		return
	}

	Success(c, stats)
}

// Logs 获取邮件处理日志
// @Summary 获取邮件日志
// @Description 返回当前用户的邮件审计日志，按时间倒序
// @Tags 仪表盘
// @Produce json
// @Security BearerAuth
// @Param limit query int false "返回条数，默认 50，最大 200"
// @Success 200 {object} object{items=[]domain.EmailLog,count=int}
// @Failure 500 {object} Response "服务器内部错误"
// @Router /v1/logs [get]
func (h *DashboardHandler) Logs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	logs, err := h.dashboard.Logs(userID(c), limit)
	if err != nil {
		h.log.Error("failed to get email logs", zap.Error(err))
		InternalError(c, MsgLogsGetFailed)
		return
	}

	Success(c, gin.H{
		"items": logs,
		"count": len(logs),
	})
}
