package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mailrouter/backend/internal/monitoring"
)

// HTTPMetrics HTTP 指标中间件
//
// 以路由模板（如 /v1/addresses/:id）作为 endpoint 标签，避免标签基数爆炸。
func HTTPMetrics(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		metrics.RecordHTTPRequest(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)
	}
}

// BusinessMetrics 业务指标中间件
func BusinessMetrics(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		if c.FullPath() == "/v1/auth/register" && c.Request.Method == "POST" {
			metrics.RecordUserRegistered()
		}
	}
}
