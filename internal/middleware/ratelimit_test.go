package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRateLimiter_Limit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(1, 2, nil, zap.NewNop())
	defer rl.Stop()

	router := gin.New()
	router.Use(rl.Limit())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	do := func(ip string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = ip + ":12345"
		router.ServeHTTP(w, req)
		return w.Code
	}

	t.Run("突发容量内放行", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do("10.0.0.1"))
		assert.Equal(t, http.StatusOK, do("10.0.0.1"))
	})

	t.Run("超出容量返回429", func(t *testing.T) {
		assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1"))
	})

	t.Run("不同IP独立计数", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do("10.0.0.2"))
	})
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := NewRateLimiter(10, 10, nil, zap.NewNop())
	defer rl.Stop()

	rl.allow("10.0.0.1")
	rl.allow("10.0.0.2")

	rl.mu.Lock()
	rl.limiters["10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	rl.evictIdle(10 * time.Minute)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.limiters, "10.0.0.1")
	assert.Contains(t, rl.limiters, "10.0.0.2")
}

func TestRateLimiter_Stop(t *testing.T) {
	rl := NewRateLimiter(10, 10, nil, zap.NewNop())

	rl.Stop()
	// 重复停止是安全的
	rl.Stop()

	// 停止后限流本身仍然工作
	assert.True(t, rl.allow("10.0.0.1"))
}
