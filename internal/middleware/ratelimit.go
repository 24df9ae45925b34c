package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mailrouter/backend/internal/monitoring"
)

// ipLimiter 单个 IP 的限流器及其最后活跃时间
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 基于令牌桶的 IP 限流中间件。
//
// 每个 IP 持有独立的令牌桶；长时间不活跃的桶会被后台清理。
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rate     rate.Limit
	burst    int
	metrics  *monitoring.Metrics // 可选
	log      *zap.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter 创建 IP 限流器。rps 为每秒允许的请求数，burst 为突发容量。
func NewRateLimiter(rps float64, burst int, metrics *monitoring.Metrics, log *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*ipLimiter),
		rate:     rate.Limit(rps),
		burst:    burst,
		metrics:  metrics,
		log:      log,
		stop:     make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// Stop 终止后台清理 goroutine。可以重复调用，已停止的限流器仍可继续限流。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stop)
	})
}

// Limit 返回限流中间件
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		if !rl.allow(ip) {
			if rl.metrics != nil {
				rl.metrics.RecordRateLimitBlock()
			}
			rl.log.Warn("rate limit exceeded", zap.String("ip", ip))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code": http.StatusTooManyRequests,
				"msg":  "请求过于频繁，请稍后重试",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &ipLimiter{
			limiter: rate.NewLimiter(rl.rate, rl.burst),
		}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()

	return entry.limiter.Allow()
}

// cleanup 周期性清理不活跃的限流器，防止 map 无限增长
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle(10 * time.Minute)
		case <-rl.stop:
			return
		}
	}
}

// evictIdle 删除超过 maxIdle 未活跃的限流器条目。
func (rl *RateLimiter) evictIdle(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, entry := range rl.limiters {
		if time.Since(entry.lastSeen) > maxIdle {
			delete(rl.limiters, ip)
		}
	}
}
