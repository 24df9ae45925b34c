package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"mailrouter/backend/internal/domain"
	"mailrouter/backend/internal/storage/redis"
)

// Checker 聚合存储与缓存的健康检查。
//
// liveness 只检查进程自身；readiness 检查依赖（数据库、Redis），
// 依赖未就绪时摘除流量但不重启进程。
type Checker struct {
	health healthcheck.Handler
	log    *zap.Logger
}

// NewChecker 创建健康检查器。redisClient 可为 nil。
func NewChecker(store domain.Store, redisClient *redis.Client, log *zap.Logger) *Checker {
	c := &Checker{
		health: healthcheck.NewHandler(),
		log:    log,
	}

	c.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(500))

	c.health.AddReadinessCheck("store", func() error {
		return store.Health()
	})

	if redisClient != nil {
		c.health.AddReadinessCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Ping(ctx)
		})
	}

	return c
}

// LiveEndpoint 存活检查端点
func (c *Checker) LiveEndpoint() http.HandlerFunc {
	return c.health.LiveEndpoint
}

// ReadyEndpoint 就绪检查端点
func (c *Checker) ReadyEndpoint() http.HandlerFunc {
	return c.health.ReadyEndpoint
}
