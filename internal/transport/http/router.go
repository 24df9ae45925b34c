package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailrouter/backend/internal/auth"
	jwtpkg "mailrouter/backend/internal/auth/jwt"
	"mailrouter/backend/internal/config"
	"mailrouter/backend/internal/health"
	"mailrouter/backend/internal/middleware"
	"mailrouter/backend/internal/monitoring"
	"mailrouter/backend/internal/service"
	"mailrouter/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config           *config.Config
	AuthService      *auth.Service
	AddressService   *service.AddressService
	RuleService      *service.RuleService
	DashboardService *service.DashboardService
	Pipeline         *service.TriagePipeline
	JWTManager       *jwtpkg.Manager
	WebSocketHub     *websocket.Hub      // 可选
	Metrics          *monitoring.Metrics // 可选
	HealthChecker    *health.Checker     // 可选
	Logger           *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	log := deps.Logger

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RecoveryHandler(log, deps.Metrics))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	if deps.Metrics != nil {
		router.Use(middleware.HTTPMetrics(deps.Metrics))
		router.Use(middleware.BusinessMetrics(deps.Metrics))
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 创建处理器
	authHandler := NewAuthHandler(deps.AuthService, deps.JWTManager, log)
	addressHandler := NewAddressHandler(deps.AddressService, deps.Metrics, log)
	ruleHandler := NewRuleHandler(deps.RuleService, log)
	dashboardHandler := NewDashboardHandler(deps.DashboardService, log)
	webhookHandler := NewWebhookHandler(deps.Pipeline, log)

	// 创建中间件
	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, log)
	rateLimit := middleware.NewRateLimiter(20, 40, deps.Metrics, log)

	// 健康检查
	if deps.HealthChecker != nil {
		router.GET("/health", gin.WrapF(deps.HealthChecker.LiveEndpoint()))
		router.GET("/ready", gin.WrapF(deps.HealthChecker.ReadyEndpoint()))
	} else {
		router.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok"})
		})
	}

	// Prometheus 指标
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// V1 API
	v1 := router.Group("/v1")
	v1.Use(rateLimit.Limit())
	{
		// ========== Auth Routes ==========
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh", authHandler.Refresh)
			authRoutes.GET("/me", jwtAuth.RequireAuth(), authHandler.Me)
			authRoutes.PUT("/password", jwtAuth.RequireAuth(), authHandler.ChangePassword)
		}

		// ========== Address Routes ==========
		addressRoutes := v1.Group("/addresses")
		addressRoutes.Use(jwtAuth.RequireAuth())
		{
			addressRoutes.POST("", addressHandler.Create)
			addressRoutes.GET("", addressHandler.List)
			addressRoutes.GET("/:id", addressHandler.Get)
			addressRoutes.DELETE("/:id", addressHandler.Deactivate) // 停用而非删除，日志保留
		}

		// ========== Rule Routes ==========
		ruleRoutes := v1.Group("/rules")
		ruleRoutes.Use(jwtAuth.RequireAuth())
		{
			ruleRoutes.POST("", ruleHandler.Create)
			ruleRoutes.GET("", ruleHandler.List)
			ruleRoutes.GET("/:id", ruleHandler.Get)
			ruleRoutes.PATCH("/:id", ruleHandler.Update)
			ruleRoutes.DELETE("/:id", ruleHandler.Delete)
		}

		// ========== Dashboard Routes ==========
		v1.GET("/dashboard/stats", jwtAuth.RequireAuth(), dashboardHandler.Stats)
		v1.GET("/logs", jwtAuth.RequireAuth(), dashboardHandler.Logs)

		// ========== Webhook Routes ==========
		// 收信服务推送入站邮件，无用户认证；地址解析即鉴权
		v1.POST("/webhooks/inbound", webhookHandler.Inbound)

		// ========== WebSocket Routes ==========
		if deps.WebSocketHub != nil {
			v1.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
		}
	}

	return router
}
