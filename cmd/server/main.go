package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailrouter/backend/internal/ai"
	"mailrouter/backend/internal/auth"
	jwtpkg "mailrouter/backend/internal/auth/jwt"
	"mailrouter/backend/internal/config"
	"mailrouter/backend/internal/domain"
	"mailrouter/backend/internal/health"
	"mailrouter/backend/internal/logger"
	"mailrouter/backend/internal/mailer"
	"mailrouter/backend/internal/monitoring"
	"mailrouter/backend/internal/service"
	"mailrouter/backend/internal/smtp"
	"mailrouter/backend/internal/storage/memory"
	redisstore "mailrouter/backend/internal/storage/redis"
	sqlstore "mailrouter/backend/internal/storage/sql"
	httptransport "mailrouter/backend/internal/transport/http"
	"mailrouter/backend/internal/websocket"
)

// main 启动 HTTP API 服务，以及可选的 SMTP 收信服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("starting mailrouter server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	var store domain.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}
	defer store.Close()

	// 初始化 Redis 缓存（可选）
	var redisClient *redisstore.Client
	var cache *redisstore.Cache
	if cfg.Redis.Address != "" {
		redisClient, err = redisstore.New(&cfg.Redis)
		if err != nil {
			log.Warn("failed to connect to redis, continuing without cache", zap.Error(err))
		} else {
			cache = redisstore.NewCache(redisClient)
			log.Info("redis cache enabled", zap.String("address", cfg.Redis.Address))
			defer redisClient.Close()
		}
	}

	// 初始化监控与健康检查
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewChecker(store, redisClient, log)

	// 初始化认证
	authService := auth.NewService(store)
	jwtManager := jwtpkg.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)

	// WebSocket Hub：向在线用户实时推送邮件日志
	wsHub := websocket.NewHub(jwtManager, cfg.CORS.AllowedOrigins, log)

	// 初始化业务服务
	addressService := service.NewAddressService(store, &cfg.Address, log)
	ruleService := service.NewRuleService(store, log)
	dashboardService := service.NewDashboardService(store, cache, log)

	// 分流管道：规则 → AI 分类 → 转发/丢弃 → 审计日志
	classifier := ai.NewClassifier(&cfg.AI, log)
	forwarder := mailer.NewForwarder(&cfg.Mail, log)

	// 注意不能直接传 cache：带类型的 nil 指针装进接口后不再等于 nil
	var triageCache service.TriageCache
	if cache != nil {
		triageCache = cache
	}
	pipeline := service.NewTriagePipeline(store, classifier, forwarder, triageCache, metrics, wsHub, log)

	// 开发模式下预置一个测试用户
	if cfg.Log.Development {
		createDevUser(store, log)
	}

	// HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:           cfg,
		AuthService:      authService,
		AddressService:   addressService,
		RuleService:      ruleService,
		DashboardService: dashboardService,
		Pipeline:         pipeline,
		JWTManager:       jwtManager,
		WebSocketHub:     wsHub,
		Metrics:          metrics,
		HealthChecker:    healthChecker,
		Logger:           log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// SMTP 收信服务器 goroutine（可选）
	var smtpServer *gosmtp.Server
	if cfg.SMTP.BindAddr != "" {
		smtpBackend := smtp.NewBackend(pipeline, store, cfg.Address.Domain, log)
		smtpServer = gosmtp.NewServer(smtpBackend)
		smtpServer.Addr = cfg.SMTP.BindAddr
		smtpServer.Domain = cfg.SMTP.Domain
		smtpServer.ReadTimeout = 10 * time.Second
		smtpServer.WriteTimeout = 10 * time.Second
		smtpServer.MaxMessageBytes = 10 * 1024 * 1024 // 10MB
		smtpServer.MaxRecipients = 50

		group.Go(func() error {
			log.Info("starting SMTP server",
				zap.String("address", cfg.SMTP.BindAddr),
				zap.String("domain", cfg.SMTP.Domain),
			)
			if err := smtpServer.ListenAndServe(); err != nil {
				log.Error("SMTP server error", zap.Error(err))
				return err
			}
			return nil
		})
	}

	// WebSocket Hub goroutine
	group.Go(func() error {
		wsHub.Run(groupCtx)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		if smtpServer != nil {
			if err := smtpServer.Close(); err != nil {
				log.Warn("SMTP server close warning", zap.Error(err))
			}
		}

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// createDevUser 创建开发环境测试用户（仅开发模式）
func createDevUser(store domain.Store, log *zap.Logger) {
	email := "dev@mailrouter.local"
	password := "devpassword"

	if _, err := store.GetUserByEmail(email); err == nil {
		log.Info("dev user already exists, skipping", zap.String("email", email))
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Error("failed to hash dev user password", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           "dev-user-001",
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := store.CreateUser(user); err != nil {
		log.Error("failed to create dev user", zap.Error(err))
		return
	}

	log.Warn("dev user created (development mode only)",
		zap.String("email", email),
		zap.String("password", password),
	)
}
