package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// AddressConfig 定义临时地址的核心业务配置
type AddressConfig struct {
	Domain     string        // 临时地址使用的域名，如 "example.com"
	DefaultTTL time.Duration // 新建地址的默认有效期，默认 30 天
	MaxPerUser int           // 单个用户最多可持有的活跃地址数量
}

// AIConfig 定义 AI 分类服务的配置
type AIConfig struct {
	APIKey      string        // OpenAI 兼容服务的 API Key
	BaseURL     string        // API 基础地址，默认 "https://api.openai.com/v1"
	Model       string        // 模型名称，默认 "gpt-3.5-turbo"
	MaxTokens   int           // 响应长度上限，默认 200
	Temperature float64       // 采样温度，默认 0.1（接近确定性）
	Timeout     time.Duration // 单次调用超时，默认 30 秒
}

// MailConfig 定义外发邮件服务（SendGrid）的配置
type MailConfig struct {
	APIKey  string        // SendGrid API Key
	BaseURL string        // API 基础地址，默认 "https://api.sendgrid.com"
	Domain  string        // 发件域名，发件人为 noreply@<Domain>
	Timeout time.Duration // 单次发送超时，默认 15 秒
}

// SMTPConfig 定义 SMTP 收信服务器的配置（可选，留空则不启动）
type SMTPConfig struct {
	BindAddr string // SMTP 服务监听地址，格式 "host:port"
	Domain   string // SMTP 服务器域名，用于 HELO/EHLO 响应
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 缓存服务配置（可选，Address 留空则不启用）
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// JWTConfig 定义 JWT 认证相关配置
type JWTConfig struct {
	Secret        string        // JWT 签名密钥，必须至少 32 字符
	Issuer        string        // JWT 签发者标识，默认 "mailrouter"
	AccessExpiry  time.Duration // 访问令牌有效期，默认 15 分钟
	RefreshExpiry time.Duration // 刷新令牌有效期，默认 7 天
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig
	Address  AddressConfig
	AI       AIConfig
	Mail     MailConfig
	SMTP     SMTPConfig
	CORS     CORSConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: MAILROUTER_
// 例如: MAILROUTER_SERVER_HOST, MAILROUTER_AI_API_KEY
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("mailrouter")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("address.domain", "example.com")
	viper.SetDefault("address.default_ttl", "720h") // 30 天
	viper.SetDefault("address.max_per_user", 20)
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("ai.model", "gpt-3.5-turbo")
	viper.SetDefault("ai.max_tokens", 200)
	viper.SetDefault("ai.temperature", 0.1)
	viper.SetDefault("ai.timeout", "30s")
	viper.SetDefault("mail.api_key", "")
	viper.SetDefault("mail.base_url", "https://api.sendgrid.com")
	viper.SetDefault("mail.domain", "")
	viper.SetDefault("mail.timeout", "15s")
	viper.SetDefault("smtp.bind_addr", "") // 留空则不启动 SMTP 收信
	viper.SetDefault("smtp.domain", "")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.address", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.issuer", "mailrouter")
	viper.SetDefault("jwt.access_expiry", "15m")
	viper.SetDefault("jwt.refresh_expiry", "168h")

	defaultTTL, err := time.ParseDuration(viper.GetString("address.default_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid address.default_ttl: %w", err)
	}

	addressDomain := strings.ToLower(strings.TrimSpace(viper.GetString("address.domain")))
	if addressDomain == "" {
		return nil, fmt.Errorf("address.domain must not be empty")
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	aiTimeout, err := time.ParseDuration(viper.GetString("ai.timeout"))
	if err != nil {
		aiTimeout = 30 * time.Second
	}

	mailTimeout, err := time.ParseDuration(viper.GetString("mail.timeout"))
	if err != nil {
		mailTimeout = 15 * time.Second
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	accessExpiry, err := time.ParseDuration(viper.GetString("jwt.access_expiry"))
	if err != nil {
		accessExpiry = 15 * time.Minute
	}

	refreshExpiry, err := time.ParseDuration(viper.GetString("jwt.refresh_expiry"))
	if err != nil {
		refreshExpiry = 7 * 24 * time.Hour
	}

	development := viper.GetBool("log.development")

	jwtSecret := viper.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set MAILROUTER_JWT_SECRET environment variable")
	}
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	mailDomain := strings.ToLower(strings.TrimSpace(viper.GetString("mail.domain")))
	if mailDomain == "" {
		mailDomain = addressDomain
	}

	// 生产模式下，AI 与外发邮件的 API Key 必须配置
	if !development {
		if viper.GetString("ai.api_key") == "" {
			return nil, fmt.Errorf("ai.api_key is required (set MAILROUTER_AI_API_KEY)")
		}
		if viper.GetString("mail.api_key") == "" {
			return nil, fmt.Errorf("mail.api_key is required (set MAILROUTER_MAIL_API_KEY)")
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Address: AddressConfig{
			Domain:     addressDomain,
			DefaultTTL: defaultTTL,
			MaxPerUser: viper.GetInt("address.max_per_user"),
		},
		AI: AIConfig{
			APIKey:      viper.GetString("ai.api_key"),
			BaseURL:     strings.TrimRight(viper.GetString("ai.base_url"), "/"),
			Model:       viper.GetString("ai.model"),
			MaxTokens:   viper.GetInt("ai.max_tokens"),
			Temperature: viper.GetFloat64("ai.temperature"),
			Timeout:     aiTimeout,
		},
		Mail: MailConfig{
			APIKey:  viper.GetString("mail.api_key"),
			BaseURL: strings.TrimRight(viper.GetString("mail.base_url"), "/"),
			Domain:  mailDomain,
			Timeout: mailTimeout,
		},
		SMTP: SMTPConfig{
			BindAddr: viper.GetString("smtp.bind_addr"),
			Domain:   viper.GetString("smtp.domain"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: development,
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:        jwtSecret,
			Issuer:        viper.GetString("jwt.issuer"),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
//
// 注意：已存在的环境变量不会被覆盖
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
