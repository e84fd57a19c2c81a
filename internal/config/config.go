package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Log        LogConfig
	HTTP       HTTPConfig
	Storage    StorageConfig
	SMS        SMSConfig
	SSLCommerz SSLCommerzConfig
	Tasks      TasksConfig
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// IsProduction 是否生产环境
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
	LogLevel        string // silent, error, warn, info
	SlowThreshold   time.Duration
}

// DSN 生成 postgres 连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=Asia/Dhaka",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// RedisConfig 缓存配置，未启用时退化为进程内缓存
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// JWTConfig JWT 配置
type JWTConfig struct {
	Secret          string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
	MediaRoute      string
}

// StorageConfig 对象存储配置
type StorageConfig struct {
	Provider  string // s3, local
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
	CDNDomain string
	BasePath  string
}

// SMSConfig 短信配置（主通道 + 备用通道）
type SMSConfig struct {
	Enabled  bool
	Primary  SMSGatewayConfig
	Fallback SMSGatewayConfig
}

// SMSGatewayConfig 单个短信网关
type SMSGatewayConfig struct {
	Provider   string // bulksmsbd, ssl_wireless, empty = not configured
	BaseURL    string
	APIKey     string
	APISecret  string
	SenderID   string
	Timeout    time.Duration
	RetryCount int
}

// Configured 网关是否已配置
func (g SMSGatewayConfig) Configured() bool {
	return g.Provider != "" && g.BaseURL != ""
}

// SSLCommerzConfig 支付网关配置
type SSLCommerzConfig struct {
	StoreID       string
	StorePassword string
	Sandbox       bool
	BaseURL       string // 覆盖 sandbox/live 域名，测试用
	SuccessURL    string
	FailURL       string
	CancelURL     string
	IPNURL        string
	Timeout       time.Duration
}

// TasksConfig 定时任务配置
type TasksConfig struct {
	Enabled            bool
	Concurrency        int
	EMIReminderSpec    string
	EMIReminderDays    int
	EMIOverdueSpec     string
	SMSRetrySpec       string
	SMSRetryMax        int
	OrderExpirySpec    string
	OrderExpiryWindow  time.Duration
	PartitionSpec      string
	PartitionAheadMons int
}

// Load 加载配置
// 优先级（高 -> 低）:
// 1. PHONEBAY_ 前缀环境变量 (如 PHONEBAY_DATABASE_PASSWORD)
// 2. config.yaml
// 3. 内置默认值
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/phonebay")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper 从已准备好的 viper 实例构建配置（测试可直接注入）
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("PHONEBAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
			LogLevel:        v.GetString("database.log_level"),
			SlowThreshold:   v.GetDuration("database.slow_threshold"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Prefix:   v.GetString("redis.prefix"),
			TTL:      v.GetDuration("redis.ttl"),
		},
		JWT: JWTConfig{
			Secret:          v.GetString("jwt.secret"),
			Issuer:          v.GetString("jwt.issuer"),
			AccessTokenTTL:  v.GetDuration("jwt.access_token_ttl"),
			RefreshTokenTTL: v.GetDuration("jwt.refresh_token_ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			RateLimitRPS:    v.GetFloat64("http.rate_limit_rps"),
			RateLimitBurst:  v.GetInt("http.rate_limit_burst"),
			MediaRoute:      v.GetString("http.media_route"),
		},
		Storage: StorageConfig{
			Provider:  v.GetString("storage.provider"),
			Bucket:    v.GetString("storage.bucket"),
			Region:    v.GetString("storage.region"),
			AccessKey: v.GetString("storage.access_key"),
			SecretKey: v.GetString("storage.secret_key"),
			Endpoint:  v.GetString("storage.endpoint"),
			CDNDomain: v.GetString("storage.cdn_domain"),
			BasePath:  v.GetString("storage.base_path"),
		},
		SMS: SMSConfig{
			Enabled:  v.GetBool("sms.enabled"),
			Primary:  gatewayFromViper(v, "sms.primary"),
			Fallback: gatewayFromViper(v, "sms.fallback"),
		},
		SSLCommerz: SSLCommerzConfig{
			StoreID:       v.GetString("sslcommerz.store_id"),
			StorePassword: v.GetString("sslcommerz.store_password"),
			Sandbox:       v.GetBool("sslcommerz.sandbox"),
			BaseURL:       v.GetString("sslcommerz.base_url"),
			SuccessURL:    v.GetString("sslcommerz.success_url"),
			FailURL:       v.GetString("sslcommerz.fail_url"),
			CancelURL:     v.GetString("sslcommerz.cancel_url"),
			IPNURL:        v.GetString("sslcommerz.ipn_url"),
			Timeout:       v.GetDuration("sslcommerz.timeout"),
		},
		Tasks: TasksConfig{
			Enabled:            v.GetBool("tasks.enabled"),
			Concurrency:        v.GetInt("tasks.concurrency"),
			EMIReminderSpec:    v.GetString("tasks.emi_reminder_spec"),
			EMIReminderDays:    v.GetInt("tasks.emi_reminder_days"),
			EMIOverdueSpec:     v.GetString("tasks.emi_overdue_spec"),
			SMSRetrySpec:       v.GetString("tasks.sms_retry_spec"),
			SMSRetryMax:        v.GetInt("tasks.sms_retry_max"),
			OrderExpirySpec:    v.GetString("tasks.order_expiry_spec"),
			OrderExpiryWindow:  v.GetDuration("tasks.order_expiry_window"),
			PartitionSpec:      v.GetString("tasks.partition_spec"),
			PartitionAheadMons: v.GetInt("tasks.partition_ahead_months"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func gatewayFromViper(v *viper.Viper, prefix string) SMSGatewayConfig {
	return SMSGatewayConfig{
		Provider:   v.GetString(prefix + ".provider"),
		BaseURL:    v.GetString(prefix + ".base_url"),
		APIKey:     v.GetString(prefix + ".api_key"),
		APISecret:  v.GetString(prefix + ".api_secret"),
		SenderID:   v.GetString(prefix + ".sender_id"),
		Timeout:    v.GetDuration(prefix + ".timeout"),
		RetryCount: v.GetInt(prefix + ".retry_count"),
	}
}

// applyDefaults 填充未设置的配置项
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "phonebay"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}

	// -------- Database --------
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "phonebay"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 100
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 10
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Database.SlowThreshold == 0 {
		cfg.Database.SlowThreshold = 200 * time.Millisecond
	}

	// -------- Redis --------
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "phonebay:"
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = 10 * time.Minute
	}

	// -------- JWT --------
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "phonebay"
	}
	if cfg.JWT.AccessTokenTTL == 0 {
		cfg.JWT.AccessTokenTTL = 2 * time.Hour
	}
	if cfg.JWT.RefreshTokenTTL == 0 {
		cfg.JWT.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if cfg.JWT.Secret == "" && !cfg.App.IsProduction() {
		cfg.JWT.Secret = "phonebay-dev-secret-change-in-production"
	}

	// -------- Log --------
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.App.IsProduction() {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	// -------- HTTP --------
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.RateLimitRPS == 0 {
		cfg.HTTP.RateLimitRPS = 20
	}
	if cfg.HTTP.RateLimitBurst == 0 {
		cfg.HTTP.RateLimitBurst = 40
	}
	if cfg.HTTP.MediaRoute == "" {
		cfg.HTTP.MediaRoute = "/media"
	}

	// -------- Storage --------
	if cfg.Storage.Provider == "" {
		cfg.Storage.Provider = "local"
	}
	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "uploads"
	}

	// -------- SMS --------
	for _, g := range []*SMSGatewayConfig{&cfg.SMS.Primary, &cfg.SMS.Fallback} {
		if g.Timeout == 0 {
			g.Timeout = 10 * time.Second
		}
		if g.RetryCount == 0 {
			g.RetryCount = 2
		}
	}

	// -------- SSLCOMMERZ --------
	if cfg.SSLCommerz.Timeout == 0 {
		cfg.SSLCommerz.Timeout = 30 * time.Second
	}

	// -------- Tasks --------
	if cfg.Tasks.Concurrency == 0 {
		cfg.Tasks.Concurrency = 10
	}
	if cfg.Tasks.EMIReminderSpec == "" {
		cfg.Tasks.EMIReminderSpec = "0 0 9 * * *"
	}
	if cfg.Tasks.EMIReminderDays == 0 {
		cfg.Tasks.EMIReminderDays = 3
	}
	if cfg.Tasks.EMIOverdueSpec == "" {
		cfg.Tasks.EMIOverdueSpec = "0 30 0 * * *"
	}
	if cfg.Tasks.SMSRetrySpec == "" {
		cfg.Tasks.SMSRetrySpec = "0 */15 * * * *"
	}
	if cfg.Tasks.SMSRetryMax == 0 {
		cfg.Tasks.SMSRetryMax = 3
	}
	if cfg.Tasks.OrderExpirySpec == "" {
		cfg.Tasks.OrderExpirySpec = "0 */10 * * * *"
	}
	if cfg.Tasks.OrderExpiryWindow == 0 {
		cfg.Tasks.OrderExpiryWindow = 30 * time.Minute
	}
	if cfg.Tasks.PartitionSpec == "" {
		cfg.Tasks.PartitionSpec = "0 0 3 * * *"
	}
	if cfg.Tasks.PartitionAheadMons == 0 {
		cfg.Tasks.PartitionAheadMons = 3
	}
}

// validate 校验配置
func (c *Config) validate() error {
	if c.App.IsProduction() && c.JWT.Secret == "" {
		return errors.New("jwt.secret is required in production")
	}
	switch c.Storage.Provider {
	case "s3", "local":
	default:
		return fmt.Errorf("unsupported storage provider: %s", c.Storage.Provider)
	}
	if c.Database.Port <= 0 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.SMS.Enabled && !c.SMS.Primary.Configured() {
		return errors.New("sms.primary gateway must be configured when sms is enabled")
	}
	return nil
}
