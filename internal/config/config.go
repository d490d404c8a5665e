package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// 调度周期允许的范围
const (
	MinTickInterval = 60 * time.Second
	MaxTickInterval = 3600 * time.Second
)

// Config 监控服务配置
type Config struct {
	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		Database string
		SSLMode  string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// 健身数据平台配置
	Provider struct {
		BaseURL      string
		FetchTimeout time.Duration // 单次拉取超时，默认 15秒
	}

	// 通知通道配置
	Notify struct {
		GatewayURL  string
		SendTimeout time.Duration // 单次发送超时，默认 15秒
		Retry       RetryPolicy
	}

	// 调度配置
	Monitor struct {
		TickInterval    time.Duration // 轮询间隔，钳制到 [60s, 3600s]
		PollingWindow   time.Duration // 读数拉取窗口，默认 24小时
		HysteresisTicks int           // 连续正常多少个周期后关闭事件，默认 1
		WorkerCount     int           // 并发评估的 worker 数量，默认 8
		LoopBackoff     time.Duration // 整轮失败后的退避时间，默认 30秒
		ShutdownGrace   time.Duration // 优雅关闭宽限期，默认 30秒
	}

	// Redis 状态缓存配置（供外部面板读取）
	Cache struct {
		SubjectKeyPrefix string // 对象状态键前缀，如 "goatfit:subject:"
		SubjectSuffix    string // 对象状态键后缀，如 ":status"
		SchedulerKey     string // 调度器状态键，如 "goatfit:monitor:status"
		StatusTTL        int    // 状态 TTL（秒），0 表示不过期
	}

	Log struct {
		Level  string
		Format string
	}
}

// RetryPolicy 投递重试策略
type RetryPolicy struct {
	MaxAttempts int           // 最大尝试次数（含首次），默认 3
	BaseDelay   time.Duration // 首次重试延迟，默认 2秒
	MaxDelay    time.Duration // 延迟上限，默认 30秒
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "goatfit")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Provider.BaseURL = getEnv("PROVIDER_BASE_URL", "https://fitness.googleapis.com/fitness/v1")
	cfg.Provider.FetchTimeout = getEnvSeconds("PROVIDER_FETCH_TIMEOUT", 15)

	cfg.Notify.GatewayURL = getEnv("NOTIFY_GATEWAY_URL", "http://localhost:8025")
	cfg.Notify.SendTimeout = getEnvSeconds("NOTIFY_SEND_TIMEOUT", 15)
	cfg.Notify.Retry.MaxAttempts = getEnvInt("NOTIFY_RETRY_MAX_ATTEMPTS", 3)
	cfg.Notify.Retry.BaseDelay = getEnvSeconds("NOTIFY_RETRY_BASE_DELAY", 2)
	cfg.Notify.Retry.MaxDelay = getEnvSeconds("NOTIFY_RETRY_MAX_DELAY", 30)

	cfg.Monitor.TickInterval = getEnvSeconds("MONITOR_TICK_INTERVAL", 60)
	cfg.Monitor.PollingWindow = time.Duration(getEnvInt("MONITOR_POLLING_WINDOW_HOURS", 24)) * time.Hour
	cfg.Monitor.HysteresisTicks = getEnvInt("MONITOR_HYSTERESIS_TICKS", 1)
	cfg.Monitor.WorkerCount = getEnvInt("MONITOR_WORKER_COUNT", 8)
	cfg.Monitor.LoopBackoff = getEnvSeconds("MONITOR_LOOP_BACKOFF", 30)
	cfg.Monitor.ShutdownGrace = getEnvSeconds("MONITOR_SHUTDOWN_GRACE", 30)

	cfg.Cache.SubjectKeyPrefix = getEnv("CACHE_SUBJECT_PREFIX", "goatfit:subject:")
	cfg.Cache.SubjectSuffix = ":status"
	cfg.Cache.SchedulerKey = getEnv("CACHE_SCHEDULER_KEY", "goatfit:monitor:status")
	cfg.Cache.StatusTTL = getEnvInt("CACHE_STATUS_TTL", 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 校验并修正配置（启动时调用）
func (c *Config) Validate() error {
	// 调度周期钳制到允许范围，不报错
	if c.Monitor.TickInterval < MinTickInterval {
		c.Monitor.TickInterval = MinTickInterval
	}
	if c.Monitor.TickInterval > MaxTickInterval {
		c.Monitor.TickInterval = MaxTickInterval
	}

	if c.Monitor.HysteresisTicks < 1 {
		return fmt.Errorf("hysteresis_ticks must be >= 1, got %d", c.Monitor.HysteresisTicks)
	}
	if c.Monitor.WorkerCount < 1 {
		return fmt.Errorf("worker_count must be >= 1, got %d", c.Monitor.WorkerCount)
	}
	if c.Monitor.PollingWindow <= 0 {
		return fmt.Errorf("polling_window must be positive, got %s", c.Monitor.PollingWindow)
	}
	if c.Notify.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be >= 1, got %d", c.Notify.Retry.MaxAttempts)
	}
	if c.Notify.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry base_delay must be positive, got %s", c.Notify.Retry.BaseDelay)
	}
	if c.Notify.Retry.MaxDelay < c.Notify.Retry.BaseDelay {
		return fmt.Errorf("retry max_delay (%s) must be >= base_delay (%s)", c.Notify.Retry.MaxDelay, c.Notify.Retry.BaseDelay)
	}
	if c.Provider.FetchTimeout <= 0 {
		return fmt.Errorf("provider fetch_timeout must be positive, got %s", c.Provider.FetchTimeout)
	}
	if c.Notify.SendTimeout <= 0 {
		return fmt.Errorf("notify send_timeout must be positive, got %s", c.Notify.SendTimeout)
	}

	return nil
}

// GetDSN 构建数据库连接字符串
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}
