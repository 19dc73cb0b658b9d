package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Server      ServerConfig     `mapstructure:"server"`
	OpenRouter  OpenRouterConfig `mapstructure:"openrouter"`
	Generation  GenerationConfig `mapstructure:"generation"`
	Pool        PoolConfig       `mapstructure:"pool"`
	Jobs        JobsConfig       `mapstructure:"jobs"`
	Client      ClientConfig     `mapstructure:"client"`
	Storage     StorageConfig    `mapstructure:"storage"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Cache       CacheConfig      `mapstructure:"cache"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	DedupWindow time.Duration    `mapstructure:"dedup_window"`
	RulesFile   string           `mapstructure:"rules_file"`
	Log         LogConfig        `mapstructure:"log"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// LogConfig 日誌設定；Mode 為 concise 時只輸出關鍵訊息，Dir 為空時不寫檔
type LogConfig struct {
	Level string `mapstructure:"level"`
	Mode  string `mapstructure:"mode"`
	Dir   string `mapstructure:"dir"`
}

// OpenRouterConfig OpenRouter 配置
type OpenRouterConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// GenerationConfig 食譜生成重試設定
type GenerationConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
	RemoteTimeout time.Duration `mapstructure:"remote_timeout"`
	ExcludeLimit  int           `mapstructure:"exclude_limit"`
}

// PoolConfig 食譜池查詢設定
type PoolConfig struct {
	CandidateLimit int      `mapstructure:"candidate_limit"`
	Sources        []string `mapstructure:"sources"`
}

// JobsConfig 背景任務設定
type JobsConfig struct {
	TimeBudget time.Duration `mapstructure:"time_budget"`
	Workers    int           `mapstructure:"workers"`
	QueueSize  int           `mapstructure:"queue_size"`
}

// ClientConfig 命令列客戶端設定
type ClientConfig struct {
	BaseURL              string        `mapstructure:"base_url"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	AutoContinueAttempts int           `mapstructure:"auto_continue_attempts"`
	ContinueBackoff      time.Duration `mapstructure:"continue_backoff"`
}

// StorageConfig 儲存設定
type StorageConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// RedisConfig Redis 設定
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig 記憶體鍵值存放設定
type CacheConfig struct {
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// LoadConfig 載入設定；.env 不存在時只使用環境變數與預設值
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定環境變量
	v.BindEnv("openrouter.api_key", "OPENROUTER_API_KEY")
	v.BindEnv("openrouter.model", "OPENROUTER_MODEL")
	v.BindEnv("openrouter.max_tokens", "MODEL_MAX_TOKENS")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	v.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	v.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	v.BindEnv("dedup_window", "DEDUP_WINDOW")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.mode", "LOG_MODE")
	v.BindEnv("log.dir", "LOG_DIR")

	// APP_CONFIG_FILE 指定 YAML 設定檔，否則讀取工作目錄的 config.yaml（可省略）
	if file := os.Getenv("APP_CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// logger 尚未初始化，改寫到 stderr
	fmt.Fprintln(os.Stderr, "Loading configuration", "openrouter_api_key:", maskAPIKey(v.GetString("openrouter.api_key")), "openrouter_model:", v.GetString("openrouter.model"), "storage:", v.GetString("storage.driver"))

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// Default 只套用預設值，測試與命令列工具使用
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	_ = v.Unmarshal(&config)
	return &config
}

// maskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "meal-plan-generator")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	// OpenRouter 設定
	v.SetDefault("openrouter.enabled", false)
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "deepseek/deepseek-chat")
	v.SetDefault("openrouter.max_tokens", 2500)
	v.SetDefault("openrouter.temperature", 0.7)
	v.SetDefault("openrouter.timeout", "60s")

	// 生成設定
	v.SetDefault("generation.max_attempts", 3)
	v.SetDefault("generation.retry_backoff", "0s")
	v.SetDefault("generation.remote_timeout", "60s")
	v.SetDefault("generation.exclude_limit", 15)

	// 食譜池
	v.SetDefault("pool.candidate_limit", 200)
	v.SetDefault("pool.sources", []string{"seed", "manual", "week_ai", "chat_ai"})

	// 背景任務
	v.SetDefault("jobs.time_budget", "110s")
	v.SetDefault("jobs.workers", 4)
	v.SetDefault("jobs.queue_size", 100)

	// 客戶端
	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.request_timeout", "150s")
	v.SetDefault("client.auto_continue_attempts", 5)
	v.SetDefault("client.continue_backoff", "2s")

	// 儲存
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.sqlite_path", "data/meal-plan.db")

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// 記憶體鍵值存放
	v.SetDefault("cache.max_size", 10000)
	v.SetDefault("cache.ttl", "48h")
	v.SetDefault("cache.cleanup_interval", "10m")

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "logs")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}
	if config.OpenRouter.Enabled && config.OpenRouter.APIKey == "" {
		return fmt.Errorf("openrouter api key is required when openrouter is enabled")
	}
	if config.Generation.MaxAttempts <= 0 {
		return fmt.Errorf("invalid generation max attempts")
	}
	if config.Jobs.Workers <= 0 {
		return fmt.Errorf("invalid job workers")
	}
	if config.Jobs.QueueSize <= 0 {
		return fmt.Errorf("invalid job queue size")
	}
	if config.Jobs.TimeBudget <= 0 {
		return fmt.Errorf("invalid job time budget")
	}

	switch config.Storage.Driver {
	case "memory":
	case "sqlite":
		if config.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", config.Storage.Driver)
	}

	if config.Cache.MaxSize <= 0 {
		return fmt.Errorf("invalid cache max size")
	}
	if config.Cache.CleanupInterval <= 0 {
		return fmt.Errorf("invalid cache cleanup interval")
	}
	return nil
}
