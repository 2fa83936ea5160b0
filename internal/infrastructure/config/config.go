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
	App         AppConfig       `mapstructure:"app"`
	Server      ServerConfig    `mapstructure:"server"`
	Auth        AuthConfig      `mapstructure:"auth"`
	Storage     StorageConfig   `mapstructure:"storage"`
	History     HistoryConfig   `mapstructure:"history"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	CORS        CORSConfig      `mapstructure:"cors"`
	DedupWindow time.Duration   `mapstructure:"dedup_window"`
	LogLevel    string          `mapstructure:"log_level"`
	LogDir      string          `mapstructure:"log_dir"`
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
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

// AuthConfig 身分提供者設定
type AuthConfig struct {
	// Provider 為 "jwt"（本地驗證簽章）或 "remote"（呼叫 session 端點）
	Provider       string        `mapstructure:"provider"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTIssuer      string        `mapstructure:"jwt_issuer"`
	SessionURL     string        `mapstructure:"session_url"`
	SessionTimeout time.Duration `mapstructure:"session_timeout"`
	// TokenTTL 密碼登入簽發的 token 有效期限
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// StorageConfig 持久化設定
type StorageConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
}

// HistoryConfig 分析紀錄設定
type HistoryConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Backend         string        `mapstructure:"backend"` // memory | redis
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	MaxEntries      int           `mapstructure:"max_entries"`
	MaxUsers        int           `mapstructure:"max_users"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// CORSConfig 跨域設定
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// 加載 .env 文件（不存在時忽略）
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	// 設定預設值
	setDefaults(v)

	// 設定環境變數前綴
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定環境變量
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("auth.provider", "AUTH_PROVIDER")
	_ = v.BindEnv("auth.jwt_secret", "AUTH_SECRET")
	_ = v.BindEnv("auth.session_url", "AUTH_SESSION_URL")
	_ = v.BindEnv("storage.sqlite_path", "SQLITE_PATH")
	_ = v.BindEnv("history.backend", "HISTORY_BACKEND")
	_ = v.BindEnv("history.redis_addr", "REDIS_ADDR")
	_ = v.BindEnv("history.redis_password", "REDIS_PASSWORD")
	_ = v.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	_ = v.BindEnv("rate_limit.rps", "RATE_LIMIT_RPS")
	_ = v.BindEnv("rate_limit.burst", "RATE_LIMIT_BURST")
	_ = v.BindEnv("dedup_window", "DEDUP_WINDOW")
	_ = v.BindEnv("log_level", "LOG_LEVEL")

	// 設定設定檔名稱和路徑
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// 讀取設定檔
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 解析設定
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 驗證必要設定
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	fmt.Println("Loading configuration", "auth_provider:", config.Auth.Provider, "auth_secret:", maskSecret(config.Auth.JWTSecret), "history_backend:", config.History.Backend)

	return &config, nil
}

// maskSecret 遮罩密鑰，只顯示前後各 4 個字符
func maskSecret(key string) string {
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
	v.SetDefault("app.name", "nutrition-coach")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "10s")
	v.SetDefault("server.max_body_bytes", 1<<20) // 1MB

	// 身分驗證設定
	v.SetDefault("auth.provider", "jwt")
	v.SetDefault("auth.jwt_issuer", "nutrition-coach")
	v.SetDefault("auth.session_timeout", "5s")
	v.SetDefault("auth.token_ttl", "24h")

	// 儲存設定
	v.SetDefault("storage.sqlite_path", "data/nutrition.db")

	// 分析紀錄設定
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.backend", "memory")
	v.SetDefault("history.redis_addr", "localhost:6379")
	v.SetDefault("history.redis_db", 0)
	v.SetDefault("history.max_entries", 20)
	v.SetDefault("history.max_users", 10000)
	v.SetDefault("history.ttl", "720h")
	v.SetDefault("history.cleanup_interval", "10m")

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.rps", 10)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("cors.allow_origins", []string{"*"})

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", "logs")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	// 驗證伺服器設定
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid max body bytes")
	}

	// 驗證身分設定
	switch config.Auth.Provider {
	case "jwt":
		if config.Auth.JWTSecret == "" {
			return fmt.Errorf("auth secret is required for jwt provider")
		}
		if config.Auth.TokenTTL <= 0 {
			return fmt.Errorf("invalid auth token ttl")
		}
	case "remote":
		if config.Auth.SessionURL == "" {
			return fmt.Errorf("session url is required for remote provider")
		}
	default:
		return fmt.Errorf("unknown auth provider %q", config.Auth.Provider)
	}

	if config.Storage.SQLitePath == "" {
		return fmt.Errorf("sqlite path is required")
	}

	// 驗證紀錄設定
	if config.History.Enabled {
		if config.History.Backend != "memory" && config.History.Backend != "redis" {
			return fmt.Errorf("unknown history backend %q", config.History.Backend)
		}
		if config.History.MaxEntries <= 0 {
			return fmt.Errorf("invalid history max entries")
		}
		if config.History.TTL <= 0 {
			return fmt.Errorf("invalid history ttl")
		}
		if config.History.Backend == "memory" {
			if config.History.MaxUsers <= 0 {
				return fmt.Errorf("invalid history max users")
			}
			if config.History.CleanupInterval <= 0 {
				return fmt.Errorf("invalid history cleanup interval")
			}
		}
	}

	// 驗證限流設定
	if config.RateLimit.Enabled {
		if config.RateLimit.RPS <= 0 {
			return fmt.Errorf("invalid rate limit rps")
		}
		if config.RateLimit.Burst <= 0 {
			return fmt.Errorf("invalid rate limit burst")
		}
	}

	return nil
}
