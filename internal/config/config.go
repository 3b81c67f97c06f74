package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Auth          AuthConfig          `mapstructure:"auth"`
	OpenRouter    OpenRouterConfig    `mapstructure:"openrouter"`
	Anonymization AnonymizationConfig `mapstructure:"anonymization"`
	Survey        SurveyConfig        `mapstructure:"survey"`
	RateLimit     RateLimitConfig     `mapstructure:"ratelimit"`
	Email         EmailConfig         `mapstructure:"email"`
	Logger        LoggerConfig        `mapstructure:"logger"`
	Tracing       TracingConfig       `mapstructure:"tracing"`
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"` // debug, release, test
	ReadTimeout    int      `mapstructure:"read_timeout"`
	WriteTimeout   int      `mapstructure:"write_timeout"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// PublicURL используется для ссылок в письмах и заголовке HTTP-Referer запросов к LLM
	PublicURL string `mapstructure:"public_url"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	DBName         string `mapstructure:"dbname"`
	SSLMode        string `mapstructure:"sslmode"`
	MaxOpenConns   int    `mapstructure:"max_open_conns"`
	MaxIdleConns   int    `mapstructure:"max_idle_conns"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	Mode       string   `mapstructure:"mode"`
	Addrs      []string `mapstructure:"addrs"`
	Addr       string   `mapstructure:"addr"`
	Password   string   `mapstructure:"password"`
	DB         int      `mapstructure:"db"`
	MasterName string   `mapstructure:"master_name"`

	// MaxRetries: максимальное количество попыток переподключения (-1 - бесконечно)
	MaxRetries int `mapstructure:"max_retries"`
	// MinRetryBackoff и MaxRetryBackoff задаются в миллисекундах
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// AuthConfig содержит настройки проверки access-токенов внешнего провайдера аутентификации
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
	LoginPath string `mapstructure:"login_path"`
}

// OpenRouterConfig содержит настройки LLM-провайдера для проверки персональных данных
type OpenRouterConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	Endpoint          string        `mapstructure:"endpoint"`
	Model             string        `mapstructure:"model"`
	AppName           string        `mapstructure:"app_name"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// AnonymizationConfig управляет выбором стратегии анонимизации при старте
type AnonymizationConfig struct {
	Mock      bool          `mapstructure:"mock"`
	MockDelay time.Duration `mapstructure:"mock_delay"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// SurveyConfig содержит правила заполнения опросов
type SurveyConfig struct {
	MinRating         int  `mapstructure:"min_rating"`
	MaxRating         int  `mapstructure:"max_rating"`
	FeedbackMaxLength int  `mapstructure:"feedback_max_length"`
	EnforceWindow     bool `mapstructure:"enforce_window"`
	// AutosaveDebounce используется live-сессией заполнения (websocket)
	AutosaveDebounce time.Duration `mapstructure:"autosave_debounce"`
	SlugCacheTTL     time.Duration `mapstructure:"slug_cache_ttl"`
	// ScreeningTimeout ограничивает проверку отзыва целиком (детекция + анонимизация)
	// и должен завершаться раньше server.write_timeout
	ScreeningTimeout time.Duration `mapstructure:"screening_timeout"`
}

// RateLimitConfig содержит ограничения для дорогих эндпоинтов
type RateLimitConfig struct {
	GdprCheckMaxRequests int           `mapstructure:"gdpr_check_max_requests"`
	GdprCheckWindow      time.Duration `mapstructure:"gdpr_check_window"`
}

// EmailConfig содержит настройки отправки писем через Resend
type EmailConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

// LoggerConfig содержит настройки zap-логгера
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// TracingConfig содержит настройки экспорта трейсов
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// IsRelease сообщает, запущен ли сервер в production-режиме
func (s *ServerConfig) IsRelease() bool {
	return s.Mode == "release"
}

// screeningResponseMargin - запас между окончанием проверки отзыва и write timeout сервера
const screeningResponseMargin = 5 * time.Second

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.mode", "debug")
	vip.SetDefault("server.read_timeout", 15)
	vip.SetDefault("server.write_timeout", 60)
	vip.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:4321"})
	vip.SetDefault("server.public_url", "http://localhost:3000")

	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("database.max_open_conns", 25)
	vip.SetDefault("database.max_idle_conns", 10)
	vip.SetDefault("database.migrations_path", "file://migrations")

	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("redis.addr", "localhost:6379")

	vip.SetDefault("auth.login_path", "/login")

	vip.SetDefault("openrouter.endpoint", "https://openrouter.ai/api/v1/chat/completions")
	vip.SetDefault("openrouter.model", "anthropic/claude-3.5-sonnet")
	vip.SetDefault("openrouter.app_name", "PilotVoice")
	vip.SetDefault("openrouter.timeout", 20*time.Second)
	vip.SetDefault("openrouter.requests_per_second", 5.0)

	vip.SetDefault("anonymization.mock", false)
	vip.SetDefault("anonymization.mock_delay", 300*time.Millisecond)
	vip.SetDefault("anonymization.cache_ttl", 24*time.Hour)

	vip.SetDefault("survey.min_rating", 1)
	vip.SetDefault("survey.max_rating", 5)
	vip.SetDefault("survey.feedback_max_length", 10000)
	vip.SetDefault("survey.enforce_window", false)
	vip.SetDefault("survey.autosave_debounce", 5*time.Second)
	vip.SetDefault("survey.slug_cache_ttl", 5*time.Minute)
	vip.SetDefault("survey.screening_timeout", 45*time.Second)

	vip.SetDefault("ratelimit.gdpr_check_max_requests", 10)
	vip.SetDefault("ratelimit.gdpr_check_window", time.Minute)

	vip.SetDefault("logger.level", "info")
	vip.SetDefault("logger.file", "logs/app.log")
	vip.SetDefault("logger.max_size_mb", 100)
	vip.SetDefault("logger.max_backups", 5)
	vip.SetDefault("logger.max_age_days", 30)

	vip.SetDefault("tracing.service_name", "pilotvoice-api")
}

func bindEnv(vip *viper.Viper) {
	// Привязка переменных окружения ЯВНО, как и для файла конфигурации
	bindings := map[string]string{
		"server.port":       "SERVER_PORT",
		"server.mode":       "GIN_MODE",
		"server.public_url": "SITE_URL",

		"database.host":     "DATABASE_HOST",
		"database.port":     "DATABASE_PORT",
		"database.user":     "DATABASE_USER",
		"database.password": "DATABASE_PASSWORD",
		"database.dbname":   "DATABASE_DBNAME",
		"database.sslmode":  "DATABASE_SSLMODE",

		"redis.mode":        "REDIS_MODE",
		"redis.addrs":       "REDIS_ADDRS",
		"redis.addr":        "REDIS_ADDR",
		"redis.password":    "REDIS_PASSWORD",
		"redis.db":          "REDIS_DB",
		"redis.master_name": "REDIS_MASTER_NAME",

		"auth.jwt_secret": "AUTH_JWT_SECRET",
		"auth.issuer":     "AUTH_ISSUER",
		"auth.audience":   "AUTH_AUDIENCE",

		"openrouter.api_key":  "OPENROUTER_API_KEY",
		"openrouter.model":    "OPENROUTER_MODEL",
		"openrouter.app_name": "APP_NAME",

		"anonymization.mock": "MOCK_AI_SERVICE",

		"email.enabled":        "EMAIL_ENABLED",
		"email.resend_api_key": "RESEND_API_KEY",
		"email.from":           "EMAIL_FROM",

		"logger.level": "LOG_LEVEL",

		"tracing.enabled":  "TRACING_ENABLED",
		"tracing.endpoint": "TRACING_ENDPOINT",
	}
	for key, env := range bindings {
		_ = vip.BindEnv(key, env)
	}
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Новый экземпляр Viper, чтобы избежать глобального состояния

	setDefaults(vip)
	bindEnv(vip)

	if configPath != "" {
		vip.SetConfigFile(configPath)
		// Файл не обязателен: значения могут прийти из переменных окружения
		if err := vip.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !strings.Contains(err.Error(), "no such file") {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет обязательные параметры конфигурации
func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth JWT secret is required (check AUTH_JWT_SECRET env var)")
	}
	if !c.Anonymization.Mock && c.OpenRouter.APIKey == "" {
		return fmt.Errorf("OpenRouter API key is required when anonymization is not mocked (check OPENROUTER_API_KEY or set MOCK_AI_SERVICE=true)")
	}
	if c.Survey.MinRating < 1 || c.Survey.MaxRating < c.Survey.MinRating {
		return fmt.Errorf("invalid survey rating range %d..%d", c.Survey.MinRating, c.Survey.MaxRating)
	}
	if c.Survey.ScreeningTimeout <= 0 {
		return fmt.Errorf("survey screening timeout must be positive")
	}
	if writeTimeout := time.Duration(c.Server.WriteTimeout) * time.Second; c.Survey.ScreeningTimeout+screeningResponseMargin > writeTimeout {
		return fmt.Errorf("survey screening timeout %s leaves no time to respond within server write timeout %s", c.Survey.ScreeningTimeout, writeTimeout)
	}
	if c.Email.Enabled && (c.Email.ResendAPIKey == "" || c.Email.From == "") {
		return fmt.Errorf("email is enabled but RESEND_API_KEY or EMAIL_FROM is missing")
	}
	if c.Server.IsRelease() && c.Database.Password == "" {
		return fmt.Errorf("database password is required in release mode (check DATABASE_PASSWORD env var)")
	}
	return nil
}
