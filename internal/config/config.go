package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Bot       BotConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Logger    LoggerConfig
	Security  SecurityConfig
	Sessions  SessionConfig
	Artifacts ArtifactConfig
}

type BotConfig struct {
	Token          string
	Enabled        bool
	PollTimeout    int
	MaxConcurrency int
	Debug          bool
}

type ServerConfig struct {
	Enabled         bool
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver      string
	DSN         string
	Host        string
	Port        int
	User        string
	Password    string
	Name        string
	SSLMode     string
	LoadTimeout time.Duration
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

type SessionConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	TTL           time.Duration
}

type ArtifactConfig struct {
	Dir             string
	ArchiveBucket   string
	ArchivePrefix   string
	ArchiveEndpoint string
}

// Load reads configuration from the environment. A .env file in the working
// directory, when present, is applied first without overriding variables
// that are already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Bot: BotConfig{
			Token:          getEnvString("TOKEN", ""),
			Enabled:        getEnvBool("BOT_ENABLED", true),
			PollTimeout:    getEnvInt("BOT_POLL_TIMEOUT", 60),
			MaxConcurrency: getEnvInt("BOT_MAX_CONCURRENCY", 8),
			Debug:          getEnvBool("BOT_DEBUG", false),
		},
		Server: ServerConfig{
			Enabled:         getEnvBool("SERVER_ENABLED", true),
			Host:            getEnvString("SERVER_HOST", "localhost"),
			Port:            getEnvInt("SERVER_PORT", 8084),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver:      getEnvString("DB_DRIVER", "postgres"),
			DSN:         getEnvString("DB_DSN", ""),
			Host:        getEnvString("DB_HOST", getEnvString("HOST", "localhost")),
			Port:        getEnvInt("DB_PORT", getEnvInt("PORT", 5432)),
			User:        getEnvString("DB_USER", getEnvString("USER", "postgres")),
			Password:    getEnvString("DB_PASSWORD", getEnvString("PASSWORD", "")),
			Name:        getEnvString("DB_NAME", "sales"),
			SSLMode:     getEnvString("DB_SSLMODE", "disable"),
			LoadTimeout: getEnvDuration("DB_LOAD_TIMEOUT", 30*time.Second),
		},
		Logger: LoggerConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			EnableRateLimit: getEnvBool("SECURITY_RATE_LIMIT_ENABLED", true),
			RateLimitRPS:    getEnvInt("SECURITY_RATE_LIMIT_RPS", 20),
			RateLimitBurst:  getEnvInt("SECURITY_RATE_LIMIT_BURST", 10),
			AllowedOrigins:  getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", []string{"http://localhost:8084"}),
			TrustedProxies:  getEnvStringSlice("SECURITY_TRUSTED_PROXIES", []string{"127.0.0.1"}),
		},
		Sessions: SessionConfig{
			Backend:       getEnvString("SESSION_BACKEND", "memory"),
			RedisAddr:     getEnvString("SESSION_REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnvString("SESSION_REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("SESSION_REDIS_DB", 0),
			RedisPrefix:   getEnvString("SESSION_REDIS_PREFIX", "salesbot:session:"),
			TTL:           getEnvDuration("SESSION_TTL", 24*time.Hour),
		},
		Artifacts: ArtifactConfig{
			Dir:             getEnvString("CHART_DIR", os.TempDir()),
			ArchiveBucket:   getEnvString("ARCHIVE_S3_BUCKET", ""),
			ArchivePrefix:   getEnvString("ARCHIVE_S3_PREFIX", "charts/"),
			ArchiveEndpoint: getEnvString("ARCHIVE_S3_ENDPOINT", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Bot.Enabled && c.Bot.Token == "" {
		return fmt.Errorf("bot token (TOKEN) is required when the bot is enabled")
	}

	if c.Bot.MaxConcurrency <= 0 {
		return fmt.Errorf("bot max concurrency must be positive")
	}

	if !c.Bot.Enabled && !c.Server.Enabled {
		return fmt.Errorf("at least one of the bot or the HTTP server must be enabled")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	validDrivers := []string{"postgres", "pgx", "sqlite3"}
	if !contains(validDrivers, c.Database.Driver) {
		return fmt.Errorf("invalid database driver %q, must be one of: %s", c.Database.Driver, strings.Join(validDrivers, ", "))
	}

	if c.Database.Driver == "sqlite3" && c.Database.DSN == "" {
		return fmt.Errorf("sqlite3 driver requires DB_DSN")
	}

	if c.Database.LoadTimeout <= 0 {
		return fmt.Errorf("database load timeout must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	validBackends := []string{"memory", "redis"}
	if !contains(validBackends, c.Sessions.Backend) {
		return fmt.Errorf("invalid session backend %q, must be one of: %s", c.Sessions.Backend, strings.Join(validBackends, ", "))
	}

	if c.Artifacts.Dir == "" {
		return fmt.Errorf("chart directory cannot be empty")
	}

	return nil
}

// DataSourceName returns DB_DSN when set, otherwise a Postgres URL built from
// the individual connection settings.
func (c DatabaseConfig) DataSourceName() string {
	if c.DSN != "" {
		return c.DSN
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
