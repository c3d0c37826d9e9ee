package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Messaging     MessagingConfig     `mapstructure:"messaging"`
	Notification  NotificationConfig  `mapstructure:"notification"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	OpenAPISpec   string              `mapstructure:"openapi_spec"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig selects the storage backend. "memory" keeps permissions in
// process and is meant for local runs only.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"required,oneof=postgres sqlite memory"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source" validate:"required_unless=Driver memory"`
}

type SecurityConfig struct {
	JWTAccessSecret      string        `mapstructure:"jwt_access_secret" validate:"required,min=32"`
	JWTRefreshSecret     string        `mapstructure:"jwt_refresh_secret" validate:"required,min=32"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" validate:"required,min=1m,max=1h"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" validate:"required,min=1h"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" validate:"required,min=10,max=15"`
}

type MessagingConfig struct {
	RequestTTL        time.Duration `mapstructure:"request_ttl" validate:"required,min=1h"`
	MaxRequestTTLDays int           `mapstructure:"max_request_ttl_days" validate:"required,min=1,max=365"`
	AutoGrantTTL      time.Duration `mapstructure:"auto_grant_ttl" validate:"required,min=24h"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval" validate:"required,min=1m"`
	QualifyingPlans   []string      `mapstructure:"qualifying_plans" validate:"required,min=1,dive,required"`
}

type NotificationConfig struct {
	WebhookURL     string        `mapstructure:"webhook_url" validate:"omitempty,url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxWorkers     int           `mapstructure:"max_workers" validate:"min=0"`
	JobQueueSize   int           `mapstructure:"job_queue_size" validate:"min=0"`
	WorkerPoolSize int           `mapstructure:"worker_pool_size" validate:"min=0"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"required,oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig holds the values used for anything config.yml or the
// environment leaves unset.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:              8080,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       60 * time.Second,
			WriteTimeout:      15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Security: SecurityConfig{
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 7 * 24 * time.Hour,
			BCryptCost:           12,
		},
		Messaging: MessagingConfig{
			RequestTTL:        7 * 24 * time.Hour,
			MaxRequestTTLDays: 30,
			AutoGrantTTL:      90 * 24 * time.Hour,
			SweepInterval:     7 * 24 * time.Hour,
			QualifyingPlans:   []string{"professional", "enterprise"},
		},
		Notification: NotificationConfig{
			Timeout:        5 * time.Second,
			MaxWorkers:     4,
			JobQueueSize:   100,
			WorkerPoolSize: 4,
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:      "info",
				Format:     "json",
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		OpenAPISpec: "./api/openapi.yml",
	}
}

// LoadConfigFromEnv builds the configuration from environment variables only.
// Used for container deployments where no config.yml is mounted.
func LoadConfigFromEnv() (*Config, error) {
	cfg := DefaultConfig()

	cfg.Server.Port = getEnvAsInt("HTTP_PORT", cfg.Server.Port)
	cfg.Server.BaseURL = getEnv("BASE_URL", cfg.Server.BaseURL)
	cfg.Server.AllowedOrigins = getEnv("ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Source = getEnv("DATABASE_URL", cfg.Database.Source)
	cfg.Database.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)

	cfg.Security.JWTAccessSecret = getEnv("JWT_ACCESS_SECRET", "")
	cfg.Security.JWTRefreshSecret = getEnv("JWT_REFRESH_SECRET", "")
	cfg.Security.AccessTokenDuration = getEnvAsDuration("ACCESS_TOKEN_DURATION", cfg.Security.AccessTokenDuration)
	cfg.Security.RefreshTokenDuration = getEnvAsDuration("REFRESH_TOKEN_DURATION", cfg.Security.RefreshTokenDuration)
	cfg.Security.BCryptCost = getEnvAsInt("BCRYPT_COST", cfg.Security.BCryptCost)

	cfg.Messaging.RequestTTL = getEnvAsDuration("MESSAGING_REQUEST_TTL", cfg.Messaging.RequestTTL)
	cfg.Messaging.MaxRequestTTLDays = getEnvAsInt("MESSAGING_MAX_REQUEST_TTL_DAYS", cfg.Messaging.MaxRequestTTLDays)
	cfg.Messaging.AutoGrantTTL = getEnvAsDuration("MESSAGING_AUTO_GRANT_TTL", cfg.Messaging.AutoGrantTTL)
	cfg.Messaging.SweepInterval = getEnvAsDuration("MESSAGING_SWEEP_INTERVAL", cfg.Messaging.SweepInterval)
	if plans := getEnv("MESSAGING_QUALIFYING_PLANS", ""); plans != "" {
		cfg.Messaging.QualifyingPlans = splitAndTrim(plans)
	}

	cfg.Notification.WebhookURL = getEnv("NOTIFICATION_WEBHOOK_URL", "")
	cfg.Notification.Timeout = getEnvAsDuration("NOTIFICATION_TIMEOUT", cfg.Notification.Timeout)
	cfg.Notification.MaxWorkers = getEnvAsInt("NOTIFICATION_MAX_WORKERS", cfg.Notification.MaxWorkers)
	cfg.Notification.JobQueueSize = getEnvAsInt("NOTIFICATION_JOB_QUEUE_SIZE", cfg.Notification.JobQueueSize)

	cfg.Observability.Logging.Level = getEnv("LOG_LEVEL", cfg.Observability.Logging.Level)
	cfg.Observability.Logging.Format = getEnv("LOG_FORMAT", cfg.Observability.Logging.Format)
	cfg.Observability.Logging.File = getEnv("LOG_FILE", "")

	cfg.OpenAPISpec = getEnv("OPENAPI_SPEC", cfg.OpenAPISpec)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ----------------- VALIDATION -----------------

var configValidator = validator.New()

func (c *Config) Validate() error {
	var errs []string

	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Messaging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("messaging config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *MessagingConfig) Validate() error {
	if c.RequestTTL > time.Duration(c.MaxRequestTTLDays)*24*time.Hour {
		return errors.New("request_ttl cannot exceed max_request_ttl_days")
	}
	return nil
}
