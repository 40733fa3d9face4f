package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API and worker processes.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Queue     QueueConfig
}

type AppConfig struct {
	Env  string
	Port int

	// WebDir points at the built single-page frontend. Empty disables static serving.
	WebDir string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string

	// AutoMigrate applies embedded migrations on startup.
	AutoMigrate bool
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// RateLimitConfig configures the fixed-window counters.
// Auth* applies per client IP to register/login/refresh, API* per user to the rest of /api/v1.
type RateLimitConfig struct {
	AuthRequests int
	AuthWindow   time.Duration
	APIRequests  int
	APIWindow    time.Duration
}

type QueueConfig struct {
	Name        string
	MaxAttempts int

	// WorkerMetricsPort is where cmd/worker exposes /metrics. Defaults to APP_PORT+1.
	WorkerMetricsPort int
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port = requiredInt("APP_PORT", &parseErrs)
	c.App.WebDir = strings.TrimSpace(os.Getenv("WEB_DIR"))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port = requiredInt("DB_PORT", &parseErrs)
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	c.DB.AutoMigrate = optionalBool("DB_AUTO_MIGRATE", c.App.Env != "production", &parseErrs)

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = requiredInt("REDIS_PORT", &parseErrs)

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = optionalDuration("JWT_ACCESS_TTL", &parseErrs)
	c.Auth.RefreshTokenTTL = optionalDuration("JWT_REFRESH_TTL", &parseErrs)

	c.RateLimit.AuthRequests = optionalInt("RATE_LIMIT_AUTH_REQUESTS", &parseErrs)
	c.RateLimit.AuthWindow = optionalDuration("RATE_LIMIT_AUTH_WINDOW", &parseErrs)
	c.RateLimit.APIRequests = optionalInt("RATE_LIMIT_API_REQUESTS", &parseErrs)
	c.RateLimit.APIWindow = optionalDuration("RATE_LIMIT_API_WINDOW", &parseErrs)

	c.Queue.Name = strings.TrimSpace(os.Getenv("QUEUE_NAME"))
	c.Queue.MaxAttempts = optionalInt("QUEUE_MAX_ATTEMPTS", &parseErrs)
	c.Queue.WorkerMetricsPort = optionalInt("WORKER_METRICS_PORT", &parseErrs)

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if c.IsProduction() && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes in production"))
	}
	if c.Auth.JWTIssuer == "" {
		errs = append(errs, errors.New("JWT_ISSUER is required"))
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if err := CheckTokenTTL("JWT_ACCESS_TTL", c.Auth.AccessTokenTTL); err != nil {
		errs = append(errs, err)
	}
	if err := CheckTokenTTL("JWT_REFRESH_TTL", c.Auth.RefreshTokenTTL); err != nil {
		errs = append(errs, err)
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.RateLimit.AuthRequests <= 0 {
		c.RateLimit.AuthRequests = 10
	}
	if c.RateLimit.AuthWindow <= 0 {
		c.RateLimit.AuthWindow = time.Minute
	}
	if c.RateLimit.APIRequests <= 0 {
		c.RateLimit.APIRequests = 300
	}
	if c.RateLimit.APIWindow <= 0 {
		c.RateLimit.APIWindow = time.Minute
	}

	if c.Queue.Name == "" {
		c.Queue.Name = "taskhub:jobs"
	}
	if c.Queue.MaxAttempts <= 0 {
		c.Queue.MaxAttempts = 5
	}
	if c.Queue.WorkerMetricsPort <= 0 {
		c.Queue.WorkerMetricsPort = c.App.Port + 1
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) WorkerMetricsAddr() string {
	return fmt.Sprintf(":%d", c.Queue.WorkerMetricsPort)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func requiredInt(key string, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		*errs = append(*errs, fmt.Errorf("%s is required", key))
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be an integer, got %q", key, v))
		return 0
	}
	return n
}

func optionalInt(key string, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be an integer, got %q", key, v))
		return 0
	}
	return n
}

func optionalDuration(key string, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a duration like 15m, got %q", key, v))
		return 0
	}
	return d
}

func optionalBool(key string, def bool, errs *[]error) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a boolean, got %q", key, v))
		return def
	}
	return b
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}

// CheckTokenTTL rejects lifetimes that JWT NumericDate cannot carry exactly:
// exp and iat are whole seconds, so the TTL must be too.
func CheckTokenTTL(name string, ttl time.Duration) error {
	if ttl < time.Second {
		return fmt.Errorf("%s must be at least 1s, got %s", name, ttl)
	}
	if ttl%time.Second != 0 {
		return fmt.Errorf("%s must be a whole number of seconds, got %s", name, ttl)
	}
	return nil
}
