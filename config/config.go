// Package config loads runtime settings for the taskflow service.
//
// Settings are resolved in three layers: built-in defaults, an optional TOML
// file named by TASKFLOW_CONFIG, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

const devJWTSecret = "taskflow-dev-secret-change-me"

// Config keeps runtime settings for the service.
type Config struct {
	HTTPAddr        string
	Env             string
	DBPath          string
	BodyLimit       int
	ShutdownTimeout time.Duration

	JWTSecret  string
	JWTExpire  time.Duration
	JWTIssuer  string
	BcryptCost int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration

	ClientURL   string
	CORSOrigins []string

	ReminderSchedule string
	ReminderWindow   time.Duration
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		HTTPAddr:         ":5000",
		Env:              EnvDevelopment,
		DBPath:           "taskflow.db",
		BodyLimit:        10 * 1024 * 1024,
		ShutdownTimeout:  30 * time.Second,
		JWTSecret:        devJWTSecret,
		JWTExpire:        30 * 24 * time.Hour,
		JWTIssuer:        "taskflow",
		BcryptCost:       12,
		CacheTTL:         5 * time.Minute,
		RateLimitMax:     100,
		RateLimitWindow:  10 * time.Minute,
		ReminderSchedule: "@every 15m",
		ReminderWindow:   24 * time.Hour,
	}
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// RedisEnabled reports whether Redis-backed features are configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// AllowedOrigins returns the CORS allow-list. Without explicit origins it
// falls back to the local frontend dev servers plus CLIENT_URL.
func (c *Config) AllowedOrigins() []string {
	if len(c.CORSOrigins) > 0 {
		return c.CORSOrigins
	}
	origins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://localhost:5174",
	}
	if c.ClientURL != "" {
		origins = append(origins, c.ClientURL)
	}
	return origins
}

// DatabaseDSN returns the SQLite DSN for DBPath. The auth and task modules
// open the same file, so a plain path gets a busy timeout and WAL journal.
func (c *Config) DatabaseDSN() string {
	if c.DBPath == ":memory:" || strings.Contains(c.DBPath, "?") {
		return c.DBPath
	}
	return c.DBPath + "?_busy_timeout=5000&_journal_mode=WAL"
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR must not be empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH must not be empty"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Env == EnvProduction && c.JWTSecret == devJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	if c.JWTExpire <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRE must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost))
	}
	if c.BodyLimit <= 0 {
		errs = append(errs, errors.New("BODY_LIMIT must be positive"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if c.RateLimitMax <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX must be positive"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if c.ReminderWindow <= 0 {
		errs = append(errs, errors.New("REMINDER_WINDOW must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

// Load resolves the configuration from defaults, the optional config file
// and the environment.
func Load() (*Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("TASKFLOW_CONFIG")); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// fileConfig mirrors Config for TOML decoding. Absent keys stay nil and
// leave the default untouched.
type fileConfig struct {
	HTTPAddr        *string   `toml:"http_addr"`
	Env             *string   `toml:"env"`
	DBPath          *string   `toml:"db_path"`
	BodyLimit       *int      `toml:"body_limit"`
	ShutdownTimeout *Duration `toml:"shutdown_timeout"`

	JWT struct {
		Secret     *string   `toml:"secret"`
		Expire     *Duration `toml:"expire"`
		Issuer     *string   `toml:"issuer"`
		BcryptCost *int      `toml:"bcrypt_cost"`
	} `toml:"jwt"`

	Redis struct {
		Addr     *string   `toml:"addr"`
		Password *string   `toml:"password"`
		DB       *int      `toml:"db"`
		CacheTTL *Duration `toml:"cache_ttl"`
	} `toml:"redis"`

	RateLimit struct {
		Max    *int      `toml:"max"`
		Window *Duration `toml:"window"`
	} `toml:"rate_limit"`

	CORS struct {
		ClientURL *string  `toml:"client_url"`
		Origins   []string `toml:"origins"`
	} `toml:"cors"`

	Reminder struct {
		Schedule *string   `toml:"schedule"`
		Window   *Duration `toml:"window"`
	} `toml:"reminder"`
}

func loadFile(cfg *Config, path string) error {
	var fc fileConfig
	meta, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	setString(&cfg.HTTPAddr, fc.HTTPAddr)
	setString(&cfg.Env, fc.Env)
	setString(&cfg.DBPath, fc.DBPath)
	setInt(&cfg.BodyLimit, fc.BodyLimit)
	setDuration(&cfg.ShutdownTimeout, fc.ShutdownTimeout)

	setString(&cfg.JWTSecret, fc.JWT.Secret)
	setDuration(&cfg.JWTExpire, fc.JWT.Expire)
	setString(&cfg.JWTIssuer, fc.JWT.Issuer)
	setInt(&cfg.BcryptCost, fc.JWT.BcryptCost)

	setString(&cfg.RedisAddr, fc.Redis.Addr)
	setString(&cfg.RedisPassword, fc.Redis.Password)
	setInt(&cfg.RedisDB, fc.Redis.DB)
	setDuration(&cfg.CacheTTL, fc.Redis.CacheTTL)

	setInt(&cfg.RateLimitMax, fc.RateLimit.Max)
	setDuration(&cfg.RateLimitWindow, fc.RateLimit.Window)

	setString(&cfg.ClientURL, fc.CORS.ClientURL)
	if len(fc.CORS.Origins) > 0 {
		cfg.CORSOrigins = fc.CORS.Origins
	}

	setString(&cfg.ReminderSchedule, fc.Reminder.Schedule)
	setDuration(&cfg.ReminderWindow, fc.Reminder.Window)
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" && os.Getenv("HTTP_ADDR") == "" {
		cfg.HTTPAddr = ":" + port
	}
	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = getEnv("JWT_ISSUER", cfg.JWTIssuer)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.ClientURL = getEnv("CLIENT_URL", cfg.ClientURL)
	cfg.ReminderSchedule = getEnv("REMINDER_SCHEDULE", cfg.ReminderSchedule)

	if origins := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	var err error
	if cfg.BodyLimit, err = getEnvInt("BODY_LIMIT", cfg.BodyLimit); err != nil {
		return err
	}
	if cfg.BcryptCost, err = getEnvInt("BCRYPT_COST", cfg.BcryptCost); err != nil {
		return err
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", cfg.RedisDB); err != nil {
		return err
	}
	if cfg.RateLimitMax, err = getEnvInt("RATE_LIMIT_MAX", cfg.RateLimitMax); err != nil {
		return err
	}
	if cfg.JWTExpire, err = getEnvDuration("JWT_EXPIRE", cfg.JWTExpire); err != nil {
		return err
	}
	if cfg.CacheTTL, err = getEnvDuration("CACHE_TTL", cfg.CacheTTL); err != nil {
		return err
	}
	if cfg.RateLimitWindow, err = getEnvDuration("RATE_LIMIT_WINDOW", cfg.RateLimitWindow); err != nil {
		return err
	}
	if cfg.ReminderWindow, err = getEnvDuration("REMINDER_WINDOW", cfg.ReminderWindow); err != nil {
		return err
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return err
	}
	return nil
}

// getEnv returns an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an environment variable as int or a default value.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, value)
	}
	return n, nil
}

// getEnvDuration returns an environment variable as a duration or a default value.
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	d, err := ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *Duration) {
	if src != nil {
		*dst = time.Duration(*src)
	}
}
