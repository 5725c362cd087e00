// Package config loads process settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"

	"workshop/internal/core/security"
	"workshop/internal/core/types"
	"workshop/internal/domain/adjustment"
	"workshop/internal/domain/billing"
	"workshop/internal/infrastructure/storage/postgres"
	"workshop/pkg/logger"
)

// Config is the full process configuration. Nested structs read their
// fields with the parent prefix, e.g. HTTP_PORT or WORKSHOP_DUE_DAYS.
type Config struct {
	AppEnv  string `envconfig:"APP_ENV" default:"development"`
	Version string `envconfig:"APP_VERSION" default:"dev"`

	HTTP     HTTPConfig     `envconfig:"HTTP"`
	Database DatabaseConfig `envconfig:"DATABASE"`
	Redis    RedisConfig    `envconfig:"REDIS"`
	JWT      JWTConfig      `envconfig:"JWT"`
	Log      LogConfig      `envconfig:"LOG"`
	Worker   WorkerConfig   `envconfig:"WORKER"`
	Workshop WorkshopConfig `envconfig:"WORKSHOP"`
}

type HTTPConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	// Idempotency enables X-Idempotency-Key handling on mutating routes.
	Idempotency bool `envconfig:"IDEMPOTENCY" default:"true"`
}

type DatabaseConfig struct {
	URL             string        `envconfig:"URL" required:"true"`
	MaxConns        int32         `envconfig:"MAX_CONNS" default:"25"`
	MinConns        int32         `envconfig:"MIN_CONNS" default:"5"`
	MaxConnLifetime time.Duration `envconfig:"MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `envconfig:"MAX_CONN_IDLE_TIME" default:"30m"`
}

type RedisConfig struct {
	Addr     string `envconfig:"ADDR" default:"localhost:6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
}

type JWTConfig struct {
	Secret string        `envconfig:"SECRET" required:"true"`
	Issuer string        `envconfig:"ISSUER" default:"workshop"`
	TTL    time.Duration `envconfig:"TTL" default:"15m"`
}

type LogConfig struct {
	Level string `envconfig:"LEVEL" default:"info"`
}

type WorkerConfig struct {
	Concurrency int    `envconfig:"CONCURRENCY" default:"5"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9091"`
}

// WorkshopConfig holds the business settings.
type WorkshopConfig struct {
	DefaultPriceList    string `envconfig:"DEFAULT_PRICE_LIST" default:"Standard Selling"`
	DefaultCurrency     string `envconfig:"DEFAULT_CURRENCY" default:"IDR"`
	ExternalServiceItem string `envconfig:"EXTERNAL_SERVICE_ITEM"`

	// DiscountThreshold is the discount above which a billing needs approval.
	DiscountThreshold types.Money `envconfig:"DISCOUNT_THRESHOLD" default:"0"`
	// ApproverRoles is a comma separated role list.
	ApproverRoles string `envconfig:"APPROVER_ROLES" default:"Accountant"`
	DueDays       int    `envconfig:"DUE_DAYS" default:"30"`

	AdjustmentAsyncThreshold int    `envconfig:"ADJUSTMENT_ASYNC_THRESHOLD" default:"10"`
	ZeroValuation            string `envconfig:"ZERO_VALUATION" default:"allow_when_zero"`

	// ClosedUntil (YYYY-MM-DD) rejects postings and cancellations dated
	// before it. Empty leaves every period open.
	ClosedUntil string `envconfig:"CLOSED_UNTIL"`

	PriceCacheTTL time.Duration `envconfig:"PRICE_CACHE_TTL" default:"10m"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if _, err := adjustment.ParseZeroValuationPolicy(c.Workshop.ZeroValuation); err != nil {
		return fmt.Errorf("WORKSHOP_ZERO_VALUATION: %w", err)
	}
	if _, err := c.closedUntil(); err != nil {
		return fmt.Errorf("WORKSHOP_CLOSED_UNTIL: %w", err)
	}
	if c.Workshop.DiscountThreshold.IsNegative() {
		return fmt.Errorf("WORKSHOP_DISCOUNT_THRESHOLD must not be negative")
	}
	if c.Workshop.AdjustmentAsyncThreshold < 0 {
		return fmt.Errorf("WORKSHOP_ADJUSTMENT_ASYNC_THRESHOLD must not be negative")
	}
	if len(strings.TrimSpace(c.Workshop.DefaultCurrency)) != 3 {
		return fmt.Errorf("WORKSHOP_DEFAULT_CURRENCY must be a 3 letter code")
	}
	return nil
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) closedUntil() (time.Time, error) {
	if c.Workshop.ClosedUntil == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, c.Workshop.ClosedUntil)
}

// Logger returns the logger settings for the named binary.
func (c *Config) Logger(service string) logger.Config {
	return logger.Config{Level: c.Log.Level, Development: c.IsDevelopment(), Service: service}
}

// Pool returns the database pool settings for the named binary.
func (c *Config) Pool(applicationName string) postgres.PoolConfig {
	p := postgres.DefaultPoolConfig(c.Database.URL)
	p.ApplicationName = applicationName
	p.MaxConns = c.Database.MaxConns
	p.MinConns = c.Database.MinConns
	p.MaxConnLifetime = c.Database.MaxConnLifetime
	p.MaxConnIdleTime = c.Database.MaxConnIdleTime
	return p
}

// RedisOptions returns the go-redis client options.
func (c *Config) RedisOptions() *redis.Options {
	return &redis.Options{Addr: c.Redis.Addr, Password: c.Redis.Password, DB: c.Redis.DB}
}

// AsynqRedis returns the queue connection settings.
func (c *Config) AsynqRedis() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.Redis.Addr, Password: c.Redis.Password, DB: c.Redis.DB}
}

// Billing returns the billing settings.
func (c *Config) Billing() billing.Config {
	return billing.Config{
		Approval: billing.ApprovalPolicy{
			Threshold:     c.Workshop.DiscountThreshold,
			ApproverRoles: billing.ParseApproverRoles(c.Workshop.ApproverRoles),
		},
		DueDays:             c.Workshop.DueDays,
		DefaultCurrency:     c.Workshop.DefaultCurrency,
		ExternalServiceItem: c.Workshop.ExternalServiceItem,
	}
}

// Adjustment returns the adjustment posting settings.
func (c *Config) Adjustment() adjustment.Config {
	policy, _ := adjustment.ParseZeroValuationPolicy(c.Workshop.ZeroValuation)
	return adjustment.Config{
		AsyncThreshold: c.Workshop.AdjustmentAsyncThreshold,
		ZeroValuation:  policy,
	}
}

// PeriodPolicy returns the fiscal period guard.
func (c *Config) PeriodPolicy() security.PeriodPolicy {
	until, _ := c.closedUntil()
	return security.NewPolicy(until)
}
