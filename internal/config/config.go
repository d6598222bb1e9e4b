package config

import (
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/errs"
)

const PROD_STRING = "prod"

// Config holds all application configuration loaded from environment.
type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	DB        DBConfig
	CORS      CORSConfig
	JWT       JWTConfig
	Booking   BookingConfig
	Pricing   PricingConfig
	Redis     RedisConfig
	AMQP      AMQPConfig
	RateLimit RateLimitConfig
}

type DBConfig struct {
	DSN             string        `envconfig:"DB_DSN" required:"true"`
	MaxConns        int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"1h"`
}

type CORSConfig struct {
	AllowOrigins []string `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000,http://localhost:8081"`
}

type JWTConfig struct {
	Secret         string        `envconfig:"JWT_SECRET" required:"true"`
	Issuer         string        `envconfig:"JWT_ISSUER"`
	AccessTokenTTL time.Duration `envconfig:"JWT_ACCESS_TOKEN_TTL" default:"15m"`
}

// BookingConfig tunes the conflict validator and the booking service.
type BookingConfig struct {
	TimeZone           string        `envconfig:"BOOKING_TIMEZONE" default:"Asia/Manila"`
	PastGrace          time.Duration `envconfig:"BOOKING_PAST_GRACE" default:"30s"`
	AllowSelfReplace   bool          `envconfig:"BOOKING_ALLOW_SELF_REPLACE" default:"true"`
	MaxWeeks           int           `envconfig:"BOOKING_MAX_WEEKS" default:"52"`
	RescheduleWindow   time.Duration `envconfig:"BOOKING_RESCHEDULE_WINDOW" default:"24h"`
	DownPaymentPercent float64       `envconfig:"BOOKING_DOWN_PAYMENT_PERCENT" default:"20"`
	UseTx              bool          `envconfig:"BOOKING_TX" default:"false"`
	// TimeOffset shifts the engine clock outside production.
	TimeOffset time.Duration `envconfig:"BOOKING_TIME_OFFSET" default:"0s"`
}

// PricingConfig is the platform fee used when platform_settings has no row.
type PricingConfig struct {
	FeeEnabled    bool    `envconfig:"PLATFORM_FEE_ENABLED" default:"false"`
	FeePercentage float64 `envconfig:"PLATFORM_FEE_PERCENTAGE" default:"5"`
}

// RedisConfig enables the court cache when Addr is set.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"REDIS_COURT_TTL" default:"5m"`
}

// AMQPConfig enables event publishing when URL is set.
type AMQPConfig struct {
	URL      string `envconfig:"AMQP_URL"`
	Exchange string `envconfig:"AMQP_EXCHANGE" default:"court.reservations"`
}

// RateLimitConfig limits booking writes per user.
type RateLimitConfig struct {
	PerMinute float64 `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30"`
	Burst     int     `envconfig:"RATE_LIMIT_BURST" default:"10"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == PROD_STRING
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errs.Wrap(err, "failed to process env config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DB.DSN == "" {
		return errs.New("DB_DSN is required")
	}
	if c.JWT.Secret == "" {
		return errs.New("JWT_SECRET is required")
	}
	if _, err := time.LoadLocation(c.Booking.TimeZone); err != nil {
		return errs.Wrapf(err, "invalid BOOKING_TIMEZONE %q", c.Booking.TimeZone)
	}
	if c.Booking.PastGrace < 0 {
		return errs.New("BOOKING_PAST_GRACE must not be negative")
	}
	if c.Booking.MaxWeeks < 1 {
		return errs.New("BOOKING_MAX_WEEKS must be at least 1")
	}
	if c.Booking.DownPaymentPercent <= 0 || c.Booking.DownPaymentPercent > 100 {
		return errs.New("BOOKING_DOWN_PAYMENT_PERCENT must be in (0, 100]")
	}
	if c.IsProduction() && c.Booking.TimeOffset != 0 {
		return errs.New("BOOKING_TIME_OFFSET is not allowed in production")
	}
	return nil
}
