package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

type Config struct {
	App        AppConfig
	Service    ServiceConfig
	DB         DBConfig
	Redis      RedisConfig
	Gateway    GatewayConfig
	Commission CommissionConfig
	RateLimit  RateLimitConfig
	Reconcile  ReconcileConfig
	Checkout   CheckoutConfig
	Outbox     OutboxConfig
	GCP        GCPConfig
	PubSub     PubSubConfig
	Flags      FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VENDORA_APP_ENV" required:"true"`
	Port         string `envconfig:"VENDORA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VENDORA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VENDORA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VENDORA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VENDORA_DB_DSN"`
	Driver string `envconfig:"VENDORA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VENDORA_DB_HOST"`
	LegacyPort     int    `envconfig:"VENDORA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VENDORA_DB_USER"`
	LegacyPassword string `envconfig:"VENDORA_DB_PASSWORD"`
	LegacyName     string `envconfig:"VENDORA_DB_NAME"`
	LegacySSLMode  string `envconfig:"VENDORA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VENDORA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VENDORA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VENDORA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VENDORA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.LegacyHost == "" || d.LegacyUser == "" || d.LegacyName == "" {
		return fmt.Errorf("either VENDORA_DB_DSN or host/user/name settings are required")
	}
	userInfo := url.User(d.LegacyUser)
	if d.LegacyPassword != "" {
		userInfo = url.UserPassword(d.LegacyUser, d.LegacyPassword)
	}
	dsn := url.URL{
		Scheme:   "postgres",
		User:     userInfo,
		Host:     fmt.Sprintf("%s:%d", d.LegacyHost, d.LegacyPort),
		Path:     d.LegacyName,
		RawQuery: url.Values{"sslmode": []string{d.LegacySSLMode}}.Encode(),
	}
	d.DSN = dsn.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"VENDORA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VENDORA_REDIS_ADDR"`
	Password     string        `envconfig:"VENDORA_REDIS_PASSWORD"`
	DB           int           `envconfig:"VENDORA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VENDORA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VENDORA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VENDORA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VENDORA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VENDORA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GatewayConfig drives the external payment provider adapter.
type GatewayConfig struct {
	AccessToken    string        `envconfig:"VENDORA_GATEWAY_ACCESS_TOKEN"`
	Env            string        `envconfig:"VENDORA_GATEWAY_ENV" default:"sandbox"`
	LocationID     string        `envconfig:"VENDORA_GATEWAY_LOCATION_ID"`
	WebhookSecret  string        `envconfig:"VENDORA_GATEWAY_WEBHOOK_SECRET"`
	RedirectURL    string        `envconfig:"VENDORA_GATEWAY_REDIRECT_URL"`
	MaxAttempts    int           `envconfig:"VENDORA_GATEWAY_MAX_ATTEMPTS" default:"4"`
	InitialBackoff time.Duration `envconfig:"VENDORA_GATEWAY_INITIAL_BACKOFF" default:"500ms"`
	MaxBackoff     time.Duration `envconfig:"VENDORA_GATEWAY_MAX_BACKOFF" default:"10s"`
}

type CommissionConfig struct {
	// PlatformRate is a decimal fraction, e.g. "0.10" for 10%.
	PlatformRate string `envconfig:"VENDORA_COMMISSION_PLATFORM_RATE" default:"0.10"`
	// AffiliateRate applies to the seller net amount.
	AffiliateRate string `envconfig:"VENDORA_COMMISSION_AFFILIATE_RATE" default:"0.05"`
}

type RateLimitConfig struct {
	CheckoutWindow time.Duration `envconfig:"VENDORA_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutLimit  int           `envconfig:"VENDORA_RATE_LIMIT_CHECKOUT_LIMIT" default:"10"`
	WebhookWindow  time.Duration `envconfig:"VENDORA_RATE_LIMIT_WEBHOOK_WINDOW" default:"1m"`
	WebhookLimit   int           `envconfig:"VENDORA_RATE_LIMIT_WEBHOOK_LIMIT" default:"120"`
	DiscountWindow time.Duration `envconfig:"VENDORA_RATE_LIMIT_DISCOUNT_WINDOW" default:"1m"`
	DiscountLimit  int           `envconfig:"VENDORA_RATE_LIMIT_DISCOUNT_LIMIT" default:"30"`
	AdminWindow    time.Duration `envconfig:"VENDORA_RATE_LIMIT_ADMIN_WINDOW" default:"1m"`
	AdminLimit     int           `envconfig:"VENDORA_RATE_LIMIT_ADMIN_LIMIT" default:"5"`
}

type ReconcileConfig struct {
	Interval     time.Duration `envconfig:"VENDORA_RECONCILE_INTERVAL" default:"1h"`
	HoursDefault int           `envconfig:"VENDORA_RECONCILE_HOURS_DEFAULT" default:"24"`
	BatchSize    int           `envconfig:"VENDORA_RECONCILE_BATCH_SIZE" default:"200"`
}

type CheckoutConfig struct {
	Currency string `envconfig:"VENDORA_CHECKOUT_CURRENCY" default:"USD"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"VENDORA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"VENDORA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"VENDORA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"VENDORA_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	PayoutTopic        string `envconfig:"VENDORA_PUBSUB_PAYOUT_TOPIC" default:"vendora-payout-events"`
	PayoutSubscription string `envconfig:"VENDORA_PUBSUB_PAYOUT_SUBSCRIPTION"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"VENDORA_AUTO_MIGRATE" default:"false"`
}
