package config

import (
	"fmt"
	"time"

	"github.com/Proton-105/tapcoin-engine/pkg/logger"
	appredis "github.com/Proton-105/tapcoin-engine/pkg/redis"
)

// Config holds runtime configuration for the tapcoin engine.
type Config struct {
	AppEnv string `mapstructure:"-"`

	Logger    logger.Config   `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Server    ServerConfig    `mapstructure:"server"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Sweep     SweepConfig     `mapstructure:"sweep"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Payments  PaymentsConfig  `mapstructure:"payments"`
}

type SentryConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	DSN              string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate" validate:"gte=0,lte=1"`
}

// DatabaseConfig selects PostgreSQL storage. When disabled the engine keeps
// accounts in memory.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host" validate:"required_if=Enabled true"`
	Port            int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	User            string        `mapstructure:"user" validate:"required_if=Enabled true"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name" validate:"required_if=Enabled true"`
	SSLMode         string        `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-ca verify-full"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

type RedisConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	appredis.Config `mapstructure:",squash"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type TelegramConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Token       string `mapstructure:"token" validate:"required_if=Enabled true"`
	AdminChatID int64  `mapstructure:"admin_chat_id"`
	Language    string `mapstructure:"language" validate:"omitempty,oneof=en ru"`
}

type EngineConfig struct {
	ForegroundCap        time.Duration    `mapstructure:"foreground_cap" validate:"gt=0"`
	SweepCap             time.Duration    `mapstructure:"sweep_cap" validate:"gt=0"`
	BoosterDuration      time.Duration    `mapstructure:"booster_duration" validate:"gt=0"`
	ReferralPercent      int64            `mapstructure:"referral_percent" validate:"gte=0,lte=100"`
	ActiveReferralWindow time.Duration    `mapstructure:"active_referral_window" validate:"gt=0"`
	ExpiryWarningWindow  time.Duration    `mapstructure:"expiry_warning_window" validate:"gt=0"`
	MinPromoLength       int              `mapstructure:"min_promo_length" validate:"gte=1"`
	DefaultBanReason     string           `mapstructure:"default_ban_reason" validate:"required"`
	StatsInterval        time.Duration    `mapstructure:"stats_interval" validate:"gt=0"`
	AdRewards            map[string]int64 `mapstructure:"ad_rewards" validate:"dive,gt=0"`
}

// SweepConfig drives the background autoclicker pass. Driver "ticker" sweeps
// in process; "asynq" schedules the pass through Redis.
type SweepConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Driver   string        `mapstructure:"driver" validate:"oneof=ticker asynq"`
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
	Workers  int           `mapstructure:"workers" validate:"gte=1"`
	LeaseTTL time.Duration `mapstructure:"lease_ttl" validate:"gt=0"`
}

type RuleConfig struct {
	Limit  int           `mapstructure:"limit" validate:"gte=0"`
	Window time.Duration `mapstructure:"window" validate:"gte=0"`
}

type RateLimitConfig struct {
	Enabled         bool                  `mapstructure:"enabled"`
	Rules           map[string]RuleConfig `mapstructure:"rules" validate:"dive"`
	Whitelist       []int64               `mapstructure:"whitelist"`
	CleanupInterval time.Duration         `mapstructure:"cleanup_interval" validate:"gt=0"`
	MaxKeyAge       time.Duration         `mapstructure:"max_key_age" validate:"gt=0"`
}

// CatalogConfig points at a YAML task and skin catalog. Empty uses the built-in one.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// PaymentsConfig guards the settlement callback. An empty secret disables it.
type PaymentsConfig struct {
	WebhookSecret string        `mapstructure:"webhook_secret"`
	ResultTTL     time.Duration `mapstructure:"result_ttl" validate:"gte=0"`
}
