// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from YAML files and environment variables, validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	// Missing env files are normal outside local development.
	_ = godotenv.Load(".env.local", ".env")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	return LoadFile(fmt.Sprintf("./configs/%s.yaml", env), env)
}

// LoadFile reads path, applies env overrides and defaults, and validates the result.
func LoadFile(path, env string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	cfg.AppEnv = env

	return cfg, v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Watch re-reads the config file on change and hands every valid revision to
// onChange. Invalid revisions are logged and ignored.
func Watch(v *viper.Viper, log *slog.Logger, onChange func(*Config)) {
	if log == nil {
		log = slog.Default()
	}
	v.OnConfigChange(func(ev fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			log.Error("ignoring invalid config revision", slog.String("file", ev.Name), slog.Any("error", err))
			return
		}
		log.Info("config reloaded", slog.String("file", ev.Name), slog.String("op", ev.Op.String()))
		onChange(cfg)
	})
	v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.file.enabled", false)
	v.SetDefault("logger.file.path", "logs/engine.log")
	v.SetDefault("logger.file.max_size_mb", 100)
	v.SetDefault("logger.file.max_backups", 5)
	v.SetDefault("logger.file.max_age_days", 14)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.traces_sample_rate", 0.0)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "tapcoin")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_chat_id", 0)
	v.SetDefault("telegram.language", "en")

	v.SetDefault("engine.foreground_cap", 60*time.Second)
	v.SetDefault("engine.sweep_cap", time.Hour)
	v.SetDefault("engine.booster_duration", time.Hour)
	v.SetDefault("engine.referral_percent", 10)
	v.SetDefault("engine.active_referral_window", 7*24*time.Hour)
	v.SetDefault("engine.expiry_warning_window", time.Hour)
	v.SetDefault("engine.min_promo_length", 5)
	v.SetDefault("engine.default_ban_reason", "Suspicious activity")
	v.SetDefault("engine.stats_interval", 15*time.Second)
	v.SetDefault("engine.ad_rewards", map[string]any{"standard": 50, "afk": 100})

	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.driver", "ticker")
	v.SetDefault("sweep.interval", 10*time.Second)
	v.SetDefault("sweep.workers", 8)
	v.SetDefault("sweep.lease_ttl", 30*time.Second)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.rules", map[string]any{
		"tap":   map[string]any{"limit": 20, "window": time.Second},
		"nudge": map[string]any{"limit": 1, "window": time.Hour},
		"ad":    map[string]any{"limit": 30, "window": time.Hour},
	})
	v.SetDefault("ratelimit.cleanup_interval", time.Minute)
	v.SetDefault("ratelimit.max_key_age", 2*time.Hour)

	v.SetDefault("catalog.path", "")

	v.SetDefault("payments.webhook_secret", "")
	v.SetDefault("payments.result_ttl", 7*24*time.Hour)
}
