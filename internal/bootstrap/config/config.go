package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"faultline/internal/bootstrap/logging"
	"faultline/internal/errs"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Messaging MessagingConfig `mapstructure:"messaging"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type CacheConfig struct {
	// Driver selects the block-cache backend: memory (default) or sqlite.
	Driver string `mapstructure:"driver"`
}

type IngestConfig struct {
	BatchSize         int           `mapstructure:"batch_size"`
	FlushInterval     time.Duration `mapstructure:"flush_interval"`
	BlockCacheTTL     time.Duration `mapstructure:"block_cache_ttl"`
	RetryAfter        time.Duration `mapstructure:"retry_after"`
	MaintenanceFreeze bool          `mapstructure:"maintenance_freeze"`
}

type MessagingConfig struct {
	// NATSURL enables the persisted-issue handoff when non-empty.
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if cfg.Database.DSN == "" {
		return Config{}, errors.New("database.dsn is required")
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("server_addr", cfg.Server.Addr),
		slog.String("database_driver", cfg.Database.Driver),
		slog.Bool("maintenance_freeze", cfg.Ingest.MaintenanceFreeze),
	)

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "faultline")
	v.SetDefault("app.env", "local")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/faultline.sqlite")
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("ingest.batch_size", 100)
	v.SetDefault("ingest.flush_interval", "2s")
	v.SetDefault("ingest.block_cache_ttl", "30s")
	v.SetDefault("ingest.retry_after", "30s")
	v.SetDefault("ingest.maintenance_freeze", false)
	v.SetDefault("messaging.nats_url", "")
	v.SetDefault("messaging.subject", "faultline.issues.persisted")
}
