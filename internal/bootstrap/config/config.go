package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"celiaquia/internal/bootstrap/logging"
	"celiaquia/internal/errs"
)

// MaxExternalTimeout bounds RENAPER and SINTYS calls.
const MaxExternalTimeout = 6 * time.Minute

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Cupo     CupoConfig     `mapstructure:"cupo"`
	Renaper  RegistryConfig `mapstructure:"renaper"`
	Sintys   RegistryConfig `mapstructure:"sintys"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type CupoConfig struct {
	DefaultSize   int   `mapstructure:"default_size"`
	MontoUnitario int64 `mapstructure:"monto_unitario"`
}

type RegistryConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

type StorageConfig struct {
	Root          string `mapstructure:"root"`
	PurgeReplaced bool   `mapstructure:"purge_replaced"`
}

type WorkerConfig struct {
	BatchSize   int           `mapstructure:"batch_size"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
	Interval    time.Duration `mapstructure:"interval"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
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

	v.SetEnvPrefix("CQ")
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

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.Int("cupo_default_size", cfg.Cupo.DefaultSize),
		slog.Bool("renaper_configured", cfg.Renaper.BaseURL != ""),
		slog.Bool("sintys_configured", cfg.Sintys.BaseURL != ""),
	)

	return cfg, nil
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if c.Cupo.DefaultSize < 0 {
		return errors.New("cupo.default_size must not be negative")
	}
	if strings.TrimSpace(c.Storage.Root) == "" {
		return errors.New("storage.root is required")
	}

	for _, rc := range []*RegistryConfig{&c.Renaper, &c.Sintys} {
		if rc.Timeout <= 0 || rc.Timeout > MaxExternalTimeout {
			rc.Timeout = MaxExternalTimeout
		}
		if rc.Concurrency <= 0 {
			rc.Concurrency = 1
		}
	}
	if c.Worker.BatchSize <= 0 {
		c.Worker.BatchSize = 50
	}
	if c.Worker.MaxAttempts <= 0 {
		c.Worker.MaxAttempts = 10
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "celiaquia")
	v.SetDefault("app.env", "local")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "var/celiaquia.sqlite")
	v.SetDefault("cupo.default_size", 0)
	v.SetDefault("cupo.monto_unitario", 0)
	v.SetDefault("renaper.timeout", "30s")
	v.SetDefault("renaper.concurrency", 4)
	v.SetDefault("renaper.cache_ttl", "24h")
	v.SetDefault("sintys.timeout", "2m")
	v.SetDefault("storage.root", "var/documentos")
	v.SetDefault("storage.purge_replaced", false)
	v.SetDefault("worker.batch_size", 50)
	v.SetDefault("worker.max_attempts", 10)
	v.SetDefault("worker.backoff", "30s")
	v.SetDefault("worker.interval", "15s")
	v.SetDefault("metrics.addr", "")
}
