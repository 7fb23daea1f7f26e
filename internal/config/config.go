package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"lending-regime-advisor/internal/model"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	Source    SourceConfig    `yaml:"source"`
	Model     model.Params    `yaml:"model"`
	State     StateConfig     `yaml:"state"`
	Timescale TimescaleConfig `yaml:"timescale"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Server    ServerConfig    `yaml:"server"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Attest    AttestConfig    `yaml:"attest"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SourceConfig struct {
	URL             string        `yaml:"url"`
	Timeout         time.Duration `yaml:"timeout"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	RatePerMinute   int           `yaml:"rate_per_minute"`
	Stablecoins     []string      `yaml:"stablecoins"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

func (m MetricsConfig) EnabledValue() bool {
	return m.Enabled == nil || *m.Enabled
}

type ServerConfig struct {
	Address string `yaml:"address"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

const defaultMinConfidence = 0.5

type AttestConfig struct {
	MinConfidence float64       `yaml:"min_confidence"`
	MaxAge        time.Duration `yaml:"max_age"`
	PrivateKey    string        `yaml:"private_key"`
}

// Default returns a configuration with every default applied. Model
// parameters start from model.DefaultParams so a file may set any of them,
// including to zero.
func Default() *Config {
	cfg := base()
	applyDefaults(cfg)
	return cfg
}

// base holds the defaults for keys where an explicit zero is meaningful. YAML
// is decoded on top of it, so omitted keys keep these values.
func base() *Config {
	return &Config{
		Model:  model.DefaultParams(),
		Attest: AttestConfig{MinConfidence: defaultMinConfidence},
	}
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := base()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, validate(cfg)
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("METRICS_API")); v != "" && cfg.Source.URL == "" {
		cfg.Source.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")); v != "" {
		cfg.Telegram.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := strings.TrimSpace(os.Getenv("TIMESCALE_DSN")); v != "" {
		cfg.Timescale.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("ATTEST_PRIVATE_KEY")); v != "" {
		cfg.Attest.PrivateKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Source.Timeout == 0 {
		cfg.Source.Timeout = 15 * time.Second
	}
	if cfg.Source.PollInterval == 0 {
		cfg.Source.PollInterval = 5 * time.Minute
	}
	if len(cfg.Source.Stablecoins) == 0 {
		cfg.Source.Stablecoins = []string{"usdt", "usdc"}
	}
	if cfg.Source.BreakerFailures > 0 && cfg.Source.BreakerCooldown == 0 {
		cfg.Source.BreakerCooldown = time.Minute
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/advisor.db"
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
	if cfg.Timescale.QueueSize == 0 {
		cfg.Timescale.QueueSize = 256
	}
	if cfg.Metrics.Enabled == nil {
		enabled := true
		cfg.Metrics.Enabled = &enabled
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = "127.0.0.1:8080"
	}
	if cfg.Attest.MaxAge == 0 {
		cfg.Attest.MaxAge = 2 * cfg.Source.PollInterval
	}
}

func validate(cfg *Config) error {
	if err := cfg.Model.Validate(); err != nil {
		return err
	}
	if cfg.Source.Timeout < 0 {
		return errors.New("source.timeout must be >= 0")
	}
	if cfg.Source.PollInterval < 0 {
		return errors.New("source.poll_interval must be >= 0")
	}
	if cfg.Source.RatePerMinute < 0 {
		return errors.New("source.rate_per_minute must be >= 0")
	}
	if cfg.Attest.MinConfidence < 0 || cfg.Attest.MinConfidence > 1 {
		return errors.New("attest.min_confidence must be within [0, 1]")
	}
	if cfg.Timescale.Enabled && strings.TrimSpace(cfg.Timescale.DSN) == "" {
		return errors.New("timescale.dsn is required when timescale is enabled")
	}
	if cfg.Telegram.Enabled && (strings.TrimSpace(cfg.Telegram.Token) == "" || strings.TrimSpace(cfg.Telegram.ChatID) == "") {
		return errors.New("telegram.token and telegram.chat_id are required when telegram is enabled")
	}
	return nil
}
