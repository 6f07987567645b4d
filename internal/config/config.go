// Package config loads tool settings from a YAML file, a .env file and
// MOMENTUM_LAB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/sweep"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "MOMENTUM_LAB"

// ErrInvalid wraps every settings validation failure.
var ErrInvalid = errors.New("invalid settings")

// Config holds the settings shared by the command-line tools.
type Config struct {
	// Inputs
	PricesPath string `mapstructure:"prices"`
	LotsPath   string `mapstructure:"lots"`

	// Sweep
	Samples int    `mapstructure:"samples"`
	Seed    int64  `mapstructure:"seed"`
	Workers int    `mapstructure:"workers"` // 0 = one per CPU
	RankBy  string `mapstructure:"rank_by"`
	Top     int    `mapstructure:"top"` // report rows; 0 = all

	// Output
	OutputDir string `mapstructure:"output_dir"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // console | json

	// Optional infrastructure; empty disables
	MetricsAddr   string `mapstructure:"metrics_addr"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`

	// Parameter space; DefaultRules when the file has no rules section
	Rules sweep.Rules `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("prices", "data/prices.csv")
	v.SetDefault("lots", "data/lot_sizes.csv")
	v.SetDefault("samples", 1000)
	v.SetDefault("seed", 1)
	v.SetDefault("workers", 0)
	v.SetDefault("rank_by", "final_profit_rate")
	v.SetDefault("top", 50)
	v.SetDefault("output_dir", "output")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("clickhouse_dsn", "")
}

// Load reads settings. path may be empty, in which case only defaults,
// .env and the environment apply. A missing .env is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Rules = sweep.DefaultRules()
	if v.IsSet("rules") {
		var rules sweep.Rules
		if err := v.UnmarshalKey("rules", &rules); err != nil {
			return nil, fmt.Errorf("decode rules: %w", err)
		}
		if rules.Side == "" {
			rules.Side = domain.SideLong
		}
		if rules.InitialBalance == 0 {
			rules.InitialBalance = cfg.Rules.InitialBalance
		}
		cfg.Rules = rules
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the sweep settings and the parameter space.
func (c *Config) Validate() error {
	if c.Samples <= 0 {
		return fmt.Errorf("%w: samples %d must be > 0", ErrInvalid, c.Samples)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers %d must be >= 0", ErrInvalid, c.Workers)
	}
	if c.Top < 0 {
		return fmt.Errorf("%w: top %d must be >= 0", ErrInvalid, c.Top)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalid, c.LogFormat)
	}
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("%w: rules: %w", ErrInvalid, err)
	}
	return nil
}
