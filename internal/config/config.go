// Package config loads and validates relay configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mkurimoto/seminar-relay/internal/seminar"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Pipeline  PipelineConfig   `mapstructure:"pipeline"`
	HTTP      HTTPConfig       `mapstructure:"http"`
	DB        DBConfig         `mapstructure:"db"`
	SMTP      SMTPConfig       `mapstructure:"smtp"`
	Chat      ChatConfig       `mapstructure:"chat"`
	Scheduler SchedulerConfig  `mapstructure:"scheduler"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Sources   []seminar.Source `mapstructure:"sources"`
}

// PipelineConfig governs collection and gating behavior.
type PipelineConfig struct {
	Timezone         string `mapstructure:"timezone"`
	DedupWindowHours int    `mapstructure:"dedup_window_hours"`
	DryRun           bool   `mapstructure:"dry_run"`
}

// HTTPConfig configures the outbound readers.
type HTTPConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN                string `mapstructure:"dsn"`
	MaxConns           int    `mapstructure:"max_conns"`
	MinConns           int    `mapstructure:"min_conns"`
	MaxConnLifetimeMin int    `mapstructure:"max_conn_lifetime_minutes"`
}

// SMTPConfig configures the email channel.
type SMTPConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	From           string `mapstructure:"from"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ChatConfig configures the webhook chat channel.
type ChatConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// SchedulerConfig controls the daily trigger and its retry budget.
type SchedulerConfig struct {
	Cron              string `mapstructure:"cron"`
	RetryAttempts     int    `mapstructure:"retry_attempts"`
	RetryDelayMinutes int    `mapstructure:"retry_delay_minutes"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SEMINAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.timezone", "Asia/Tokyo")
	v.SetDefault("pipeline.dedup_window_hours", 24)
	v.SetDefault("pipeline.dry_run", false)
	v.SetDefault("http.user_agent", "seminar-relay/1.0")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.timeout_seconds", 30)
	v.SetDefault("chat.timeout_seconds", 15)
	v.SetDefault("scheduler.cron", "0 9 * * *")
	v.SetDefault("scheduler.retry_attempts", 1)
	v.SetDefault("scheduler.retry_delay_minutes", 30)
	v.SetDefault("logging.development", true)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if _, err := time.LoadLocation(c.Pipeline.Timezone); err != nil {
		return fmt.Errorf("pipeline.timezone %q is not a valid zone: %w", c.Pipeline.Timezone, err)
	}
	if c.Pipeline.DedupWindowHours <= 0 {
		return fmt.Errorf("pipeline.dedup_window_hours must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set")
	}
	if c.Scheduler.RetryAttempts < 0 {
		return fmt.Errorf("scheduler.retry_attempts must be >= 0")
	}
	for i, src := range c.Sources {
		if src.Region == "" {
			return fmt.Errorf("sources[%d].region must be set", i)
		}
		if src.URL == "" {
			return fmt.Errorf("sources[%d].url must be set", i)
		}
		if src.Kind != seminar.SourceKindFeed && src.Kind != seminar.SourceKindPage {
			return fmt.Errorf("sources[%d].kind %q must be feed or page", i, src.Kind)
		}
	}
	return nil
}

// Location resolves the configured timezone. Validate has already
// checked it, so resolution cannot fail after Load.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Pipeline.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DedupWindow converts the configured window into a duration.
func (c Config) DedupWindow() time.Duration {
	return time.Duration(c.Pipeline.DedupWindowHours) * time.Hour
}

// Regions returns the distinct regions across configured sources, in
// first-appearance order. The store seeds its region table from this.
func (c Config) Regions() []string {
	seen := make(map[string]bool, len(c.Sources))
	var out []string
	for _, src := range c.Sources {
		if !seen[src.Region] {
			seen[src.Region] = true
			out = append(out, src.Region)
		}
	}
	return out
}
