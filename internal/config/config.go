package config

import (
	"fmt"

	"github.com/hydrowatch/hydrowatch-backend/internal/models"
	"github.com/spf13/viper"
)

type Config struct {
	Port           int      `mapstructure:"port"`
	DatabasePath   string   `mapstructure:"database_path"` // empty disables the history archive
	LogLevel       string   `mapstructure:"log_level"`
	LogFormat      string   `mapstructure:"log_format"` // json or text
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// Analytics tunables.
	BufferCapacity     int    `mapstructure:"buffer_capacity"`      // readings per device ring buffer
	TrendWindow        int    `mapstructure:"trend_window"`         // samples per trend regression
	VarietyProfilePath string `mapstructure:"variety_profile_path"` // YAML variety ranges; empty = generic defaults
	DefaultVariety     string `mapstructure:"default_variety"`
	DefaultStage       string `mapstructure:"default_stage"`

	// Alerting tunables.
	EscalationLevels     []models.LevelPolicy `mapstructure:"escalation_levels"` // empty = built-in table
	ResolutionHistoryMax int                  `mapstructure:"resolution_history_max"`
	Rules                []models.AlertRule   `mapstructure:"rules"` // empty = built-in rule set

	// Server tunables.
	IngestRatePerSec   float64 `mapstructure:"ingest_rate_per_sec"` // token bucket per device; 0 = no limit
	IngestBurst        int     `mapstructure:"ingest_burst"`
	RequestTimeoutSec  int     `mapstructure:"request_timeout_sec"`
	ShutdownTimeoutSec int     `mapstructure:"shutdown_timeout_sec"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/hydrowatch/")
	viper.AddConfigPath("$HOME/.hydrowatch")
	viper.AddConfigPath(".")

	// Defaults
	viper.SetDefault("port", 8080)
	viper.SetDefault("database_path", "./hydrowatch.db")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("allowed_origins", []string{"*"})
	viper.SetDefault("buffer_capacity", 900) // ~30 min at the 2s sampling interval
	viper.SetDefault("trend_window", 60)
	viper.SetDefault("variety_profile_path", "")
	viper.SetDefault("default_variety", "")
	viper.SetDefault("default_stage", "")
	viper.SetDefault("resolution_history_max", 100)
	viper.SetDefault("ingest_rate_per_sec", 0) // 0 = disabled
	viper.SetDefault("ingest_burst", 0)
	viper.SetDefault("request_timeout_sec", 30)
	viper.SetDefault("shutdown_timeout_sec", 15)

	// Environment variables
	viper.SetEnvPrefix("HYDROWATCH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
