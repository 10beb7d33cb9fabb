// Package config defines the application configuration and its viper-backed
// loading. File and environment values feed everything except ScanConfig,
// which gets its marching orders from CLI flags.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Rules    RulesConfig    `mapstructure:"rules" yaml:"rules"`
	Target   TargetConfig   `mapstructure:"target" yaml:"target"`

	// Scan is populated from CLI flags, not the config file.
	Scan ScanConfig `mapstructure:"-" yaml:"-"`
}

// LoggerConfig configures the zap logger and its file rotation.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DatabaseConfig configures optional finding persistence. When Enabled is
// false the scan runs entirely in memory.
type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
}

// EngineConfig tunes the scan worker pool.
type EngineConfig struct {
	Workers     int           `mapstructure:"workers" yaml:"workers"`
	UnitTimeout time.Duration `mapstructure:"unit_timeout" yaml:"unit_timeout"`
}

// RulesConfig points at an optional extra catalogue merged over the built-in
// one.
type RulesConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// TargetConfig tunes how scan targets are materialized into file lists.
type TargetConfig struct {
	Exclude    []string `mapstructure:"exclude" yaml:"exclude"`
	CloneDepth int      `mapstructure:"clone_depth" yaml:"clone_depth"`
	// FilesPerSecond throttles the walk; zero disables the limiter.
	FilesPerSecond float64 `mapstructure:"files_per_second" yaml:"files_per_second"`
}

// ScanConfig carries the per-invocation parameters.
type ScanConfig struct {
	Targets    []string
	ScanID     string
	OutputPath string
	Format     string
}

// SetDefaults initializes default values for all file-backed parameters.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "taintscope")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.url", "")

	v.SetDefault("engine.workers", 8)
	v.SetDefault("engine.unit_timeout", "30s")

	v.SetDefault("rules.path", "")

	v.SetDefault("target.exclude", []string{"node_modules", ".git", "vendor", "__pycache__", "venv"})
	v.SetDefault("target.clone_depth", 1)
	v.SetDefault("target.files_per_second", 0.0)
}

// NewDefaultConfig creates a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the defaults above.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Load unmarshals and validates the configuration held by v. The caller is
// responsible for having pointed v at its config file and environment.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the scan cannot run with.
func (c *Config) Validate() error {
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("engine.workers must be a positive integer")
	}
	if c.Engine.UnitTimeout <= 0 {
		return fmt.Errorf("engine.unit_timeout must be positive")
	}
	if c.Target.CloneDepth < 0 {
		return fmt.Errorf("target.clone_depth must not be negative")
	}
	if c.Target.FilesPerSecond < 0 {
		return fmt.Errorf("target.files_per_second must not be negative")
	}
	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("database.url is required when database.enabled is set")
	}
	switch c.Scan.Format {
	case "", "text", "json", "sarif", "junit":
	default:
		return fmt.Errorf("unknown report format %q", c.Scan.Format)
	}
	return nil
}
