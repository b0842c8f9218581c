// Package config loads sctrace settings from defaults, an optional YAML
// file, SCTRACE_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"sctrace/internal/bpfprog"
)

// EnvPrefix prefixes every environment variable read by sctrace.
const EnvPrefix = "SCTRACE"

// Config holds the runtime settings shared by every command.
type Config struct {
	LogLevel       string        `mapstructure:"log_level"`
	RingBufferSize uint32        `mapstructure:"ring_buffer_size"`
	PollTimeout    time.Duration `mapstructure:"poll_timeout"`
	Interval       time.Duration `mapstructure:"interval"`
	OutputDir      string        `mapstructure:"output_dir"`
	Save           bool          `mapstructure:"save"`
	ShowOutput     bool          `mapstructure:"show_output"`
	ShowErrors     bool          `mapstructure:"show_errors"`
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("ring_buffer_size", bpfprog.DefaultRingBufferSize)
	v.SetDefault("poll_timeout", 100*time.Millisecond)
	v.SetDefault("interval", time.Duration(0))
	v.SetDefault("output_dir", "output")
	v.SetDefault("save", false)
	v.SetDefault("show_output", false)
	v.SetDefault("show_errors", false)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile merges the YAML file at path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	var errs []error

	if !validLevels[c.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if err := bpfprog.ValidateRingSize(c.RingBufferSize); err != nil {
		errs = append(errs, fmt.Errorf("ring_buffer_size: %w", err))
	}
	if c.PollTimeout <= 0 {
		errs = append(errs, fmt.Errorf("poll_timeout must be positive, got %s", c.PollTimeout))
	}
	if c.Interval < 0 {
		errs = append(errs, fmt.Errorf("interval must not be negative, got %s", c.Interval))
	}
	if c.Save && c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir is required when save is enabled"))
	}

	return errors.Join(errs...)
}
