// Package config loads the CLI front-end's deployment-tunable settings:
// the defaults cmd/dumpdirctl applies when a caller doesn't override them
// on the command line.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the knobs a deployment might want to override. The
// dumpdir core package itself has no configuration beyond its function
// arguments — this exists only for the CLI front-end.
type Config struct {
	// DefaultMode is the item file mode dumpdirctl create passes to Create
	// when --mode is not given; the directory mode is derived from it.
	DefaultMode uint32 `mapstructure:"default_mode"`

	// DefaultUID is the uid recorded on created items when the caller
	// doesn't specify one; -1 means "do not chown".
	DefaultUID int `mapstructure:"default_uid"`

	// LockPollInterval overrides how often a read-only consumer polls
	// Open while waiting on a held lock, for callers that want a tighter
	// loop than the library's built-in interval during interactive use.
	LockPollInterval time.Duration `mapstructure:"lock_poll_interval"`

	Logging Logging `mapstructure:"logging"`
}

// Logging controls the internal/logger.Logger the CLI front-end builds.
type Logging struct {
	Debug  bool   `mapstructure:"debug"`
	Format string `mapstructure:"format"`
}

// Validate checks the config for internally-consistent values, returning a
// descriptive error naming the offending field.
func (c *Config) Validate() error {
	if c.DefaultMode > 0o777 {
		return fmt.Errorf("config: invalid default_mode %#o: exceeds 0o777", c.DefaultMode)
	}
	if c.DefaultUID < -1 {
		return fmt.Errorf("config: invalid default_uid %d: must be -1 or non-negative", c.DefaultUID)
	}
	if c.LockPollInterval < 0 {
		return fmt.Errorf("config: invalid lock_poll_interval %s: must not be negative", c.LockPollInterval)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: invalid logging.format %q: must be \"text\" or \"json\"", c.Logging.Format)
	}
	return nil
}

// Default returns the built-in configuration applied before any file or
// environment override is read.
func Default() *Config {
	return &Config{
		DefaultMode:      0o640,
		DefaultUID:       -1,
		LockPollInterval: 500 * time.Millisecond,
		Logging:          Logging{Format: "text"},
	}
}

// Load reads configuration from path (if non-empty) and from environment
// variables prefixed DUMPDIRCTL_, layered over Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("DUMPDIRCTL")
	v.AutomaticEnv()
	v.SetDefault("default_mode", cfg.DefaultMode)
	v.SetDefault("default_uid", cfg.DefaultUID)
	v.SetDefault("lock_poll_interval", cfg.LockPollInterval)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.debug", cfg.Logging.Debug)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %q: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
