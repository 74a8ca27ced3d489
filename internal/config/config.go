// Package config provides configuration loading and management.
//
// Values resolve with precedence flag > environment > config file > default.
// Environment variables use the WF2WF_ prefix (WF2WF_NO_PROMPT,
// WF2WF_DRYRUN_TIMEOUT, WF2WF_FAIL_ON_LOSS).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the wf2wf CLI configuration.
type Config struct {
	// NoPrompt forces headless mode: every prompt resolves to its documented
	// default without blocking. Env: WF2WF_NO_PROMPT.
	NoPrompt bool `mapstructure:"no_prompt"`

	// DryRunTimeout bounds the snakemake dry-run enrichment subprocess.
	// Env: WF2WF_DRYRUN_TIMEOUT (seconds).
	DryRunTimeout time.Duration `mapstructure:"dryrun_timeout"`

	// FailOnLoss aborts a conversion with a non-zero exit when any lost or
	// lost_again entry has severity >= this threshold ("", "info", "warn",
	// "error"). Empty disables the policy. Env: WF2WF_FAIL_ON_LOSS.
	FailOnLoss string `mapstructure:"fail_on_loss"`
}

// DefaultConfig returns a Config with all default values populated.
func DefaultConfig() *Config {
	return &Config{
		NoPrompt:      false,
		DryRunTimeout: 300 * time.Second,
		FailOnLoss:    "",
	}
}

// LoaderOptions contains options for loading configuration.
type LoaderOptions struct {
	// ConfigFlag is the --config flag value. Empty means the default
	// location (~/.wf2wf/config.yaml), which may be absent.
	ConfigFlag string
}

// Load reads configuration from file and environment.
// A missing default config file is not an error; a missing explicit
// --config file is.
func Load(opts LoaderOptions) (*Config, error) {
	v := viper.New()

	v.SetDefault("no_prompt", false)
	v.SetDefault("dryrun_timeout", 300)
	v.SetDefault("fail_on_loss", "")

	v.SetEnvPrefix("WF2WF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := opts.ConfigFlag != ""
	if explicit {
		v.SetConfigFile(opts.ConfigFlag)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".wf2wf"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errorsAs(err, &notFound) {
			if explicit {
				return nil, fmt.Errorf("reading config %s: %w", opts.ConfigFlag, err)
			}
			// Default location: tolerate absence, surface parse failures.
			if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	cfg := DefaultConfig()
	cfg.NoPrompt = v.GetBool("no_prompt")
	cfg.DryRunTimeout = time.Duration(v.GetInt("dryrun_timeout")) * time.Second
	cfg.FailOnLoss = v.GetString("fail_on_loss")

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.FailOnLoss {
	case "", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid fail_on_loss %q: use info, warn, or error", cfg.FailOnLoss)
	}
	if cfg.DryRunTimeout <= 0 {
		return fmt.Errorf("dryrun_timeout must be positive")
	}
	return nil
}

// errorsAs is a tiny indirection so Load reads linearly.
func errorsAs(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}
