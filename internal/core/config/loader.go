package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/dnguyenv/conductor/internal/core/domain"
	"github.com/dnguyenv/conductor/internal/pipeline/runner"
)

// Load reads configuration from a YAML file, expanding environment
// variables before unmarshaling.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Pipeline.CheckpointDir == "" {
		cfg.Pipeline.CheckpointDir = "checkpoints"
	}

	def := runner.DefaultConfig()
	if cfg.Pipeline.Runner.Timeout == 0 {
		cfg.Pipeline.Runner.Timeout = def.Timeout
	}
	if cfg.Pipeline.Runner.Breaker.FailureThreshold == 0 {
		cfg.Pipeline.Runner.Breaker.FailureThreshold = def.Breaker.FailureThreshold
	}
	if cfg.Pipeline.Runner.Breaker.Cooldown == 0 {
		cfg.Pipeline.Runner.Breaker.Cooldown = def.Breaker.Cooldown
	}
	if cfg.Pipeline.Backfill.Workers == 0 {
		cfg.Pipeline.Backfill.Workers = 1
	}
}

func validate(cfg *AppConfig) error {
	for _, chain := range cfg.Datasets {
		if chain.Dataset == "" {
			return fmt.Errorf("dataset with empty name in config")
		}
		if len(chain.Sources) == 0 {
			return fmt.Errorf("dataset %s has no sources", chain.Dataset)
		}
		if chain.OnExhausted == "" {
			continue // defaults to fail at resolution time
		}
		if !chain.OnExhausted.Valid() {
			return fmt.Errorf("dataset %s: unknown terminal policy %q", chain.Dataset, chain.OnExhausted)
		}
		if chain.OnExhausted == domain.PolicyContinueWithout && (chain.Penalty < 0 || chain.Penalty > 1) {
			return fmt.Errorf("dataset %s: penalty must be in [0, 1]", chain.Dataset)
		}
	}
	return nil
}
