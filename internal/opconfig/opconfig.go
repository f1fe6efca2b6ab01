// Package opconfig loads and persists Operon's general run configuration,
// stored at <repo>/.operon/config.yaml, with environment overrides for the
// two flags most often toggled from a shell.
package opconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Limits bounds a single phase-machine run.
type Limits struct {
	MaxSteps               int `yaml:"max_steps"`
	NoOpStreakMax           int `yaml:"no_op_streak_max"`
	RejectThreshold         int `yaml:"reject_threshold"`
	ApprovalTimeoutSeconds  int `yaml:"approval_timeout_seconds"`
}

// Config is the full persisted document.
type Config struct {
	Headless bool   `yaml:"headless"`
	Debug    bool   `yaml:"debug"`
	Limits   Limits `yaml:"limits"`
}

// Default returns Operon's out-of-the-box configuration.
func Default() *Config {
	return &Config{
		Headless: false,
		Debug:    false,
		Limits: Limits{
			MaxSteps:              35,
			NoOpStreakMax:         2,
			RejectThreshold:       3,
			ApprovalTimeoutSeconds: 300,
		},
	}
}

func path(repoRoot string) string {
	return filepath.Join(repoRoot, ".operon", "config.yaml")
}

// Load reads <repo>/.operon/config.yaml, falling back to Default() if it
// does not exist; a file that fails to parse is returned as an error.
// OPERON_HEADLESS and OPERON_DEBUG, when
// set to a value parseable by strconv.ParseBool, override the loaded fields.
func Load(repoRoot string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path(repoRoot))
	if err == nil {
		if yerr := yaml.Unmarshal(data, cfg); yerr != nil {
			return nil, fmt.Errorf("parse config.yaml: %w", yerr)
		}
	}

	if v, ok := boolEnv("OPERON_HEADLESS"); ok {
		cfg.Headless = v
	}
	if v, ok := boolEnv("OPERON_DEBUG"); ok {
		cfg.Debug = v
	}

	if cfg.Limits.MaxSteps <= 0 {
		cfg.Limits.MaxSteps = Default().Limits.MaxSteps
	}
	if cfg.Limits.ApprovalTimeoutSeconds <= 0 {
		cfg.Limits.ApprovalTimeoutSeconds = Default().Limits.ApprovalTimeoutSeconds
	}
	if cfg.Limits.RejectThreshold <= 0 {
		cfg.Limits.RejectThreshold = Default().Limits.RejectThreshold
	}
	if cfg.Limits.NoOpStreakMax <= 0 {
		cfg.Limits.NoOpStreakMax = Default().Limits.NoOpStreakMax
	}

	return cfg, nil
}

func boolEnv(name string) (bool, bool) {
	raw, set := os.LookupEnv(name)
	if !set {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// Save atomically writes cfg to <repo>/.operon/config.yaml.
func Save(repoRoot string, cfg *Config) error {
	dir := filepath.Join(repoRoot, ".operon")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create .operon dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	target := path(repoRoot)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp config: %w", err)
	}
	return nil
}
