// Package config loads the engine configuration. The engine itself holds
// no global state; these settings are passed explicitly into engine
// calls by the command layer.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/nsightlabs/spendintel/internal/model"
)

// Config holds all spendintel configuration.
type Config struct {
	Training TrainingConfig `toml:"training"`
	Forecast ForecastConfig `toml:"forecast"`
	Anomaly  AnomalyConfig  `toml:"anomaly"`
	Registry RegistryConfig `toml:"registry"`
}

// TrainingConfig bounds categorization training.
type TrainingConfig struct {
	MinSamples      int `toml:"min_samples"`
	MinClassSamples int `toml:"min_class_samples"`
	CVFolds         int `toml:"cv_folds"`
}

// ForecastConfig holds forecasting settings. Horizon counts monthly
// buckets; the default of 3 covers 90 days.
type ForecastConfig struct {
	HorizonBuckets int `toml:"horizon_buckets"`
	MinBuckets     int `toml:"min_buckets"`
}

// AnomalyConfig holds detector settings.
type AnomalyConfig struct {
	Trees     int     `toml:"trees"`
	Subsample int     `toml:"subsample"`
	Seed      int64   `toml:"seed"`
	Threshold float64 `toml:"threshold"`
}

// RegistryConfig holds the artifact store location.
type RegistryConfig struct {
	Path string `toml:"path,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Training: TrainingConfig{
			MinSamples:      30,
			MinClassSamples: 5,
			CVFolds:         5,
		},
		Forecast: ForecastConfig{
			HorizonBuckets: 3,
			MinBuckets:     3,
		},
		Anomaly: AnomalyConfig{
			Trees:     100,
			Subsample: 256,
			Seed:      42,
			Threshold: 0.3,
		},
	}
}

// SupportedCurrencies returns the enumerated currency set records are
// validated against.
func SupportedCurrencies() []model.Currency {
	return model.Currencies()
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "spendintel")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "spendintel")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// RegistryPath returns the configured registry database path, defaulting
// to the config directory.
func (c Config) RegistryPath() string {
	if c.Registry.Path != "" {
		return c.Registry.Path
	}
	return filepath.Join(ConfigDir(), "registry.db")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads a config file from an explicit path.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}
