package config

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	APIKey              string   `toml:"api_key"`
	OwnerIDs            []uint64 `toml:"owner_ids"`
	DatabaseURL         string   `toml:"database_url"`
	GenerateSchemas     *bool    `toml:"generate_schemas"`
	Extensions          []string `toml:"extensions"`
	LogLevel            string   `toml:"log_level"`
	MetricsAddr         string   `toml:"metrics_addr"`
	ReadinessInterval   string   `toml:"readiness_interval"`
	ReadinessTimeout    string   `toml:"readiness_timeout"`
	ShutdownTimeout     string   `toml:"shutdown_timeout"`
	MonitorInterval     string   `toml:"monitor_interval"`
	RSSThresholdMB      float64  `toml:"rss_threshold_mb"`
	VMSThresholdMB      float64  `toml:"vms_threshold_mb"`
	CPUThresholdPercent float64  `toml:"cpu_threshold_percent"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.taverna/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".taverna", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("api-key", fc.APIKey, &cfg.APIKey)
	s.setString("database-url", fc.DatabaseURL, &cfg.DatabaseURL)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setStrings("extensions", fc.Extensions, &cfg.Extensions)
	s.setBool("generate-schemas", fc.GenerateSchemas, &cfg.GenerateSchemas)

	if len(fc.OwnerIDs) > 0 && !changed["owner-ids"] {
		cfg.OwnerIDs = fc.OwnerIDs
	}

	if err := s.setDuration("readiness-interval", fc.ReadinessInterval, &cfg.ReadinessInterval); err != nil {
		return err
	}
	if err := s.setDuration("readiness-timeout", fc.ReadinessTimeout, &cfg.ReadinessTimeout); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}
	if err := s.setDuration("monitor-interval", fc.MonitorInterval, &cfg.MonitorInterval); err != nil {
		return err
	}

	s.setFloat("rss-threshold", fc.RSSThresholdMB, &cfg.RSSThresholdMB)
	s.setFloat("vms-threshold", fc.VMSThresholdMB, &cfg.VMSThresholdMB)
	s.setFloat("cpu-threshold", fc.CPUThresholdPercent, &cfg.CPUThresholdPercent)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
