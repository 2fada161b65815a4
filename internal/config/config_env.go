package config

import (
	"fmt"
	"os"
)

// getenv returns the first non-empty variable among names.
func getenv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// ApplyEnvConfig applies configuration from environment variables.
// TAVERNA_* names take precedence over the bare API_KEY, OWNER_IDS and
// DATABASE_URL. It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("api-key", getenv("TAVERNA_API_KEY", "API_KEY"), &cfg.APIKey)
	s.setString("database-url", getenv("TAVERNA_DATABASE_URL", "DATABASE_URL"), &cfg.DatabaseURL)
	s.setString("log-level", getenv("TAVERNA_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("metrics-addr", getenv("TAVERNA_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setStrings("extensions", splitList(getenv("TAVERNA_EXTENSIONS")), &cfg.Extensions)
	s.setBoolFromString("generate-schemas", getenv("TAVERNA_GENERATE_SCHEMAS"), &cfg.GenerateSchemas)

	if err := s.setOwnerIDs("owner-ids", getenv("TAVERNA_OWNER_IDS", "OWNER_IDS"), &cfg.OwnerIDs); err != nil {
		return err
	}

	if err := s.setDuration("readiness-interval", getenv("TAVERNA_READINESS_INTERVAL"), &cfg.ReadinessInterval); err != nil {
		return err
	}
	if err := s.setDuration("readiness-timeout", getenv("TAVERNA_READINESS_TIMEOUT"), &cfg.ReadinessTimeout); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", getenv("TAVERNA_SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}
	if err := s.setDuration("monitor-interval", getenv("TAVERNA_MONITOR_INTERVAL"), &cfg.MonitorInterval); err != nil {
		return err
	}

	if err := s.setFloatFromString("rss-threshold", getenv("TAVERNA_RSS_THRESHOLD_MB"), &cfg.RSSThresholdMB); err != nil {
		return err
	}
	if err := s.setFloatFromString("vms-threshold", getenv("TAVERNA_VMS_THRESHOLD_MB"), &cfg.VMSThresholdMB); err != nil {
		return err
	}
	if err := s.setFloatFromString("cpu-threshold", getenv("TAVERNA_CPU_THRESHOLD"), &cfg.CPUThresholdPercent); err != nil {
		return err
	}

	return nil
}

// Load applies the file at path (when it exists) and then the
// environment on top of cfg, which already holds defaults and flag values.
func Load(cfg *Config, path string, changed map[string]bool) error {
	if path != "" && FileExists(path) {
		fc, err := LoadFileConfig(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}
	return ApplyEnvConfig(cfg, changed)
}
