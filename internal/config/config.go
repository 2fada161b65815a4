// Package config loads the bot configuration.
//
// Precedence, lowest to highest: DefaultConfig, the TOML file, environment
// variables, then command-line flags the user explicitly set.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/taverna/pkg/monitor"
	"github.com/bft-labs/taverna/pkg/store"
)

// ErrMissingCredential is returned by Validate when no API key is set.
var ErrMissingCredential = errors.New("config: API_KEY is required")

// DefaultDatabaseURL is used when DATABASE_URL is unset.
const DefaultDatabaseURL = "sqlite://data/taverna_bot.db"

// Config holds the bot configuration.
type Config struct {
	APIKey   string
	OwnerIDs []uint64

	DatabaseURL     string
	GenerateSchemas bool

	// Extensions lists the extension ids to load, in order.
	Extensions []string

	LogLevel    string
	MetricsAddr string

	ReadinessInterval time.Duration
	ReadinessTimeout  time.Duration
	ShutdownTimeout   time.Duration

	MonitorInterval     time.Duration
	RSSThresholdMB      float64
	VMSThresholdMB      float64
	CPUThresholdPercent float64
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		DatabaseURL:         DefaultDatabaseURL,
		Extensions:          []string{"admin"},
		LogLevel:            "info",
		ReadinessInterval:   500 * time.Millisecond,
		ShutdownTimeout:     30 * time.Second,
		MonitorInterval:     monitor.DefaultInterval,
		RSSThresholdMB:      monitor.DefaultRSSMB,
		VMSThresholdMB:      monitor.DefaultVMSMB,
		CPUThresholdPercent: monitor.DefaultCPUPercent,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingCredential
	}
	if _, err := store.ParseURL(c.DatabaseURL); err != nil {
		return err
	}
	if c.ReadinessInterval <= 0 {
		return fmt.Errorf("readiness interval must be positive")
	}
	if c.ReadinessTimeout < 0 {
		return fmt.Errorf("readiness timeout must not be negative")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("monitor interval must be positive")
	}
	if err := c.Thresholds().Validate(); err != nil {
		return err
	}
	return nil
}

// OwnerID returns the bot owner, the first configured owner id.
func (c *Config) OwnerID() (uint64, bool) {
	if len(c.OwnerIDs) == 0 {
		return 0, false
	}
	return c.OwnerIDs[0], true
}

// Thresholds returns the resource monitor limits.
func (c *Config) Thresholds() monitor.Thresholds {
	return monitor.Thresholds{
		RSSMB:      c.RSSThresholdMB,
		VMSMB:      c.VMSThresholdMB,
		CPUPercent: c.CPUThresholdPercent,
	}
}

// ParseOwnerIDs parses a comma-separated list of ids. Empty entries are
// skipped; anything else that is not an integer is an error.
func ParseOwnerIDs(s string) ([]uint64, error) {
	var ids []uint64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse owner id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a list if not empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// setOwnerIDs parses and sets owner ids if not empty and flag not changed.
func (s *configSetter) setOwnerIDs(flag, value string, dst *[]uint64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	ids, err := ParseOwnerIDs(value)
	if err != nil {
		return err
	}
	*dst = ids
	return nil
}
