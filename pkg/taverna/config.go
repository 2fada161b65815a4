package taverna

import (
	"fmt"
	"time"

	"github.com/bft-labs/taverna/pkg/monitor"
	"github.com/bft-labs/taverna/pkg/store"
)

// Default settings.
const (
	DefaultDatabaseURL       = "sqlite://data/taverna_bot.db"
	DefaultReadinessInterval = 500 * time.Millisecond
	DefaultShutdownTimeout   = 30 * time.Second
)

// Config holds the settings of a Bot.
type Config struct {
	// APIKey is the platform token. Boot fails without it.
	APIKey string

	// OwnerIDs lists the bot owners; the first is the primary owner.
	OwnerIDs []uint64

	// DatabaseURL selects the datastore: sqlite://path,
	// sqlite://:memory: or postgres://...
	// Default: sqlite://data/taverna_bot.db
	DatabaseURL string

	// GenerateSchemas creates or migrates the tables on connect.
	GenerateSchemas bool

	// Extensions lists the extension ids to load, in order.
	Extensions []string

	// Version is announced in the bot presence.
	Version string

	// MetricsAddr enables the health and metrics server when set.
	MetricsAddr string

	// ReadinessInterval between readiness checks.
	// Default: 500ms
	ReadinessInterval time.Duration

	// ReadinessTimeout bounds the readiness wait; zero waits forever.
	ReadinessTimeout time.Duration

	// ShutdownTimeout bounds the teardown.
	// Default: 30s
	ShutdownTimeout time.Duration

	Monitor monitor.Config
}

// DefaultConfig returns a Config with default values. APIKey must still
// be set.
func DefaultConfig() Config {
	return Config{
		DatabaseURL:       DefaultDatabaseURL,
		Extensions:        []string{"admin"},
		Version:           "dev",
		ReadinessInterval: DefaultReadinessInterval,
		ShutdownTimeout:   DefaultShutdownTimeout,
		Monitor:           monitor.DefaultConfig(),
	}
}

// SetDefaults fills zero fields with their defaults.
func (c *Config) SetDefaults() {
	def := DefaultConfig()
	if c.DatabaseURL == "" {
		c.DatabaseURL = def.DatabaseURL
	}
	if c.Version == "" {
		c.Version = def.Version
	}
	if c.ReadinessInterval <= 0 {
		c.ReadinessInterval = def.ReadinessInterval
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
}

// Validate checks the parts of the configuration New depends on. A missing
// APIKey is not an error here; the boot sequence reports it.
func (c *Config) Validate() error {
	if _, err := store.ParseURL(c.DatabaseURL); err != nil {
		return err
	}
	if c.ReadinessTimeout < 0 {
		return fmt.Errorf("readiness timeout must not be negative")
	}
	return nil
}
