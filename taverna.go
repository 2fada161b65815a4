// Package taverna runs an extension-based Discord bot.
//
// Example usage:
//
//	cfg := taverna.DefaultConfig()
//	cfg.APIKey = "your-bot-token"
//	if err := taverna.Run(context.Background(), cfg); err != nil {
//	    log.Fatal(err)
//	}
package taverna

import (
	"context"

	"github.com/bft-labs/taverna/pkg/taverna"
)

// Config holds the bot configuration.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = taverna.Config

// DefaultConfig returns a Config with sensible default values.
// APIKey must be set before calling Run.
func DefaultConfig() Config {
	return taverna.DefaultConfig()
}

// Run assembles a bot with a no-op logger and blocks until it shuts down.
// Use pkg/taverna directly to pass options.
func Run(ctx context.Context, cfg Config) error {
	b, err := taverna.New(cfg)
	if err != nil {
		return err
	}
	return b.Run(ctx)
}
