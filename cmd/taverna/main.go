package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/taverna/internal/config"
	"github.com/bft-labs/taverna/pkg/log"
	"github.com/bft-labs/taverna/pkg/monitor"
	"github.com/bft-labs/taverna/pkg/taverna"
)

const helpDescription = `
Run a Discord bot whose features live in extensions.

Highlights:
  - Loads the configured extensions and waits until each reports ready.
  - Keeps guilds, log channels and command permissions in SQLite or Postgres.
  - Gates privileged commands on roles and audits them to a log channel.
  - Warns when the process exceeds its memory or CPU limits.

Configure via file ($HOME/.taverna/config.toml), environment (API_KEY,
DATABASE_URL, TAVERNA_*) or flags. Flags win over the environment, which
wins over the file.
`

var longHelp = strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  taverna --api-key <token>
  taverna --config $HOME/.taverna/config.toml --metrics-addr :9090
  API_KEY=<token> DATABASE_URL=postgres://bot@localhost/bot taverna --generate-schemas
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := config.DefaultConfig()
	var (
		cfgPath  string
		ownerIDs string
	)

	root := &cobra.Command{
		Use:           "taverna",
		Short:         "Run the extension-based Discord bot",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = config.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if changed["owner-ids"] {
				ids, err := config.ParseOwnerIDs(ownerIDs)
				if err != nil {
					return err
				}
				cfg.OwnerIDs = ids
			}

			// Reloads start again from defaults plus flags.
			base := cfg

			if err := config.Load(&cfg, cfgFile, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := log.NewZerologAdapter(cfg.LogLevel)

			logCfg := cfg
			if len(logCfg.APIKey) > 0 {
				logCfg.APIKey = "*****"
			}
			logger.Info("configuration", log.Any("config", logCfg))

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			b, err := taverna.New(libConfig(cfg), taverna.WithLogger(logger), taverna.WithRegistry(reg))
			if err != nil {
				return fmt.Errorf("create bot: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if cfgFile != "" && config.FileExists(cfgFile) {
				watcher := config.NewWatcher(cfgFile, base, changed, func(c config.Config) {
					logger.SetLevel(c.LogLevel)
					if err := b.SetThresholds(c.Thresholds()); err != nil {
						logger.Warn("thresholds not applied", log.Err(err))
					}
				}, logger.With(log.String("component", "config")))
				if err := watcher.Start(ctx); err != nil {
					logger.Warn("config watcher disabled", log.Err(err))
				} else {
					defer watcher.Stop()
				}
			}

			if err := b.Run(ctx); err != nil {
				return fmt.Errorf("run bot: %w", err)
			}
			return nil
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.taverna/config.toml)")
	root.Flags().StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "Discord bot token")
	root.Flags().StringVar(&ownerIDs, "owner-ids", "", "comma-separated bot owner user ids; the first is the primary owner")

	root.Flags().StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "datastore URL (sqlite://path, sqlite://:memory: or postgres://...)")
	root.Flags().BoolVar(&cfg.GenerateSchemas, "generate-schemas", cfg.GenerateSchemas, "create or migrate tables on connect")
	root.Flags().StringSliceVar(&cfg.Extensions, "extensions", cfg.Extensions, "extension ids to load, in order")

	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "listen address for health and metrics endpoints (disabled when empty)")

	root.Flags().DurationVar(&cfg.ReadinessInterval, "readiness-interval", cfg.ReadinessInterval, "interval between extension readiness checks")
	root.Flags().DurationVar(&cfg.ReadinessTimeout, "readiness-timeout", cfg.ReadinessTimeout, "give up waiting for extensions after this long (0 waits forever)")
	root.Flags().DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "maximum time for graceful shutdown")

	root.Flags().DurationVar(&cfg.MonitorInterval, "monitor-interval", cfg.MonitorInterval, "resource sampling interval")
	root.Flags().Float64Var(&cfg.RSSThresholdMB, "rss-threshold", cfg.RSSThresholdMB, "resident memory warning threshold in MB")
	root.Flags().Float64Var(&cfg.VMSThresholdMB, "vms-threshold", cfg.VMSThresholdMB, "virtual memory warning threshold in MB")
	root.Flags().Float64Var(&cfg.CPUThresholdPercent, "cpu-threshold", cfg.CPUThresholdPercent, "CPU usage warning threshold in percent")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "taverna:", err)
		os.Exit(1)
	}
}

func libConfig(cfg config.Config) taverna.Config {
	return taverna.Config{
		APIKey:            cfg.APIKey,
		OwnerIDs:          cfg.OwnerIDs,
		DatabaseURL:       cfg.DatabaseURL,
		GenerateSchemas:   cfg.GenerateSchemas,
		Extensions:        cfg.Extensions,
		Version:           getVersion(),
		MetricsAddr:       cfg.MetricsAddr,
		ReadinessInterval: cfg.ReadinessInterval,
		ReadinessTimeout:  cfg.ReadinessTimeout,
		ShutdownTimeout:   cfg.ShutdownTimeout,
		Monitor: monitor.Config{
			Interval:   cfg.MonitorInterval,
			Thresholds: cfg.Thresholds(),
		},
	}
}
