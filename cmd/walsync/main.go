package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/tern-labs/walsync"
	"github.com/tern-labs/walsync/internal/agent"
)

const helpDescription = `
Keep a WAL-mode SQLite database in sync with a remote store.

walsync watches the database's write-ahead log, refreshes the WAL index
header before every decision (a connection that never reads would
otherwise compare a stale frame count against the durable marker and
push nothing), and ships new frames as they are committed.
`

var exampleUsage = strings.TrimSpace(`
  walsync --db /var/lib/app/app.db --auth-key <api-key>
  walsync --config $HOME/.walsync/config.toml --once
  walsync repro
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := agent.DefaultConfig()
	var cfgPath string

	log := walsync.Logger()

	root := &cobra.Command{
		Use:     "walsync",
		Short:   "Keep a WAL-mode SQLite database in sync with a remote store",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = agent.DefaultConfigPath()
			}

			// Build set of changed flags; file and env never override
			// an explicitly set flag.
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && agent.FileExists(cfgFile) {
				fc, err := agent.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := agent.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}
			if err := agent.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			logCfg := cfg
			if len(logCfg.AuthKey) > 0 {
				logCfg.AuthKey = "*****"
			}
			log.Info().Interface("config", logCfg).Msg("configuration")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err := walsync.Run(ctx, cfg)
			if errors.Is(err, context.Canceled) {
				log.Info().Msg("received signal, stopping...")
				return nil
			}
			return err
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.walsync/config.toml)")
	root.Flags().StringVar(&cfg.DBPath, "db", "", "path to the SQLite database to sync")
	root.Flags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "state directory for status.json (defaults to the db directory)")
	root.Flags().StringVar(&cfg.ServiceURL, "service-url", cfg.ServiceURL, "base service URL")
	root.Flags().StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "API key for authentication")
	root.Flags().DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "poll interval when idle")
	root.Flags().DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout")
	root.Flags().DurationVar(&cfg.CheckpointInterval, "checkpoint-interval", cfg.CheckpointInterval, "checkpoint the WAL this often once caught up (0 disables)")
	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")
	root.Flags().BoolVar(&cfg.Once, "once", cfg.Once, "push available frames and exit")

	root.AddCommand(newReproCommand())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("walsync")
		os.Exit(1)
	}
}
