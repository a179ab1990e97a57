package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dgnsrekt/music-release-notifier/internal/config"
)

var (
	verbose bool
	logger  *zap.Logger
	cfg     *config.Config
)

func setupLogger(verbose bool, logCfg *config.LoggingConfig) (*zap.Logger, error) {
	var zapConfig zap.Config
	if verbose {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.DisableStacktrace = true
	}

	// Set log level from config
	if logCfg != nil && logCfg.Level != "" && !verbose {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(logCfg.Level)); err == nil {
			zapConfig.Level = zap.NewAtomicLevelAt(level)
		}
	}

	// Add file output if enabled
	if logCfg != nil && logCfg.Enabled {
		if err := os.MkdirAll(logCfg.Directory, 0755); err != nil {
			return nil, fmt.Errorf("creating logs directory: %w", err)
		}
		timestamp := time.Now().Format("2006-01-02_15-04-05")
		logFile := filepath.Join(logCfg.Directory, fmt.Sprintf("notifier_%s.log", timestamp))
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, logFile)
	}

	return zapConfig.Build()
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "music-release-notifier <config-folder>",
		Short: "Email subscribers about new albums from the artists they follow",
		Long: `Check the catalog for albums released since the last run and email
one digest per subscriber.

The config folder holds:
  subscriptions.yaml  subscribers, their market and the artist ids they follow
  notifier.yaml       optional settings (catalog, smtp, filter, ledger, logging)
  last-checked        the checkpoint, created by the first run
  .env                optional environment variables

Catalog and mail credentials come from SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET,
SMTP_HOST, SMTP_PORT, EMAIL_USER and EMAIL_PASS.

Examples:
  # Run one check
  music-release-notifier ~/.config/music-release-notifier

  # Render digests without mailing them or moving the checkpoint
  music-release-notifier --dry-run ~/.config/music-release-notifier

  # Show recent runs
  music-release-notifier history ~/.config/music-release-notifier`,
		Args: cobra.ExactArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip config loading for help commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || len(args) == 0 {
				var err error
				logger, err = setupLogger(verbose, nil)
				return err
			}

			// Load config; history only reads the ledger and needs no credentials
			load := config.Load
			if cmd.Name() == "history" {
				load = config.Read
			}

			var err error
			cfg, err = load(args[0])
			if err != nil {
				return err
			}

			// Setup logger with config
			logger, err = setupLogger(verbose, &cfg.Logging)
			if err != nil {
				return err
			}

			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	addRunFlags(root)
	root.AddCommand(historyCmd())

	return root
}

func main() {
	// Setup signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := rootCmd().ExecuteContext(ctx)
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		cancel()
		os.Exit(1)
	}
}
