package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/nykaa-review-scraper/internal/app"
	"github.com/maltedev/nykaa-review-scraper/internal/config"
	"github.com/maltedev/nykaa-review-scraper/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	selectorsFile string
	logLevel      string
	logFormat     string
	checkpointDir string
	outputDir     string
)

var rootCmd = &cobra.Command{
	Use:           "nykaa-scraper",
	Short:         "nykaa-scraper collects products and reviews for search keywords.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&selectorsFile, "selectors", "", "selector catalog file (defaults to the embedded catalog)")
	f.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&logFormat, "log-format", "", "log format: json or text")
	f.StringVar(&checkpointDir, "checkpoint-dir", "", "checkpoint directory")
	f.StringVar(&outputDir, "output-dir", "", "output directory")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadEnv reads the environment configuration, applies the persistent flags
// and any command-specific overrides, and builds the shared environment.
func loadEnv(cmd *cobra.Command, override func(cfg *config.Config)) (*app.Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("selectors") {
		cfg.Scraper.SelectorsFile = selectorsFile
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = logFormat
	}
	if flags.Changed("checkpoint-dir") {
		cfg.Checkpoint.Dir = checkpointDir
	}
	if flags.Changed("output-dir") {
		cfg.Output.Dir = outputDir
	}
	if override != nil {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	sel, err := config.LoadSelectors(cfg.Scraper.SelectorsFile)
	if err != nil {
		return nil, err
	}

	return app.New(cfg, sel, logger.New(cfg.Logging.Level, cfg.Logging.Format)), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(env *app.Env) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			env.Logger.Info("shutdown signal received, saving checkpoints")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
