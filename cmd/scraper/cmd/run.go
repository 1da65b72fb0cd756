package cmd

import (
	"fmt"
	"os"

	"github.com/maltedev/nykaa-review-scraper/internal/api"
	"github.com/maltedev/nykaa-review-scraper/internal/checkpoint"
	"github.com/maltedev/nykaa-review-scraper/internal/config"
	"github.com/maltedev/nykaa-review-scraper/internal/events"
	"github.com/maltedev/nykaa-review-scraper/internal/jobs"
	"github.com/maltedev/nykaa-review-scraper/internal/metrics"
	"github.com/maltedev/nykaa-review-scraper/internal/output"
	"github.com/maltedev/nykaa-review-scraper/internal/parser"
	"github.com/maltedev/nykaa-review-scraper/internal/scraper"
	"github.com/spf13/cobra"
)

var runFlags struct {
	maxProducts   int
	maxReviews    int
	workers       int
	fast          bool
	noCheckpoint  bool
	headless      bool
	adaptiveDelay bool
	statusAddr    string
}

func init() {
	f := runCmd.Flags()
	f.IntVar(&runFlags.maxProducts, "max-products", 0, "maximum products per keyword")
	f.IntVar(&runFlags.maxReviews, "max-reviews", 0, "maximum reviews per product (0 skips reviews)")
	f.IntVarP(&runFlags.workers, "workers", "w", 0, "parallel keyword workers")
	f.BoolVar(&runFlags.fast, "fast", false, "no delays and tight review budgets")
	f.BoolVar(&runFlags.noCheckpoint, "no-checkpoint", false, "disable checkpoints")
	f.BoolVar(&runFlags.headless, "headless", true, "run chromium headless")
	f.BoolVar(&runFlags.adaptiveDelay, "adaptive-delay", false, "widen delays after repeated failures")
	f.StringVar(&runFlags.statusAddr, "status-addr", "", "serve the status API on this address")

	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [keyword...]",
	Short: "Scrapes products and reviews for each keyword.",
	Long: "Scrapes products and reviews for each keyword. Keywords default to SCRAPER_KEYWORDS.\n" +
		"Interrupted keywords resume from their checkpoint on the next run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd, func(cfg *config.Config) {
			applyRunFlags(cmd, cfg, args)
		})
		if err != nil {
			return err
		}
		cfg := env.Config
		logger := env.Log("cli")
		if len(cfg.Scraper.Keywords) == 0 {
			return fmt.Errorf("no keywords given")
		}

		ctx, cancel := signalContext(env)
		defer cancel()

		metrics.Init()

		p, err := parser.NewNykaaParser(env.Selectors)
		if err != nil {
			return err
		}

		writer, err := output.NewWriter(cfg.Output.Dir, env.Logger)
		if err != nil {
			return err
		}

		deps := jobs.Deps{
			Searcher: scraper.NewSearchCrawler(env, p),
			Products: scraper.NewProductScraper(env, p),
			Writer:   writer,
		}

		var store *checkpoint.Store
		if cfg.Checkpoint.Enabled {
			store, err = checkpoint.NewStore(checkpoint.Options{
				Dir:             cfg.Checkpoint.Dir,
				MinSaveInterval: cfg.Checkpoint.MinSaveInterval,
			}, env.Logger)
			if err != nil {
				return err
			}
			deps.Store = store
		}

		publisher := events.New(ctx, cfg.Events, env.Logger)
		defer publisher.Close()
		deps.Publisher = publisher

		limiter, feedback := newLimiter(cfg)
		if feedback != nil {
			deps.Feedback = feedback
		}

		b, pool, err := newPool(env, limiter)
		if err != nil {
			return err
		}
		defer b.Close()
		defer pool.CloseAll()

		manager := jobs.NewManager(env, pool, deps)

		if cfg.Status.Addr != "" {
			var cps api.CheckpointSource
			if store != nil {
				cps = store
			}
			api.NewServer(cfg.Status.Addr, api.NewHandlers(manager, cps, env.Logger), env.Logger).Start(ctx)
		}

		summary, runErr := manager.Run(ctx, cfg.Scraper.Keywords)
		if summary != nil {
			if _, err := writer.WriteSummary(summary); err != nil {
				logger.Error("failed to write summary", "error", err)
			}
			output.RenderSummary(os.Stdout, summary)
		}
		if runErr != nil {
			return runErr
		}

		if ctx.Err() != nil {
			fmt.Println("Interrupted. Run the same command again to resume from checkpoints.")
		}
		return nil
	},
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config, args []string) {
	flags := cmd.Flags()

	if len(args) > 0 {
		cfg.Scraper.Keywords = args
	}
	if flags.Changed("max-products") {
		cfg.Scraper.MaxProducts = runFlags.maxProducts
	}
	if flags.Changed("max-reviews") {
		cfg.Reviews.MaxReviews = runFlags.maxReviews
	}
	if flags.Changed("workers") {
		cfg.Scraper.Workers = runFlags.workers
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless = runFlags.headless
	}
	if flags.Changed("adaptive-delay") {
		cfg.Scraper.AdaptiveDelay = runFlags.adaptiveDelay
	}
	if flags.Changed("status-addr") {
		cfg.Status.Addr = runFlags.statusAddr
	}
	if runFlags.noCheckpoint {
		cfg.Checkpoint.Enabled = false
	}
	if runFlags.fast {
		cfg.ApplyFastMode()
	}
}
