package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/maltedev/nykaa-review-scraper/internal/config"
	"github.com/maltedev/nykaa-review-scraper/internal/models"
	"github.com/maltedev/nykaa-review-scraper/internal/output"
	"github.com/maltedev/nykaa-review-scraper/internal/parser"
	"github.com/maltedev/nykaa-review-scraper/internal/scraper"
	"github.com/spf13/cobra"
)

var testReviewFlags struct {
	maxReviews int
	save       bool
	headless   bool
}

func init() {
	f := testReviewCmd.Flags()
	f.IntVar(&testReviewFlags.maxReviews, "max-reviews", 50, "maximum reviews to collect")
	f.BoolVar(&testReviewFlags.save, "save", false, "write the result to the output directory")
	f.BoolVar(&testReviewFlags.headless, "headless", true, "run chromium headless")

	rootCmd.AddCommand(testReviewCmd)
}

var testReviewCmd = &cobra.Command{
	Use:   "test-review <product-url>",
	Short: "Scrapes one product page and prints the reviews it found.",
	Long:  "Scrapes one product page and prints the reviews it found. Use it to check the selector catalog against the live site.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd, func(cfg *config.Config) {
			cfg.Reviews.MaxReviews = testReviewFlags.maxReviews
			if cmd.Flags().Changed("headless") {
				cfg.Browser.Headless = testReviewFlags.headless
			}
			cfg.Scraper.DelayMin = 0
			cfg.Scraper.DelayMax = 0
		})
		if err != nil {
			return err
		}

		ctx, cancel := signalContext(env)
		defer cancel()

		p, err := parser.NewNykaaParser(env.Selectors)
		if err != nil {
			return err
		}

		limiter, _ := newLimiter(env.Config)
		b, pool, err := newPool(env, limiter)
		if err != nil {
			return err
		}
		defer b.Close()
		defer pool.CloseAll()

		r, err := pool.Acquire(ctx, 0)
		if err != nil {
			return err
		}

		productURL := args[0]
		fmt.Printf("Product:     %s\n", productURL)
		fmt.Printf("Reviews URL: %s\n\n", parser.ReviewsURL(env.Config.Scraper.BaseURL, productURL))

		start := time.Now()
		product, err := scraper.NewProductScraper(env, p).ScrapeProduct(ctx, r, productURL)
		if err != nil {
			return fmt.Errorf("failed to scrape product: %w", err)
		}

		fmt.Printf("Name:    %s\n", product.Name)
		fmt.Printf("Brand:   %s\n", product.Brand)
		fmt.Printf("Rating:  %.1f (%d reviews listed)\n", product.Rating, product.ReviewCount)
		fmt.Printf("Scraped: %d reviews in %s\n\n", product.ReviewsScraped(), time.Since(start).Round(time.Millisecond))

		if product.ReviewsScraped() > 0 {
			output.RenderReviews(os.Stdout, product.Reviews)
		}

		if testReviewFlags.save {
			writer, err := output.NewWriter(env.Config.Output.Dir, env.Logger)
			if err != nil {
				return err
			}
			res := output.NewKeywordResult("test_review_"+product.ID, output.StatusCompleted, []models.ProductRecord{*product}, time.Now().UTC())
			files, err := writer.WriteKeyword(res)
			if err != nil {
				return err
			}
			fmt.Printf("\nSaved %s\n", files.JSON)
		}
		return nil
	},
}
