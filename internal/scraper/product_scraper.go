package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/nykaa-review-scraper/internal/app"
	"github.com/maltedev/nykaa-review-scraper/internal/browser"
	"github.com/maltedev/nykaa-review-scraper/internal/metrics"
	"github.com/maltedev/nykaa-review-scraper/internal/models"
	"github.com/maltedev/nykaa-review-scraper/internal/parser"
	"github.com/maltedev/nykaa-review-scraper/internal/reviews"
)

// ProductScraper loads one product page, extracts its base fields and
// collects its reviews from the dedicated review view.
type ProductScraper struct {
	env    *app.Env
	parser parser.Parser
	logger *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	// collectorOpts overrides the configured review budgets when set.
	collectorOpts *reviews.Options
}

var _ ProductCollector = (*ProductScraper)(nil)

func NewProductScraper(env *app.Env, p parser.Parser) *ProductScraper {
	return &ProductScraper{
		env:    env,
		parser: p,
		logger: env.Log("product_scraper"),
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// ScrapeProduct returns the product at productURL with its reviews
// attached. ErrPageNotReady and ErrProductNotFound mark products to skip;
// errors satisfying Fatal must end the keyword.
func (ps *ProductScraper) ScrapeProduct(ctx context.Context, r browser.Renderer, productURL string) (*models.ProductRecord, error) {
	cfg := ps.env.Config

	if err := r.Navigate(ctx, productURL); err != nil {
		return nil, fmt.Errorf("failed to load product page: %w", err)
	}

	if err := r.WaitFor(ctx, ps.env.Selectors.Product.Ready, cfg.Scraper.PageReadyTimeout); err != nil {
		if errors.Is(err, browser.ErrWaitTimeout) {
			return nil, fmt.Errorf("%s: %w", productURL, ErrPageNotReady)
		}
		return nil, fmt.Errorf("failed to wait for product page: %w", err)
	}

	html, err := r.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read product page: %w", err)
	}

	res := ps.parser.ExtractProduct(html, productURL)
	if !res.Found {
		return nil, fmt.Errorf("%s: %w", productURL, ErrProductNotFound)
	}
	product := res.Value
	ps.logger.Debug("product extracted", "product_id", product.ID, "name", product.Name, "source", res.Source)

	if cfg.Reviews.MaxReviews > 0 {
		collected, err := ps.collectReviews(ctx, r, productURL)
		if err != nil {
			return nil, err
		}
		product.Reviews = collected
	}

	product.ScrapedAt = ps.now().UTC()
	ps.logger.Info("product scraped",
		"product_id", product.ID,
		"name", product.Name,
		"reviews", len(product.Reviews))
	return product, nil
}

// collectReviews opens the review view and runs the collector. Failing to
// open the view leaves the product without reviews.
func (ps *ProductScraper) collectReviews(ctx context.Context, r browser.Renderer, productURL string) ([]models.ReviewRecord, error) {
	reviewsURL := parser.ReviewsURL(ps.env.Config.Scraper.BaseURL, productURL)
	if err := r.Navigate(ctx, reviewsURL); err != nil {
		if Fatal(ctx, err) {
			return nil, fmt.Errorf("failed to open review view: %w", err)
		}
		ps.logger.Warn("failed to open review view", "url", reviewsURL, "error", err)
		return make([]models.ReviewRecord, 0), nil
	}

	if err := ps.sleep(ctx, ps.env.Config.Reviews.InitialWait); err != nil {
		return nil, err
	}

	collector := reviews.NewCollector(ps.env, r, ps.parser)
	if ps.collectorOpts != nil {
		collector.WithOptions(*ps.collectorOpts)
	}
	if err := collector.DismissPopups(ctx); err != nil && Fatal(ctx, err) {
		return nil, fmt.Errorf("failed to dismiss popups: %w", err)
	}

	out, err := collector.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect reviews: %w", err)
	}
	metrics.ObserveReviewCollection(string(out.Reason), out.Rounds, out.LoadMoreClicks, len(out.Reviews))

	return out.Reviews, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
