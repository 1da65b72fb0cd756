package scraper

import (
	"context"
	"log/slog"

	"github.com/maltedev/nykaa-review-scraper/internal/app"
	"github.com/maltedev/nykaa-review-scraper/internal/browser"
	"github.com/maltedev/nykaa-review-scraper/internal/config"
	"github.com/maltedev/nykaa-review-scraper/internal/metrics"
	"github.com/maltedev/nykaa-review-scraper/internal/parser"
)

// SearchCrawler pages through popularity-sorted search results collecting
// product URLs.
type SearchCrawler struct {
	cfg    config.ScraperConfig
	sel    config.SearchSelectors
	parser parser.Parser
	logger *slog.Logger
}

var _ Searcher = (*SearchCrawler)(nil)

func NewSearchCrawler(env *app.Env, p parser.Parser) *SearchCrawler {
	return &SearchCrawler{
		cfg:    env.Config.Scraper,
		sel:    env.Selectors.Search,
		parser: p,
		logger: env.Log("search_crawler"),
	}
}

// Search returns up to maxProducts distinct product URLs in result order.
// It stops on the first page that adds nothing, on a no-results page, or at
// the page ceiling. Only session death and cancellation are returned as
// errors; anything else ends the search with what was found.
func (sc *SearchCrawler) Search(ctx context.Context, r browser.Renderer, keyword string, maxProducts int) ([]string, error) {
	sc.logger.Info("starting search", "keyword", keyword, "max_products", maxProducts)

	var urls []string
	seen := make(map[string]struct{})

	for page := 1; page <= sc.cfg.MaxSearchPages && len(urls) < maxProducts; page++ {
		if err := ctx.Err(); err != nil {
			return urls, err
		}

		searchURL := parser.SearchURL(sc.cfg.BaseURL, sc.sel.Path, keyword, page)
		if err := r.Navigate(ctx, searchURL); err != nil {
			if Fatal(ctx, err) {
				return urls, err
			}
			sc.logger.Warn("failed to load search page", "keyword", keyword, "page", page, "error", err)
			break
		}
		metrics.ObserveSearchPage()

		ready, stop, err := sc.waitForResults(ctx, r, page)
		if err != nil {
			return urls, err
		}
		if stop {
			break
		}
		if !ready {
			continue
		}

		html, err := r.HTML(ctx)
		if err != nil {
			if Fatal(ctx, err) {
				return urls, err
			}
			sc.logger.Warn("failed to read search page", "keyword", keyword, "page", page, "error", err)
			break
		}

		added := 0
		for _, link := range sc.parser.ExtractProductLinks(html, sc.cfg.BaseURL) {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			urls = append(urls, link)
			added++
			if len(urls) >= maxProducts {
				break
			}
		}

		sc.logger.Info("search page processed", "keyword", keyword, "page", page, "new", added, "total", len(urls))
		if added == 0 {
			break
		}
	}

	sc.logger.Info("search finished", "keyword", keyword, "urls", len(urls))
	return urls, nil
}

// waitForResults waits for product links. On timeout it reports stop when
// the page says there are no results or when the first page never loads;
// a later page that times out is skipped.
func (sc *SearchCrawler) waitForResults(ctx context.Context, r browser.Renderer, page int) (ready, stop bool, err error) {
	werr := r.WaitFor(ctx, sc.sel.ProductLinks, sc.cfg.SearchReadyTimeout)
	if werr == nil {
		return true, false, nil
	}
	if Fatal(ctx, werr) {
		return false, false, werr
	}

	html, herr := r.HTML(ctx)
	if herr != nil && Fatal(ctx, herr) {
		return false, false, herr
	}
	if herr == nil && sc.parser.HasNoResults(html) {
		sc.logger.Info("no results indicator found", "page", page)
		return false, true, nil
	}

	if page == 1 {
		sc.logger.Warn("first search page never showed products", "error", werr)
		return false, true, nil
	}
	sc.logger.Warn("search page not ready, skipping", "page", page, "error", werr)
	return false, false, nil
}
