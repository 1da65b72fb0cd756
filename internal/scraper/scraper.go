// Package scraper runs the per-page pipelines on top of a renderer: keyword
// search and single product collection.
package scraper

import (
	"context"
	"errors"

	"github.com/maltedev/nykaa-review-scraper/internal/browser"
	"github.com/maltedev/nykaa-review-scraper/internal/models"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrPageNotReady    = errors.New("page did not become ready")
)

// Fatal reports whether err must end the keyword rather than just the
// current product.
func Fatal(ctx context.Context, err error) bool {
	return browser.IsSessionClosed(err) || ctx.Err() != nil
}

type Searcher interface {
	Search(ctx context.Context, r browser.Renderer, keyword string, maxProducts int) ([]string, error)
}

type ProductCollector interface {
	ScrapeProduct(ctx context.Context, r browser.Renderer, productURL string) (*models.ProductRecord, error)
}
