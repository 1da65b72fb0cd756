package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maltedev/nykaa-review-scraper/internal/browser"
	"github.com/maltedev/nykaa-review-scraper/internal/browser/browsertest"
	"github.com/maltedev/nykaa-review-scraper/internal/parser"
	"github.com/maltedev/nykaa-review-scraper/internal/reviews"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testProductURL = testBaseURL + "/maybelline-colossal-kajal/p/4455"

	productPageHTML = `<html><script>window.__PRELOADED_STATE__ = {"productPage":{"productDetails":{
		"id":"4455","name":"Colossal Kajal","brandName":"Maybelline New York","mrp":199,"offerPrice":179,"inStock":true}}}</script>
		<h1>Colossal Kajal</h1></html>`

	reviewPageHTML = `<script>{"getReviews":{"Reviews":{"reviews":[
		{"id":"1","name":"Neha","rating":5,"title":"Dark","description":"Very dark and smooth","createdOn":"2024-02-01 10:00:00"},
		{"id":"2","name":"Anonymous","rating":4,"description":"ok"},
		{"id":"3","name":"Kavya","rating":3,"title":"Smudges","description":"","createdOn":"2024-02-03"}
	]}}}</script>`
)

func newTestProductScraper(t *testing.T) (*ProductScraper, *browsertest.Renderer) {
	t.Helper()
	ps := NewProductScraper(testEnv(t), testParser(t))
	ps.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }
	ps.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	ps.collectorOpts = &reviews.Options{
		Budgets: reviews.Budgets{
			MaxElapsed:          time.Minute,
			MaxLoadMoreClicks:   10,
			MaxConsecutiveNoNew: 2,
			MaxReviews:          200,
		},
	}

	r := browsertest.New()
	r.Pages[testProductURL] = productPageHTML
	r.Pages[parser.ReviewsURL(testBaseURL, testProductURL)] = reviewPageHTML
	return ps, r
}

func TestProductScraper_ScrapeProduct(t *testing.T) {
	ps, r := newTestProductScraper(t)

	product, err := ps.ScrapeProduct(context.Background(), r, testProductURL)
	require.NoError(t, err)

	assert.Equal(t, "4455", product.ID)
	assert.Equal(t, "Colossal Kajal", product.Name)
	assert.Equal(t, "Maybelline New York", product.Brand)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), product.ScrapedAt)

	require.Len(t, product.Reviews, 2)
	assert.Equal(t, "Neha", product.Reviews[0].Author.Name)
	assert.Equal(t, "Kavya", product.Reviews[1].Author.Name)

	assert.Equal(t, []string{
		testProductURL,
		testBaseURL + "/maybelline-colossal-kajal/reviews/4455?ptype=reviews",
	}, r.Navigations())
}

func TestProductScraper_PageNotReady(t *testing.T) {
	ps, r := newTestProductScraper(t)
	r.WaitFunc = func(string) error { return browser.ErrWaitTimeout }

	_, err := ps.ScrapeProduct(context.Background(), r, testProductURL)
	assert.ErrorIs(t, err, ErrPageNotReady)
	assert.False(t, Fatal(context.Background(), err))
}

func TestProductScraper_ProductNotFound(t *testing.T) {
	ps, r := newTestProductScraper(t)
	r.Pages[testProductURL] = `<html><body><p>Something went wrong</p></body></html>`

	_, err := ps.ScrapeProduct(context.Background(), r, testProductURL)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Len(t, r.Navigations(), 1)
}

func TestProductScraper_BlockedPage(t *testing.T) {
	ps, r := newTestProductScraper(t)
	r.NavigateErr[testProductURL] = browser.ErrBlocked

	_, err := ps.ScrapeProduct(context.Background(), r, testProductURL)
	assert.ErrorIs(t, err, browser.ErrBlocked)
	assert.False(t, Fatal(context.Background(), err))
}

func TestProductScraper_ReviewsDisabled(t *testing.T) {
	ps, r := newTestProductScraper(t)
	ps.env.Config.Reviews.MaxReviews = 0

	product, err := ps.ScrapeProduct(context.Background(), r, testProductURL)
	require.NoError(t, err)
	assert.Empty(t, product.Reviews)
	assert.Len(t, r.Navigations(), 1)
}

func TestProductScraper_ReviewViewFailureKeepsProduct(t *testing.T) {
	ps, r := newTestProductScraper(t)
	r.NavigateErr[parser.ReviewsURL(testBaseURL, testProductURL)] = errors.New("net::ERR_CONNECTION_RESET")

	product, err := ps.ScrapeProduct(context.Background(), r, testProductURL)
	require.NoError(t, err)
	assert.NotNil(t, product.Reviews)
	assert.Empty(t, product.Reviews)
}

func TestProductScraper_SessionDeathDuringReviews(t *testing.T) {
	ps, r := newTestProductScraper(t)
	r.OnNavigate = func(url string) error {
		if url != testProductURL {
			r.Kill()
		}
		return nil
	}
	// The kill lands after the navigation itself succeeded.
	_, err := ps.ScrapeProduct(context.Background(), r, testProductURL)
	require.Error(t, err)
	assert.True(t, Fatal(context.Background(), err))
	assert.ErrorIs(t, err, browser.ErrSessionClosed)
}
