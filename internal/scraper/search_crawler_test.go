package scraper

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/maltedev/nykaa-review-scraper/internal/app"
	"github.com/maltedev/nykaa-review-scraper/internal/browser"
	"github.com/maltedev/nykaa-review-scraper/internal/browser/browsertest"
	"github.com/maltedev/nykaa-review-scraper/internal/config"
	"github.com/maltedev/nykaa-review-scraper/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://www.nykaa.com"

func testEnv(t *testing.T) *app.Env {
	t.Helper()
	cfg := &config.Config{
		Scraper: config.ScraperConfig{
			BaseURL:            testBaseURL,
			MaxSearchPages:     100,
			PageReadyTimeout:   time.Second,
			SearchReadyTimeout: time.Second,
		},
		Reviews: config.ReviewConfig{
			MaxReviews:          200,
			MaxElapsed:          time.Minute,
			MaxLoadMoreClicks:   10,
			MaxConsecutiveNoNew: 2,
		},
	}
	return app.New(cfg, config.DefaultSelectors(), nil)
}

func testParser(t *testing.T) parser.Parser {
	t.Helper()
	p, err := parser.NewNykaaParser(config.DefaultSelectors())
	require.NoError(t, err)
	return p
}

func searchPage(from, to int) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := from; i < to; i++ {
		fmt.Fprintf(&b, `<a href="/product-%d/p/%d?pps=%d">Product %d</a>`, i, 1000+i, i, i)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func pageURL(keyword string, page int) string {
	return parser.SearchURL(testBaseURL, "/search/result/", keyword, page)
}

func TestSearchCrawler_LipstickStopsAtMaxProducts(t *testing.T) {
	r := browsertest.New()
	r.Pages[pageURL("lipstick", 1)] = searchPage(0, 10)
	r.Pages[pageURL("lipstick", 2)] = searchPage(10, 20)
	r.Pages[pageURL("lipstick", 3)] = searchPage(0, 0)

	sc := NewSearchCrawler(testEnv(t), testParser(t))
	urls, err := sc.Search(context.Background(), r, "lipstick", 15)
	require.NoError(t, err)

	assert.Len(t, urls, 15)
	assert.Equal(t, testBaseURL+"/product-0/p/1000", urls[0])
	assert.Equal(t, testBaseURL+"/product-14/p/1014", urls[14])
	assert.Equal(t, []string{pageURL("lipstick", 1), pageURL("lipstick", 2)}, r.Navigations())
}

func TestSearchCrawler_StopsOnPageWithoutNewLinks(t *testing.T) {
	r := browsertest.New()
	r.Pages[pageURL("kajal", 1)] = searchPage(0, 10)
	r.Pages[pageURL("kajal", 2)] = searchPage(5, 10)
	r.Pages[pageURL("kajal", 3)] = searchPage(10, 20)

	sc := NewSearchCrawler(testEnv(t), testParser(t))
	urls, err := sc.Search(context.Background(), r, "kajal", 50)
	require.NoError(t, err)

	assert.Len(t, urls, 10)
	assert.Len(t, r.Navigations(), 2)
}

func TestSearchCrawler_NoResults(t *testing.T) {
	r := browsertest.New()
	r.Pages[pageURL("zzzz", 1)] = `<div>Sorry, no products found</div>`
	r.WaitFunc = func(sel string) error { return browser.ErrWaitTimeout }

	sc := NewSearchCrawler(testEnv(t), testParser(t))
	urls, err := sc.Search(context.Background(), r, "zzzz", 20)
	require.NoError(t, err)

	assert.Empty(t, urls)
	assert.Len(t, r.Navigations(), 1)
}

func TestSearchCrawler_SkipsLaterPageThatTimesOut(t *testing.T) {
	r := browsertest.New()
	r.Pages[pageURL("serum", 1)] = searchPage(0, 10)
	r.Pages[pageURL("serum", 2)] = `<div>loading</div>`
	r.Pages[pageURL("serum", 3)] = searchPage(10, 15)

	var current string
	r.OnNavigate = func(url string) error {
		current = url
		return nil
	}
	r.WaitFunc = func(string) error {
		if current == pageURL("serum", 2) {
			return browser.ErrWaitTimeout
		}
		return nil
	}

	sc := NewSearchCrawler(testEnv(t), testParser(t))
	urls, err := sc.Search(context.Background(), r, "serum", 100)
	require.NoError(t, err)

	assert.Len(t, urls, 15)
	assert.Contains(t, r.Navigations(), pageURL("serum", 3))
}

func TestSearchCrawler_FirstPageTimeoutEndsSearch(t *testing.T) {
	r := browsertest.New()
	r.Pages[pageURL("toner", 1)] = `<div>loading</div>`
	r.WaitFunc = func(string) error { return browser.ErrWaitTimeout }

	sc := NewSearchCrawler(testEnv(t), testParser(t))
	urls, err := sc.Search(context.Background(), r, "toner", 10)
	require.NoError(t, err)
	assert.Empty(t, urls)
	assert.Len(t, r.Navigations(), 1)
}

func TestSearchCrawler_PageCeiling(t *testing.T) {
	env := testEnv(t)
	env.Config.Scraper.MaxSearchPages = 3

	r := browsertest.New()
	for page := 1; page <= 5; page++ {
		r.Pages[pageURL("primer", page)] = searchPage(page*10, page*10+10)
	}

	sc := NewSearchCrawler(env, testParser(t))
	urls, err := sc.Search(context.Background(), r, "primer", 1000)
	require.NoError(t, err)

	assert.Len(t, urls, 30)
	assert.Len(t, r.Navigations(), 3)
}

func TestSearchCrawler_SessionDeathPropagates(t *testing.T) {
	r := browsertest.New()
	r.Kill()

	sc := NewSearchCrawler(testEnv(t), testParser(t))
	_, err := sc.Search(context.Background(), r, "lipstick", 10)
	assert.ErrorIs(t, err, browser.ErrSessionClosed)
}
