package cmd

import (
	"github.com/maltedev/nykaa-review-scraper/internal/app"
	"github.com/maltedev/nykaa-review-scraper/internal/browser"
	"github.com/maltedev/nykaa-review-scraper/internal/config"
	"github.com/maltedev/nykaa-review-scraper/internal/ratelimit"
)

func browserOptions(cfg *config.Config) *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Browser.Headless
	opts.Timeout = cfg.Browser.Timeout
	opts.ViewportWidth = cfg.Browser.ViewportWidth
	opts.ViewportHeight = cfg.Browser.ViewportHeight
	opts.AcceptLanguage = cfg.Browser.AcceptLanguage
	opts.TimezoneID = cfg.Browser.TimezoneID
	opts.Locale = cfg.Browser.Locale
	opts.ProxyServer = cfg.Browser.ProxyServer
	opts.NavigationRetries = cfg.Scraper.NavigationRetries
	if cfg.Browser.UserAgent != "" {
		opts.UserAgent = cfg.Browser.UserAgent
	}
	return opts
}

// newLimiter returns the limiter shared by every session. Feedback is nil
// unless adaptive delays are enabled.
func newLimiter(cfg *config.Config) (ratelimit.RateLimiter, ratelimit.Feedback) {
	if cfg.Scraper.AdaptiveDelay {
		l := ratelimit.NewAdaptiveRateLimiter(cfg.Scraper.DelayMin, cfg.Scraper.DelayMax)
		return l, l
	}
	return ratelimit.NewSimpleRateLimiter(cfg.Scraper.DelayMin, cfg.Scraper.DelayMax), nil
}

// newPool starts chromium and returns a pool whose sessions are throttled
// by limiter. The caller closes both.
func newPool(env *app.Env, limiter ratelimit.RateLimiter) (*browser.Browser, *browser.Pool, error) {
	b, err := browser.New(browserOptions(env.Config), env.Logger)
	if err != nil {
		return nil, nil, err
	}

	factory := b.Factory(func(r browser.Renderer) browser.Renderer {
		return browser.Throttle(r, limiter)
	})
	return b, browser.NewPool(factory, env.Logger), nil
}
