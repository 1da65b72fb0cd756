package browser

import (
	"context"
	"time"

	"github.com/maltedev/nykaa-review-scraper/internal/metrics"
)

// Waiter paces requests. ratelimit.RateLimiter satisfies it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Throttled pauses after every navigation so consecutive page loads of one
// session are spread out.
type Throttled struct {
	Renderer
	waiter Waiter
}

func Throttle(r Renderer, w Waiter) *Throttled {
	return &Throttled{Renderer: r, waiter: w}
}

func (t *Throttled) Navigate(ctx context.Context, url string) error {
	err := t.Renderer.Navigate(ctx, url)
	if IsSessionClosed(err) || t.waiter == nil {
		return err
	}

	start := time.Now()
	werr := t.waiter.Wait(ctx)
	metrics.ObserveNavigationDelay(time.Since(start))
	if werr != nil && err == nil {
		return werr
	}
	return err
}
