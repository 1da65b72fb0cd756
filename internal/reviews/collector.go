// Package reviews collects the review set of one product by driving a
// renderer through bounded reveal-and-extract rounds.
package reviews

import (
	"context"
	"log/slog"
	"time"

	"github.com/maltedev/nykaa-review-scraper/internal/app"
	"github.com/maltedev/nykaa-review-scraper/internal/browser"
	"github.com/maltedev/nykaa-review-scraper/internal/config"
	"github.com/maltedev/nykaa-review-scraper/internal/models"
)

// Extractor turns page content into a batch of reviews.
type Extractor interface {
	ExtractReviews(html string) []models.ReviewRecord
}

type StopReason string

const (
	StopExplicitEnd StopReason = "explicit_end"
	StopElapsed     StopReason = "max_elapsed_time"
	StopClicks      StopReason = "max_load_more_clicks"
	StopNoNew       StopReason = "max_consecutive_no_new_rounds"
	StopMaxReviews  StopReason = "max_reviews"
)

// Exhausted reports whether the stop came from a budget rather than from
// the page signalling the end.
func (r StopReason) Exhausted() bool {
	return r != StopExplicitEnd
}

type Budgets struct {
	MaxElapsed          time.Duration
	MaxLoadMoreClicks   int
	MaxConsecutiveNoNew int
	MaxReviews          int
}

type Options struct {
	Budgets
	SettleWait  time.Duration
	ScrollPause time.Duration
}

func OptionsFromConfig(cfg config.ReviewConfig) Options {
	return Options{
		Budgets: Budgets{
			MaxElapsed:          cfg.MaxElapsed,
			MaxLoadMoreClicks:   cfg.MaxLoadMoreClicks,
			MaxConsecutiveNoNew: cfg.MaxConsecutiveNoNew,
			MaxReviews:          cfg.MaxReviews,
		},
		SettleWait:  cfg.SettleWait,
		ScrollPause: cfg.ScrollPause,
	}
}

// Outcome is the final state of one collection.
type Outcome struct {
	Reviews        []models.ReviewRecord
	Reason         StopReason
	Rounds         int
	LoadMoreClicks int
	Elapsed        time.Duration
}

// Collector is the review collection state machine for one product. It
// expects the renderer to already show the product's review view.
type Collector struct {
	renderer  browser.Renderer
	extractor Extractor
	sel       config.ReviewPageSelectors
	opts      Options
	logger    *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewCollector(env *app.Env, r browser.Renderer, x Extractor) *Collector {
	return &Collector{
		renderer:  r,
		extractor: x,
		sel:       env.Selectors.ReviewPage,
		opts:      OptionsFromConfig(env.Config.Reviews),
		logger:    env.Log("review_collector"),
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// WithOptions overrides the budgets and waits taken from configuration.
func (c *Collector) WithOptions(opts Options) *Collector {
	c.opts = opts
	return c
}

type state struct {
	acc         *Accumulator
	started     time.Time
	clicks      int
	noNewRounds int
	rounds      int
}

// Collect runs rounds until the page shows an end marker or a budget is
// spent. Round-level failures count as rounds without new reviews; only
// session death or cancellation abort, and the partial outcome is still
// returned with the error.
func (c *Collector) Collect(ctx context.Context) (*Outcome, error) {
	st := &state{acc: NewAccumulator(), started: c.now()}

	for {
		reason, stop, err := c.checkStop(ctx, st)
		if err != nil {
			return c.outcome(st, ""), err
		}
		if stop {
			out := c.outcome(st, reason)
			c.logger.Info("review collection finished",
				"reason", reason,
				"reviews", len(out.Reviews),
				"rounds", st.rounds,
				"load_more_clicks", st.clicks,
				"elapsed", out.Elapsed)
			return out, nil
		}

		st.rounds++
		if err := c.round(ctx, st); err != nil {
			return c.outcome(st, ""), err
		}
	}
}

func (c *Collector) checkStop(ctx context.Context, st *state) (StopReason, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	end, err := c.endReached(ctx)
	if err != nil {
		return "", false, err
	}
	if end {
		return StopExplicitEnd, true, nil
	}

	switch {
	case c.now().Sub(st.started) >= c.opts.MaxElapsed:
		return StopElapsed, true, nil
	case st.clicks >= c.opts.MaxLoadMoreClicks:
		return StopClicks, true, nil
	case st.noNewRounds >= c.opts.MaxConsecutiveNoNew:
		return StopNoNew, true, nil
	case st.acc.Len() >= c.opts.MaxReviews:
		return StopMaxReviews, true, nil
	}
	return "", false, nil
}

// round performs one reveal step followed by one extraction step.
func (c *Collector) round(ctx context.Context, st *state) error {
	if err := c.reveal(ctx, st); err != nil {
		if fatal(ctx, err) {
			return err
		}
		c.logger.Debug("reveal step failed", "round", st.rounds, "error", err)
	}

	added, err := c.extract(ctx, st)
	if err != nil {
		if fatal(ctx, err) {
			return err
		}
		c.logger.Debug("extraction step failed", "round", st.rounds, "error", err)
	}

	if added == 0 {
		st.noNewRounds++
	} else {
		st.noNewRounds = 0
	}

	c.logger.Debug("round complete",
		"round", st.rounds,
		"new", added,
		"total", st.acc.Len(),
		"no_new_rounds", st.noNewRounds)
	return nil
}

func (c *Collector) reveal(ctx context.Context, st *state) error {
	if err := c.scroll(ctx); err != nil {
		return err
	}

	el, err := c.findLoadMore(ctx)
	if err != nil || el == nil {
		return err
	}

	clicked, err := c.click(el)
	if err != nil || !clicked {
		return err
	}

	st.clicks++
	return c.sleep(ctx, c.opts.SettleWait)
}

func (c *Collector) extract(ctx context.Context, st *state) (int, error) {
	html, err := c.renderer.HTML(ctx)
	if err != nil {
		return 0, err
	}
	return st.acc.Add(c.extractor.ExtractReviews(html)), nil
}

func (c *Collector) outcome(st *state, reason StopReason) *Outcome {
	return &Outcome{
		Reviews:        st.acc.Reviews(c.opts.MaxReviews),
		Reason:         reason,
		Rounds:         st.rounds,
		LoadMoreClicks: st.clicks,
		Elapsed:        c.now().Sub(st.started),
	}
}

func fatal(ctx context.Context, err error) bool {
	return browser.IsSessionClosed(err) || ctx.Err() != nil
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
