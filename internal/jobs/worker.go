package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maltedev/nykaa-review-scraper/internal/app"
	"github.com/maltedev/nykaa-review-scraper/internal/browser"
	"github.com/maltedev/nykaa-review-scraper/internal/checkpoint"
	"github.com/maltedev/nykaa-review-scraper/internal/events"
	"github.com/maltedev/nykaa-review-scraper/internal/metrics"
	"github.com/maltedev/nykaa-review-scraper/internal/models"
	"github.com/maltedev/nykaa-review-scraper/internal/output"
	"github.com/maltedev/nykaa-review-scraper/internal/queue"
	"github.com/maltedev/nykaa-review-scraper/internal/ratelimit"
	"github.com/maltedev/nykaa-review-scraper/internal/scraper"
)

type Stage string

const (
	StageInit        Stage = "init"
	StageSearching   Stage = "searching"
	StageProcessing  Stage = "processing_urls"
	StageFinalizing  Stage = "finalizing"
	StageCompleted   Stage = "completed"
	StageInterrupted Stage = "interrupted"
	StageErrored     Stage = "errored"
)

// heavyReviewSave is the review count above which a product triggers a
// rate-limited save outside the periodic schedule.
const heavyReviewSave = 10

// Checkpointer is the slice of checkpoint.Store a worker needs.
type Checkpointer interface {
	Load(keyword string) (*checkpoint.State, error)
	Save(keyword string, st *checkpoint.State) (bool, error)
	ForceSave(keyword string, st *checkpoint.State) error
	Clear(keyword string) error
}

type ResultWriter interface {
	WriteKeyword(res *output.KeywordResult) (*output.Files, error)
}

// Deps are the collaborators shared by every keyword worker of a run.
type Deps struct {
	Searcher  scraper.Searcher
	Products  scraper.ProductCollector
	Store     Checkpointer
	Writer    ResultWriter
	Publisher events.Publisher
	Feedback  ratelimit.Feedback
}

// Result is the outcome of one keyword.
type Result struct {
	Keyword    string
	Stage      Stage
	Products   []models.ProductRecord
	Resumed    bool
	OutputFile string
	Duration   time.Duration
	Err        error
}

func (r *Result) Status() string {
	switch r.Stage {
	case StageCompleted:
		return output.StatusCompleted
	case StageInterrupted:
		return output.StatusInterrupted
	default:
		return output.StatusError
	}
}

func (r *Result) Summary() output.KeywordSummary {
	s := output.KeywordSummary{
		Keyword:       r.Keyword,
		Status:        r.Status(),
		TotalProducts: len(r.Products),
		TotalReviews:  models.TotalReviews(r.Products),
		Resumed:       r.Resumed,
		Duration:      r.Duration,
		OutputFile:    r.OutputFile,
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}

// ProgressFunc receives a worker's progress after every state change.
type ProgressFunc func(p Progress)

// KeywordWorker drives one keyword from checkpoint load to final output:
// init, searching, processing_urls, finalizing, then completed, interrupted
// or errored.
type KeywordWorker struct {
	env      *app.Env
	deps     Deps
	logger   *slog.Logger
	progress ProgressFunc
	now      func() time.Time
}

func NewKeywordWorker(env *app.Env, deps Deps) *KeywordWorker {
	if deps.Store == nil {
		deps.Store = disabledStore{}
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Feedback == nil {
		deps.Feedback = nopFeedback{}
	}
	return &KeywordWorker{
		env:      env,
		deps:     deps,
		logger:   env.Log("keyword_worker"),
		progress: func(Progress) {},
		now:      time.Now,
	}
}

func (w *KeywordWorker) WithProgress(fn ProgressFunc) *KeywordWorker {
	if fn != nil {
		w.progress = fn
	}
	return w
}

// run carries the mutable state of a single Run call.
type run struct {
	task   *queue.Task
	state  *checkpoint.State
	res    *Result
	logger *slog.Logger
	start  time.Time
}

// Run processes one keyword with renderer r. It always returns a result;
// Result.Err is set for interrupted and errored keywords, and wraps
// browser.ErrSessionClosed when the renderer died.
func (w *KeywordWorker) Run(ctx context.Context, r browser.Renderer, task *queue.Task) *Result {
	if task.MaxProducts <= 0 {
		task.MaxProducts = w.env.Config.Scraper.MaxProducts
	}

	rn := &run{
		task:   task,
		res:    &Result{Keyword: task.Keyword, Stage: StageInit},
		logger: w.logger.With("keyword", task.Keyword),
		start:  w.now(),
	}

	rn.state, rn.res.Resumed = w.loadState(rn)
	w.publish(ctx, rn, events.KeywordStarted(task.Keyword, rn.res.Resumed))
	w.report(rn)

	urls, err := w.productURLs(ctx, r, rn)
	if err != nil {
		return w.abort(ctx, rn, err)
	}

	if err := w.processURLs(ctx, r, rn, urls); err != nil {
		return w.abort(ctx, rn, err)
	}

	return w.finalize(ctx, rn)
}

func (w *KeywordWorker) loadState(rn *run) (*checkpoint.State, bool) {
	st, err := w.deps.Store.Load(rn.task.Keyword)
	if err != nil {
		if !errors.Is(err, checkpoint.ErrNotFound) {
			rn.logger.Warn("ignoring unusable checkpoint", "stage", StageInit, "error", err)
		}
		return checkpoint.NewState(rn.task.Keyword), false
	}

	st.Metadata.Status = checkpoint.StatusInProgress
	rn.logger.Info("resuming from checkpoint",
		"products", len(st.AccumulatedRecords),
		"processed_urls", len(st.ProcessedURLs),
	)
	return st, true
}

// productURLs reuses the cached URL list when the checkpoint covers the
// request and searches otherwise.
func (w *KeywordWorker) productURLs(ctx context.Context, r browser.Renderer, rn *run) ([]string, error) {
	if urls, ok := rn.state.CachedURLs(rn.task.MaxProducts); ok {
		rn.logger.Info("smart resume: skipping search", "cached_urls", len(urls))
		return urls, nil
	}

	rn.res.Stage = StageSearching
	w.report(rn)

	urls, err := w.deps.Searcher.Search(ctx, r, rn.task.Keyword, rn.task.MaxProducts)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		rn.logger.Warn("search found no product urls", "stage", StageSearching)
	}

	rn.state.RecordSearch(urls, rn.task.MaxProducts, w.now().UTC())
	rn.state.RefreshProgress()
	w.forceSave(rn)
	return urls, nil
}

func (w *KeywordWorker) processURLs(ctx context.Context, r browser.Renderer, rn *run, urls []string) error {
	rn.res.Stage = StageProcessing
	st := rn.state
	st.Metadata.TotalURLs = len(urls)
	st.RefreshProgress()
	w.report(rn)

	every := max(1, w.env.Config.Scraper.CheckpointEvery)
	successes := 0

	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(st.AccumulatedRecords) >= rn.task.MaxProducts {
			break
		}
		if st.ProcessedURLs.Has(u) {
			continue
		}

		product, err := w.deps.Products.ScrapeProduct(ctx, r, u)
		if err != nil {
			if scraper.Fatal(ctx, err) {
				return err
			}
			rn.logger.Warn("failed to scrape product", "url", u, "stage", StageProcessing, "error", err)
			metrics.ObserveProduct(productFailure(err))
			w.deps.Feedback.RecordError()

			st.Metadata.LastError = err.Error()
			st.Metadata.LastErrorURL = u
			if len(st.AccumulatedRecords) > 0 {
				w.save(rn)
			}
			continue
		}

		st.AccumulatedRecords = append(st.AccumulatedRecords, *product)
		st.ProcessedURLs.Add(u)
		st.Metadata.LastProcessedURL = u
		st.RefreshProgress()

		metrics.ObserveProduct("success")
		w.deps.Feedback.RecordSuccess()
		w.publish(ctx, rn, events.ProductScraped(rn.task.Keyword, product))
		w.report(rn)

		rn.logger.Info("product scraped",
			"url", u,
			"reviews", product.ReviewsScraped(),
			"progress", len(st.AccumulatedRecords),
			"total", len(urls),
		)

		successes++
		if successes%every == 0 || product.ReviewsScraped() > heavyReviewSave {
			w.save(rn)
		}
	}

	return nil
}

func (w *KeywordWorker) finalize(ctx context.Context, rn *run) *Result {
	rn.res.Stage = StageFinalizing
	w.report(rn)

	st := rn.state
	st.Metadata.Status = checkpoint.StatusCompleted
	st.RefreshProgress()
	w.forceSave(rn)

	files, err := w.deps.Writer.WriteKeyword(output.NewKeywordResult(rn.task.Keyword, output.StatusCompleted, st.AccumulatedRecords, w.now().UTC()))
	if err != nil {
		rn.logger.Error("failed to write keyword output", "stage", StageFinalizing, "error", err)
		st.Metadata.Status = checkpoint.StatusError
		st.Metadata.LastError = err.Error()
		w.forceSave(rn)
		return w.finish(ctx, rn, StageErrored, err)
	}
	rn.res.OutputFile = files.JSON

	if err := w.deps.Store.Clear(rn.task.Keyword); err != nil {
		rn.logger.Warn("failed to clear checkpoint", "stage", StageFinalizing, "error", err)
	}

	return w.finish(ctx, rn, StageCompleted, nil)
}

// abort force-saves what was accumulated, writes it as partial output and
// keeps the checkpoint for a later resume.
func (w *KeywordWorker) abort(ctx context.Context, rn *run, cause error) *Result {
	st := rn.state
	stage := StageErrored
	status := checkpoint.StatusError

	if ctx.Err() != nil && !browser.IsSessionClosed(cause) {
		stage = StageInterrupted
		status = checkpoint.StatusInterrupted
		rn.logger.Warn("keyword interrupted", "stage", rn.res.Stage, "products", len(st.AccumulatedRecords))
	} else {
		rn.logger.Error("keyword failed", "stage", rn.res.Stage, "products", len(st.AccumulatedRecords), "error", cause)
		st.Metadata.LastError = cause.Error()
	}

	st.Metadata.Status = status
	st.RefreshProgress()
	w.forceSave(rn)

	if len(st.AccumulatedRecords) > 0 {
		res := output.NewKeywordResult(rn.task.Keyword, string(status), st.AccumulatedRecords, w.now().UTC())
		res.Metadata.CheckpointPreserved = true
		if stage == StageErrored {
			res.Metadata.Error = cause.Error()
		}
		if files, err := w.deps.Writer.WriteKeyword(res); err != nil {
			rn.logger.Error("failed to write partial output", "error", err)
		} else {
			rn.res.OutputFile = files.JSON
		}
	}

	return w.finish(ctx, rn, stage, cause)
}

func (w *KeywordWorker) finish(ctx context.Context, rn *run, stage Stage, err error) *Result {
	res := rn.res
	res.Stage = stage
	res.Err = err
	res.Products = rn.state.AccumulatedRecords
	res.Duration = w.now().Sub(rn.start)

	metrics.ObserveKeyword(res.Status())
	w.report(rn)
	w.publish(context.WithoutCancel(ctx), rn, events.KeywordFinished(
		rn.task.Keyword, res.Status(), len(res.Products), models.TotalReviews(res.Products), err,
	))

	rn.logger.Info("keyword finished",
		"status", res.Status(),
		"products", len(res.Products),
		"reviews", models.TotalReviews(res.Products),
		"duration", res.Duration,
	)
	return res
}

func (w *KeywordWorker) save(rn *run) {
	saved, err := w.deps.Store.Save(rn.task.Keyword, rn.state)
	switch {
	case err != nil:
		metrics.ObserveCheckpointSave("failed")
		rn.logger.Error("failed to save checkpoint", "error", err)
	case saved:
		metrics.ObserveCheckpointSave("saved")
	default:
		metrics.ObserveCheckpointSave("skipped")
	}
}

func (w *KeywordWorker) forceSave(rn *run) {
	if err := w.deps.Store.ForceSave(rn.task.Keyword, rn.state); err != nil {
		metrics.ObserveCheckpointSave("failed")
		rn.logger.Error("failed to save checkpoint", "error", err)
		return
	}
	metrics.ObserveCheckpointSave("saved")
}

func (w *KeywordWorker) publish(ctx context.Context, rn *run, ev *events.Event) {
	if err := w.deps.Publisher.Publish(ctx, ev); err != nil {
		rn.logger.Warn("failed to publish event", "type", ev.EventType, "error", err)
	}
}

func (w *KeywordWorker) report(rn *run) {
	st := rn.state
	w.progress(Progress{
		Keyword:   rn.task.Keyword,
		Stage:     rn.res.Stage,
		Processed: len(st.ProcessedURLs),
		Total:     st.Metadata.TotalURLs,
		Products:  len(st.AccumulatedRecords),
		Reviews:   models.TotalReviews(st.AccumulatedRecords),
		Resumed:   rn.res.Resumed,
		UpdatedAt: w.now(),
	})
}

func productFailure(err error) string {
	switch {
	case errors.Is(err, scraper.ErrProductNotFound):
		return "not_found"
	case errors.Is(err, scraper.ErrPageNotReady):
		return "not_ready"
	case errors.Is(err, browser.ErrBlocked):
		return "blocked"
	default:
		return "failed"
	}
}

// disabledStore is used when checkpoints are turned off.
type disabledStore struct{}

func (disabledStore) Load(string) (*checkpoint.State, error) { return nil, checkpoint.ErrNotFound }

func (disabledStore) Save(string, *checkpoint.State) (bool, error) { return false, nil }

func (disabledStore) ForceSave(string, *checkpoint.State) error { return nil }

func (disabledStore) Clear(string) error { return nil }

type nopFeedback struct{}

func (nopFeedback) RecordSuccess() {}

func (nopFeedback) RecordError() {}
