// Package jobs runs keyword workers: one state machine per keyword, a fixed
// pool of goroutines each owning one renderer, and the aggregate run stats.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/nykaa-review-scraper/internal/app"
	"github.com/maltedev/nykaa-review-scraper/internal/browser"
	"github.com/maltedev/nykaa-review-scraper/internal/checkpoint"
	"github.com/maltedev/nykaa-review-scraper/internal/metrics"
	"github.com/maltedev/nykaa-review-scraper/internal/output"
	"github.com/maltedev/nykaa-review-scraper/internal/queue"
	"golang.org/x/sync/errgroup"
)

var errNotStarted = errors.New("run stopped before keyword started")

// Progress is the live view of one keyword.
type Progress struct {
	Keyword   string    `json:"keyword"`
	Worker    int       `json:"worker"`
	Stage     Stage     `json:"stage"`
	Processed int       `json:"processed_urls"`
	Total     int       `json:"total_urls"`
	Products  int       `json:"products"`
	Reviews   int       `json:"reviews"`
	Resumed   bool      `json:"resumed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stats represents the run as seen by the status API.
type Stats struct {
	RunID     string                  `json:"run_id"`
	StartedAt time.Time               `json:"started_at"`
	Running   bool                    `json:"running"`
	Workers   int                     `json:"workers"`
	Pending   int                     `json:"pending_keywords"`
	Active    []Progress              `json:"active"`
	Finished  []output.KeywordSummary `json:"finished"`
	Products  int                     `json:"total_products"`
	Reviews   int                     `json:"total_reviews"`
}

// Pool hands out one renderer per worker id.
type Pool interface {
	Acquire(ctx context.Context, id int) (browser.Renderer, error)
	Reset(id int)
	Release(id int)
}

type Manager struct {
	env    *app.Env
	pool   Pool
	deps   Deps
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	runID     string
	startedAt time.Time
	running   bool
	workers   int
	queue     queue.Queue
	active    map[string]Progress
	finished  []output.KeywordSummary
}

func NewManager(env *app.Env, pool Pool, deps Deps) *Manager {
	return &Manager{
		env:    env,
		pool:   pool,
		deps:   deps,
		logger: env.Log("job_manager"),
		now:    time.Now,
		active: make(map[string]Progress),
	}
}

// Run scrapes every keyword and returns the run summary. Keyword failures
// are recorded in the summary; the returned error is reserved for
// renderer provisioning failures, which stop the whole run.
func (m *Manager) Run(ctx context.Context, keywords []string) (*output.RunSummary, error) {
	cfg := m.env.Config
	keywords = m.uniqueKeywords(keywords)
	workers := cfg.EffectiveWorkers(len(keywords))

	q := queue.NewInMemoryQueue()
	tasks := make([]*queue.Task, 0, len(keywords))
	for _, kw := range keywords {
		tasks = append(tasks, queue.NewTask(kw, cfg.Scraper.MaxProducts))
	}
	if err := queue.NewBatchQueue(q, len(tasks)).PushBatch(tasks); err != nil {
		return nil, fmt.Errorf("failed to queue keywords: %w", err)
	}
	_ = q.Close()

	m.mu.Lock()
	m.runID = uuid.New().String()
	m.startedAt = m.now()
	m.running = true
	m.workers = workers
	m.queue = q
	m.active = make(map[string]Progress)
	m.finished = nil
	m.mu.Unlock()

	m.logger.Info("starting run",
		"run_id", m.runID,
		"keywords", len(keywords),
		"workers", workers,
		"max_products", cfg.Scraper.MaxProducts,
		"max_reviews", cfg.Reviews.MaxReviews,
		"fast_mode", cfg.FastMode,
	)

	g, gctx := errgroup.WithContext(ctx)
	for id := 0; id < workers; id++ {
		g.Go(func() error {
			return m.work(gctx, id, q)
		})
	}
	err := g.Wait()

	m.drainUnstarted(q)

	m.mu.Lock()
	m.running = false
	summary := &output.RunSummary{
		RunID:      m.runID,
		StartedAt:  m.startedAt,
		FinishedAt: m.now(),
		Keywords:   keywords,
		Workers:    workers,
		FastMode:   cfg.FastMode,
		Summaries:  orderByKeywords(m.finished, keywords),
	}
	m.mu.Unlock()

	m.logger.Info("run finished",
		"run_id", summary.RunID,
		"products", summary.TotalProducts(),
		"reviews", summary.TotalReviews(),
		"completed", summary.CountByStatus(output.StatusCompleted),
		"interrupted", summary.CountByStatus(output.StatusInterrupted),
		"errored", summary.CountByStatus(output.StatusError),
	)

	return summary, err
}

// uniqueKeywords drops repeats that would share a checkpoint file, keeping
// the first occurrence. Each keyword must have a single writer.
func (m *Manager) uniqueKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		key := checkpoint.FileKey(kw)
		if _, ok := seen[key]; ok {
			m.logger.Warn("skipping duplicate keyword", "keyword", kw)
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// work pulls keywords until the queue is drained. The renderer is created
// on the first keyword and released when the worker exits.
func (m *Manager) work(ctx context.Context, id int, q queue.Queue) error {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	defer m.pool.Release(id)

	logger := m.logger.With("worker", id)
	worker := NewKeywordWorker(m.env, m.deps).WithProgress(func(p Progress) {
		p.Worker = id
		m.update(p)
	})

	for {
		if ctx.Err() != nil {
			return nil
		}

		task, err := q.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) {
				logger.Debug("no keywords left")
			}
			return nil
		}

		r, err := m.pool.Acquire(ctx, id)
		if err != nil {
			m.record(&Result{Keyword: task.Keyword, Stage: StageErrored, Err: err})
			return fmt.Errorf("failed to provision renderer for worker %d: %w", id, err)
		}

		logger.Info("processing keyword", "keyword", task.Keyword)
		res := worker.Run(ctx, r, task)
		if browser.IsSessionClosed(res.Err) {
			logger.Warn("renderer session lost, replacing", "keyword", task.Keyword)
			m.pool.Reset(id)
		}
		m.record(res)
	}
}

// drainUnstarted records keywords left in the queue after a stop.
func (m *Manager) drainUnstarted(q queue.Queue) {
	for {
		task, err := q.TryPop()
		if err != nil {
			return
		}
		m.record(&Result{Keyword: task.Keyword, Stage: StageInterrupted, Err: errNotStarted})
	}
}

func (m *Manager) update(p Progress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[p.Keyword] = p
}

func (m *Manager) record(res *Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, res.Keyword)
	m.finished = append(m.finished, res.Summary())
}

// Stats returns a snapshot of the current or last run.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		RunID:     m.runID,
		StartedAt: m.startedAt,
		Running:   m.running,
		Workers:   m.workers,
		Active:    make([]Progress, 0, len(m.active)),
		Finished:  append([]output.KeywordSummary(nil), m.finished...),
	}
	if m.queue != nil {
		s.Pending = m.queue.Size()
	}
	for _, p := range m.active {
		s.Active = append(s.Active, p)
		s.Products += p.Products
		s.Reviews += p.Reviews
	}
	for _, f := range m.finished {
		s.Products += f.TotalProducts
		s.Reviews += f.TotalReviews
	}
	sort.Slice(s.Active, func(i, j int) bool { return s.Active[i].Worker < s.Active[j].Worker })
	return s
}

// orderByKeywords puts summaries in the order keywords were given.
func orderByKeywords(summaries []output.KeywordSummary, keywords []string) []output.KeywordSummary {
	rank := make(map[string]int, len(keywords))
	for i, kw := range keywords {
		if _, ok := rank[kw]; !ok {
			rank[kw] = i
		}
	}
	out := append([]output.KeywordSummary(nil), summaries...)
	sort.SliceStable(out, func(i, j int) bool { return rank[out[i].Keyword] < rank[out[j].Keyword] })
	return out
}
