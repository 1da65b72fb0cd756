package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/maltedev/nykaa-review-scraper/internal/metrics"
)

// Factory provisions a fresh renderer session.
type Factory func(ctx context.Context) (Renderer, error)

// Pool maps worker ids to the renderer each worker owns. A renderer is
// created on the worker's first Acquire and torn down by Release or Reset;
// renderers are never shared between ids.
type Pool struct {
	factory Factory
	logger  *slog.Logger

	mu        sync.Mutex
	renderers map[int]Renderer
	created   int
}

func NewPool(factory Factory, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		factory:   factory,
		logger:    logger.With("component", "renderer_pool"),
		renderers: make(map[int]Renderer),
	}
}

// Acquire returns the renderer owned by id, creating it if needed.
func (p *Pool) Acquire(ctx context.Context, id int) (Renderer, error) {
	p.mu.Lock()
	if r, ok := p.renderers[id]; ok {
		p.mu.Unlock()
		return r, nil
	}
	p.mu.Unlock()

	r, err := p.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to provision renderer for worker %d: %w", id, err)
	}

	p.mu.Lock()
	p.renderers[id] = r
	p.created++
	p.mu.Unlock()

	metrics.ObserveRendererProvisioned()
	p.logger.Debug("renderer created", "worker_id", id)
	return r, nil
}

// Reset closes the renderer of id so the next Acquire provisions a new one.
func (p *Pool) Reset(id int) {
	p.drop(id, "renderer reset")
}

// Release closes the renderer of id when its worker is done.
func (p *Pool) Release(id int) {
	p.drop(id, "renderer released")
}

func (p *Pool) drop(id int, msg string) {
	p.mu.Lock()
	r, ok := p.renderers[id]
	delete(p.renderers, id)
	p.mu.Unlock()

	if !ok {
		return
	}
	if err := r.Close(); err != nil {
		p.logger.Warn("failed to close renderer", "worker_id", id, "error", err)
	}
	p.logger.Debug(msg, "worker_id", id)
}

// CloseAll closes every live renderer.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	ids := make([]int, 0, len(p.renderers))
	for id := range p.renderers {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.Release(id)
	}
}

// Size is the number of live renderers.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.renderers)
}

// Created counts renderers provisioned over the pool's lifetime.
func (p *Pool) Created() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}
