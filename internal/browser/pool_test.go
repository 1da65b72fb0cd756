package browser_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/maltedev/nykaa-review-scraper/internal/browser"
	"github.com/maltedev/nykaa-review-scraper/internal/browser/browsertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingFactory struct {
	mu        sync.Mutex
	renderers []*browsertest.Renderer
	err       error
}

func (f *recordingFactory) New(_ context.Context) (browser.Renderer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	r := browsertest.New()
	f.renderers = append(f.renderers, r)
	return r, nil
}

func TestPool_AcquireIsLazyAndPerWorker(t *testing.T) {
	f := &recordingFactory{}
	pool := browser.NewPool(f.New, nil)
	ctx := context.Background()

	assert.Equal(t, 0, pool.Size())

	r1, err := pool.Acquire(ctx, 1)
	require.NoError(t, err)
	again, err := pool.Acquire(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, r1, again)

	r2, err := pool.Acquire(ctx, 2)
	require.NoError(t, err)
	assert.NotSame(t, r1, r2)

	assert.Equal(t, 2, pool.Size())
	assert.Equal(t, 2, pool.Created())
}

func TestPool_ResetProvisionsFreshRenderer(t *testing.T) {
	f := &recordingFactory{}
	pool := browser.NewPool(f.New, nil)
	ctx := context.Background()

	first, err := pool.Acquire(ctx, 7)
	require.NoError(t, err)

	pool.Reset(7)
	assert.True(t, f.renderers[0].Closed())
	assert.Equal(t, 0, pool.Size())

	second, err := pool.Acquire(ctx, 7)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, pool.Created())
}

func TestPool_ReleaseAndCloseAll(t *testing.T) {
	f := &recordingFactory{}
	pool := browser.NewPool(f.New, nil)
	ctx := context.Background()

	for id := 0; id < 3; id++ {
		_, err := pool.Acquire(ctx, id)
		require.NoError(t, err)
	}

	pool.Release(0)
	pool.Release(0)
	assert.Equal(t, 2, pool.Size())

	pool.CloseAll()
	assert.Equal(t, 0, pool.Size())
	for _, r := range f.renderers {
		assert.True(t, r.Closed())
	}
}

func TestPool_FactoryError(t *testing.T) {
	boom := errors.New("chromium missing")
	pool := browser.NewPool((&recordingFactory{err: boom}).New, nil)

	_, err := pool.Acquire(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, pool.Size())
}
