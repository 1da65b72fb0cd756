// Package app holds the environment threaded through every component:
// configuration, selector catalog and logger.
package app

import (
	"io"
	"log/slog"

	"github.com/maltedev/nykaa-review-scraper/internal/config"
)

type Env struct {
	Config    *config.Config
	Selectors *config.Selectors
	Logger    *slog.Logger
}

func New(cfg *config.Config, sel *config.Selectors, logger *slog.Logger) *Env {
	if sel == nil {
		sel = config.DefaultSelectors()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Env{
		Config:    cfg,
		Selectors: sel,
		Logger:    logger,
	}
}

// Log returns the environment logger tagged with a component name.
func (e *Env) Log(component string) *slog.Logger {
	return e.Logger.With("component", component)
}
