package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSessionClosed means the renderer session died and cannot be used again.
	ErrSessionClosed = errors.New("renderer session closed")
	// ErrBlocked means the site served an access-denied page instead of content.
	ErrBlocked = errors.New("access denied by site")
	// ErrWaitTimeout means a selector did not appear within the given timeout.
	ErrWaitTimeout = errors.New("timed out waiting for selector")
)

// Element is a handle to one matched node of the current page.
type Element interface {
	IsVisible() (bool, error)
	IsEnabled() (bool, error)
	Text() (string, error)
	Click() error
	// ForceClick dispatches a click without actionability checks.
	ForceClick() error
	Attribute(name string) (string, error)
}

// Renderer is one live page session. Selectors starting with "//" are XPath.
type Renderer interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	Eval(ctx context.Context, script string, args ...any) (any, error)
	Find(ctx context.Context, selector string) ([]Element, error)
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	Close() error
}

// IsSessionClosed reports whether err means the renderer is gone.
func IsSessionClosed(err error) bool {
	return errors.Is(err, ErrSessionClosed)
}
