package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Session is a Renderer backed by one playwright browser context and page.
type Session struct {
	context playwright.BrowserContext
	page    playwright.Page
	opts    *Options
	logger  *slog.Logger
}

var _ Renderer = (*Session)(nil)

// Navigate loads url, retrying with a linearly growing pause. A page that
// carries one of the blocked markers yields ErrBlocked.
func (s *Session) Navigate(ctx context.Context, url string) error {
	retries := s.opts.NavigationRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for i := 0; i < retries; i++ {
		if i > 0 {
			s.logger.Info("retrying navigation", "attempt", i+1, "url", url)
			if err := sleep(ctx, time.Duration(i)*s.opts.RetryBackoff); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		_, err := s.page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(s.opts.Timeout.Milliseconds())),
		})
		if err == nil {
			return s.checkBlocked(url)
		}

		if s.closed(err) {
			return fmt.Errorf("failed to navigate to %s: %w", url, ErrSessionClosed)
		}
		lastErr = err
		s.logger.Error("navigation failed", "error", err, "attempt", i+1)
	}

	return fmt.Errorf("failed after %d retries: %w", retries, lastErr)
}

func (s *Session) checkBlocked(url string) error {
	title, err := s.page.Title()
	if err != nil {
		return s.wrap("failed to get page title", err)
	}

	content, err := s.page.Content()
	if err != nil {
		return s.wrap("failed to get page content", err)
	}

	for _, marker := range s.opts.BlockedMarkers {
		if strings.Contains(title, marker) || strings.Contains(content, marker) {
			s.logger.Warn("blocked page detected", "url", url, "marker", marker)
			return fmt.Errorf("%s: %w", url, ErrBlocked)
		}
	}
	return nil
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content, err := s.page.Content()
	if err != nil {
		return "", s.wrap("failed to get page content", err)
	}
	return content, nil
}

// Eval runs a script in the page. Statement-style snippets with a trailing
// semicolon are accepted.
func (s *Session) Eval(ctx context.Context, script string, args ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	script = strings.TrimRight(strings.TrimSpace(script), ";")
	v, err := s.page.Evaluate(script, args...)
	if err != nil {
		return nil, s.wrap("failed to evaluate script", err)
	}
	return v, nil
}

func (s *Session) Find(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	locators, err := s.page.Locator(selector).All()
	if err != nil {
		return nil, s.wrap("failed to query "+selector, err)
	}

	elems := make([]Element, 0, len(locators))
	for _, loc := range locators {
		elems = append(elems, &locatorElement{loc: loc, session: s})
	}
	return elems, nil
}

func (s *Session) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%s: %w", selector, ErrWaitTimeout)
	}
	return s.wrap("failed to wait for "+selector, err)
}

func (s *Session) Close() error {
	var errs []error

	if s.page != nil && !s.page.IsClosed() {
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close page: %w", err))
		}
	}

	if s.context != nil {
		if err := s.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}

func (s *Session) closed(err error) bool {
	return errors.Is(err, playwright.ErrTargetClosed) || s.page.IsClosed()
}

// wrap maps driver errors onto ErrSessionClosed when the page is gone.
func (s *Session) wrap(msg string, err error) error {
	if s.closed(err) {
		return fmt.Errorf("%s: %w", msg, ErrSessionClosed)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

type locatorElement struct {
	loc     playwright.Locator
	session *Session
}

func (e *locatorElement) IsVisible() (bool, error) {
	v, err := e.loc.IsVisible()
	if err != nil {
		return false, e.session.wrap("failed to check visibility", err)
	}
	return v, nil
}

func (e *locatorElement) IsEnabled() (bool, error) {
	v, err := e.loc.IsEnabled(playwright.LocatorIsEnabledOptions{Timeout: playwright.Float(2000)})
	if err != nil {
		return false, e.session.wrap("failed to check enabled state", err)
	}
	return v, nil
}

func (e *locatorElement) Text() (string, error) {
	text, err := e.loc.TextContent(playwright.LocatorTextContentOptions{Timeout: playwright.Float(2000)})
	if err != nil {
		return "", e.session.wrap("failed to read text", err)
	}
	return strings.TrimSpace(text), nil
}

func (e *locatorElement) Click() error {
	if err := e.loc.ScrollIntoViewIfNeeded(); err != nil && e.session.closed(err) {
		return e.session.wrap("failed to scroll to element", err)
	}
	if err := e.loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(5000)}); err != nil {
		return e.session.wrap("failed to click", err)
	}
	return nil
}

func (e *locatorElement) ForceClick() error {
	err := e.loc.Click(playwright.LocatorClickOptions{
		Force:   playwright.Bool(true),
		Timeout: playwright.Float(5000),
	})
	if err == nil {
		return nil
	}
	if e.session.closed(err) {
		return e.session.wrap("failed to force click", err)
	}

	if _, err := e.loc.Evaluate("el => el.click()", nil); err != nil {
		return e.session.wrap("failed to dispatch click", err)
	}
	return nil
}

func (e *locatorElement) Attribute(name string) (string, error) {
	v, err := e.loc.GetAttribute(name, playwright.LocatorGetAttributeOptions{Timeout: playwright.Float(2000)})
	if err != nil {
		return "", e.session.wrap("failed to read attribute "+name, err)
	}
	return v, nil
}

func sleep(ctx context.Context, d time.Duration) error {
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
