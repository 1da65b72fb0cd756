// Package browsertest provides a scripted in-memory renderer.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maltedev/nykaa-review-scraper/internal/browser"
)

// Renderer serves canned pages and elements. Hooks, when set, replace the
// default behavior of the matching method. All methods fail with
// browser.ErrSessionClosed once Kill has been called.
type Renderer struct {
	mu sync.Mutex

	Pages       map[string]string
	NavigateErr map[string]error
	Elements    map[string][]*Element

	OnNavigate func(url string) error
	HTMLFunc   func() (string, error)
	FindFunc   func(selector string) ([]browser.Element, error)
	EvalFunc   func(script string) (any, error)
	WaitFunc   func(selector string) error

	current     string
	dead        bool
	closed      bool
	navigations []string
	scripts     []string
	waits       []string
}

var _ browser.Renderer = (*Renderer)(nil)

func New() *Renderer {
	return &Renderer{
		Pages:       make(map[string]string),
		NavigateErr: make(map[string]error),
		Elements:    make(map[string][]*Element),
	}
}

// Kill simulates a crashed session.
func (r *Renderer) Kill() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dead = true
}

func (r *Renderer) SetHTML(html string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = html
}

func (r *Renderer) Navigate(_ context.Context, url string) error {
	r.mu.Lock()
	if r.dead {
		r.mu.Unlock()
		return browser.ErrSessionClosed
	}
	r.navigations = append(r.navigations, url)
	hook := r.OnNavigate
	err := r.NavigateErr[url]
	if err == nil {
		r.current = r.Pages[url]
	}
	r.mu.Unlock()

	if hook != nil {
		if herr := hook(url); herr != nil {
			return herr
		}
	}
	return err
}

func (r *Renderer) HTML(_ context.Context) (string, error) {
	r.mu.Lock()
	if r.dead {
		r.mu.Unlock()
		return "", browser.ErrSessionClosed
	}
	hook := r.HTMLFunc
	current := r.current
	r.mu.Unlock()

	if hook != nil {
		return hook()
	}
	return current, nil
}

func (r *Renderer) Eval(_ context.Context, script string, _ ...any) (any, error) {
	r.mu.Lock()
	if r.dead {
		r.mu.Unlock()
		return nil, browser.ErrSessionClosed
	}
	r.scripts = append(r.scripts, script)
	hook := r.EvalFunc
	r.mu.Unlock()

	if hook != nil {
		return hook(script)
	}
	return nil, nil
}

func (r *Renderer) Find(_ context.Context, selector string) ([]browser.Element, error) {
	r.mu.Lock()
	if r.dead {
		r.mu.Unlock()
		return nil, browser.ErrSessionClosed
	}
	hook := r.FindFunc
	elems := r.Elements[selector]
	r.mu.Unlock()

	if hook != nil {
		return hook(selector)
	}

	out := make([]browser.Element, 0, len(elems))
	for _, el := range elems {
		out = append(out, el)
	}
	return out, nil
}

// WaitFor succeeds when the current page is non-empty, unless WaitFunc says
// otherwise.
func (r *Renderer) WaitFor(_ context.Context, selector string, _ time.Duration) error {
	r.mu.Lock()
	if r.dead {
		r.mu.Unlock()
		return browser.ErrSessionClosed
	}
	r.waits = append(r.waits, selector)
	hook := r.WaitFunc
	empty := r.current == ""
	r.mu.Unlock()

	if hook != nil {
		return hook(selector)
	}
	if empty {
		return fmt.Errorf("%s: %w", selector, browser.ErrWaitTimeout)
	}
	return nil
}

func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *Renderer) Navigations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.navigations...)
}

func (r *Renderer) Scripts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.scripts...)
}

func (r *Renderer) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Element is a scripted element handle.
type Element struct {
	mu sync.Mutex

	Label    string
	Visible  bool
	Enabled  bool
	Attrs    map[string]string
	ClickErr error
	// OnClick runs after every successful click of either kind.
	OnClick func()

	clicks      int
	forceClicks int
}

var _ browser.Element = (*Element)(nil)

// Button returns a visible, enabled element with the given text.
func Button(label string) *Element {
	return &Element{Label: label, Visible: true, Enabled: true}
}

func (e *Element) IsVisible() (bool, error) { return e.Visible, nil }

func (e *Element) IsEnabled() (bool, error) { return e.Enabled, nil }

func (e *Element) Text() (string, error) { return e.Label, nil }

func (e *Element) Click() error {
	e.mu.Lock()
	if e.ClickErr != nil {
		e.mu.Unlock()
		return e.ClickErr
	}
	e.clicks++
	hook := e.OnClick
	e.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (e *Element) ForceClick() error {
	e.mu.Lock()
	e.forceClicks++
	hook := e.OnClick
	e.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (e *Element) Attribute(name string) (string, error) {
	return e.Attrs[name], nil
}

func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

func (e *Element) ForceClicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.forceClicks
}
