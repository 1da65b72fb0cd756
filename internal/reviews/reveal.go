package reviews

import (
	"context"
	"strings"

	"github.com/maltedev/nykaa-review-scraper/internal/browser"
)

// endReached reports whether any end-of-reviews indicator is visible.
func (c *Collector) endReached(ctx context.Context) (bool, error) {
	for _, sel := range c.sel.EndIndicators {
		elems, err := c.renderer.Find(ctx, sel)
		if err != nil {
			if browser.IsSessionClosed(err) {
				return false, err
			}
			continue
		}
		for _, el := range elems {
			visible, err := el.IsVisible()
			if err != nil {
				if browser.IsSessionClosed(err) {
					return false, err
				}
				continue
			}
			if visible {
				text, _ := el.Text()
				c.logger.Debug("end indicator found", "selector", sel, "text", text)
				return true, nil
			}
		}
	}
	return false, nil
}

// scroll runs every scroll script, pausing after each so lazy content can
// attach.
func (c *Collector) scroll(ctx context.Context) error {
	for _, script := range c.sel.ScrollScripts {
		if _, err := c.renderer.Eval(ctx, script); err != nil {
			if browser.IsSessionClosed(err) {
				return err
			}
			c.logger.Debug("scroll script failed", "error", err)
		}
		if err := c.sleep(ctx, c.opts.ScrollPause); err != nil {
			return err
		}
	}
	return nil
}

// findLoadMore returns the first visible, enabled control whose label
// passes the phrase filter.
func (c *Collector) findLoadMore(ctx context.Context) (browser.Element, error) {
	for _, sel := range c.sel.LoadMore {
		elems, err := c.renderer.Find(ctx, sel)
		if err != nil {
			if browser.IsSessionClosed(err) {
				return nil, err
			}
			continue
		}

		for _, el := range elems {
			ok, err := c.isLoadMore(el)
			if err != nil {
				if browser.IsSessionClosed(err) {
					return nil, err
				}
				continue
			}
			if ok {
				return el, nil
			}
		}
	}
	return nil, nil
}

func (c *Collector) isLoadMore(el browser.Element) (bool, error) {
	visible, err := el.IsVisible()
	if err != nil || !visible {
		return false, err
	}
	enabled, err := el.IsEnabled()
	if err != nil || !enabled {
		return false, err
	}

	label, err := el.Text()
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(label) == "" {
		if label, err = el.Attribute("aria-label"); err != nil {
			return false, err
		}
	}
	return c.AcceptsLabel(label), nil
}

// AcceptsLabel applies the block list first, then requires an allow phrase.
func (c *Collector) AcceptsLabel(label string) bool {
	label = strings.ToLower(strings.Join(strings.Fields(label), " "))
	if label == "" {
		return false
	}
	for _, phrase := range c.sel.BlockPhrases {
		if strings.Contains(label, strings.ToLower(phrase)) {
			return false
		}
	}
	for _, phrase := range c.sel.AllowPhrases {
		if strings.Contains(label, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// click tries a direct click, then a forced one.
func (c *Collector) click(el browser.Element) (bool, error) {
	err := el.Click()
	if err == nil {
		return true, nil
	}
	if browser.IsSessionClosed(err) {
		return false, err
	}
	c.logger.Debug("direct click failed, forcing", "error", err)

	if err := el.ForceClick(); err != nil {
		if browser.IsSessionClosed(err) {
			return false, err
		}
		c.logger.Debug("forced click failed", "error", err)
		return false, nil
	}
	return true, nil
}

// DismissPopups clicks the first visible popup close control, if any.
func (c *Collector) DismissPopups(ctx context.Context) error {
	for _, sel := range c.sel.Popups {
		elems, err := c.renderer.Find(ctx, sel)
		if err != nil {
			if browser.IsSessionClosed(err) {
				return err
			}
			continue
		}
		for _, el := range elems {
			if visible, err := el.IsVisible(); err != nil || !visible {
				if browser.IsSessionClosed(err) {
					return err
				}
				continue
			}
			if _, err := c.click(el); err != nil {
				return err
			}
			c.logger.Debug("popup dismissed", "selector", sel)
			return nil
		}
	}
	return nil
}
