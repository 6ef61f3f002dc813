package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

const maxInnerText = 5000

var keys = map[string]input.Key{
	"enter":     input.Enter,
	"escape":    input.Escape,
	"tab":       input.Tab,
	"backspace": input.Backspace,
	"arrowdown": input.ArrowDown,
	"arrowup":   input.ArrowUp,
	"space":     input.Space,
}

// ============================================================
// NAVIGATE
// ============================================================
func (s *BrowserService) Goto(ctx context.Context, url string) error {
	if s.closed {
		return ErrClosed
	}
	navCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := s.page.Context(navCtx).Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	s.safeWaitLoad(ctx, 5*time.Second)
	return nil
}

// ============================================================
// CLICK
// ============================================================
func (s *BrowserService) Click(ctx context.Context, selector string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}

	existingIDs := make(map[string]bool)
	if pagesBefore, err := s.browser.Pages(); err == nil {
		for _, p := range pagesBefore {
			if info, err := p.Info(); err == nil {
				existingIDs[string(info.TargetID)] = true
			}
		}
	}

	s.highlight(ctx, el, HighlightClickScript)

	clickCtx, clickCancel := context.WithTimeout(ctx, s.timeout)
	defer clickCancel()

	if err := el.Context(clickCtx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		s.logger.Debug("native click failed, trying JS", zap.String("selector", selector), zap.Error(err))
		jsCtx, jsCancel := context.WithTimeout(ctx, 3*time.Second)
		defer jsCancel()
		if _, jsErr := el.Context(jsCtx).Eval(ForceClickScript); jsErr != nil {
			return fmt.Errorf("click %s: %w", selector, jsErr)
		}
	}

	if newPage := s.waitForNewTab(ctx, existingIDs, 2*time.Second); newPage != nil {
		s.logger.Info("switched to new tab", zap.String("url", safeGetURL(newPage)))
		s.activatePage(ctx, newPage)
	} else {
		s.safeWaitLoad(ctx, 2*time.Second)
	}
	return nil
}

// ============================================================
// FILL (replaces the current value)
// ============================================================
func (s *BrowserService) Fill(ctx context.Context, selector, text string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	s.highlight(ctx, el, HighlightTypeScript)

	actCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	el = el.Context(actCtx)

	if err := el.SelectAllText(); err != nil {
		s.logger.Debug("select all text failed", zap.String("selector", selector), zap.Error(err))
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

// ============================================================
// PRESS (optionally focusing selector first)
// ============================================================
func (s *BrowserService) Press(ctx context.Context, selector, key string) error {
	k, ok := keys[strings.ToLower(key)]
	if !ok {
		return fmt.Errorf("unsupported key: %s", key)
	}

	if selector != "" {
		el, err := s.element(ctx, selector)
		if err != nil {
			return err
		}
		if err := el.Focus(); err != nil {
			return fmt.Errorf("focus %s: %w", selector, err)
		}
	}

	if err := s.page.Keyboard.Press(k); err != nil {
		return fmt.Errorf("press %s: %w", key, err)
	}
	s.safeWaitLoad(ctx, 2*time.Second)
	return nil
}

// ============================================================
// WAIT FOR (element present and visible)
// ============================================================
func (s *BrowserService) WaitFor(ctx context.Context, selector string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := el.Context(waitCtx).WaitVisible(); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

// ============================================================
// INNER TEXT
// ============================================================
func (s *BrowserService) InnerText(ctx context.Context, selector string) (string, error) {
	el, err := s.element(ctx, selector)
	if err != nil {
		return "", err
	}
	s.highlight(ctx, el, HighlightReadScript)

	text, err := el.Context(ctx).Text()
	if err != nil {
		return "", fmt.Errorf("read text %s: %w", selector, err)
	}
	if len(text) > maxInnerText {
		text = text[:maxInnerText] + "...(truncated)"
	}
	return text, nil
}

// ============================================================
// GO BACK
// ============================================================
func (s *BrowserService) GoBack(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	backCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.page.Context(backCtx).NavigateBack(); err != nil {
		return fmt.Errorf("go back: %w", err)
	}
	s.safeWaitLoad(ctx, 3*time.Second)
	return nil
}

// ============================================================
// SCROLL
// ============================================================
func (s *BrowserService) Scroll(ctx context.Context, direction string) error {
	if s.closed {
		return ErrClosed
	}
	script := ScrollDownScript
	if direction == "up" {
		script = ScrollUpScript
	}

	scrollCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if _, err := s.page.Context(scrollCtx).Eval(script); err != nil {
		return fmt.Errorf("scroll %s: %w", direction, err)
	}
	time.Sleep(300 * time.Millisecond)
	return nil
}

// ============================================================
// helpers
// ============================================================

func (s *BrowserService) element(ctx context.Context, selector string) (*rod.Element, error) {
	if s.closed {
		return nil, ErrClosed
	}
	el, err := s.page.Context(ctx).Timeout(s.timeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("element %q not found: %w", selector, err)
	}
	// drop the lookup timeout from the returned element
	return el.CancelTimeout(), nil
}

func (s *BrowserService) highlight(ctx context.Context, el *rod.Element, script string) {
	hlCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, _ = el.Context(hlCtx).Eval(script)
}

func (s *BrowserService) waitForNewTab(ctx context.Context, existingIDs map[string]bool, timeout time.Duration) *rod.Page {
	deadline := time.After(timeout)
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			return nil
		case <-ticker.C:
			pages, err := s.browser.Pages()
			if err != nil {
				continue
			}
			for _, p := range pages {
				info, err := p.Info()
				if err != nil {
					continue
				}
				if !existingIDs[string(info.TargetID)] {
					return p
				}
			}
		}
	}
}

func (s *BrowserService) safeWaitLoad(ctx context.Context, timeout time.Duration) {
	done := make(chan struct{})

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Warn("panic while waiting for page load", zap.Any("panic", r))
			}
			close(done)
		}()

		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		_ = s.page.Context(waitCtx).WaitLoad()
	}()

	select {
	case <-done:
	case <-time.After(timeout + 1*time.Second):
		s.logger.Warn("page load timed out, continuing", zap.Duration("timeout", timeout))
	}
}

func (s *BrowserService) activatePage(ctx context.Context, page *rod.Page) {
	actCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if _, err := page.Context(actCtx).Activate(); err != nil {
		s.logger.Warn("failed to activate tab", zap.Error(err))
		return
	}
	s.page = page
	s.safeWaitLoad(ctx, 3*time.Second)
}

func safeGetURL(page *rod.Page) string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	info, err := page.Context(ctx).Info()
	if err != nil {
		return "<url unavailable>"
	}
	return info.URL
}
