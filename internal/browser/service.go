package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/rod/lib/utils"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("browser session is closed")

// Options configure the launched browser.
type Options struct {
	Headless    bool
	UserDataDir string
	Width       int
	Height      int
	// Timeout bounds element lookups and single actions.
	Timeout time.Duration
}

// BrowserService owns one browser and its active page.
type BrowserService struct {
	browser *rod.Browser
	page    *rod.Page
	timeout time.Duration
	logger  *zap.Logger

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

// NewBrowserService launches a browser and opens a stealth page.
func NewBrowserService(ctx context.Context, opts Options, logger *zap.Logger) (*BrowserService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	launch := launcher.New().
		Leakless(true).
		Headless(opts.Headless)
	if opts.UserDataDir != "" {
		launch = launch.UserDataDir(opts.UserDataDir)
	}

	controlURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("create stealth page: %w", err)
	}

	if opts.Width > 0 && opts.Height > 0 {
		scale := 1.0
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:  opts.Width,
			Height: opts.Height,
			Scale:  &scale,
			Mobile: false,
		}); err != nil {
			logger.Warn("failed to set viewport", zap.Error(err))
		}
	}

	logger.Info("browser launched", zap.Bool("headless", opts.Headless), zap.String("control_url", controlURL))

	return &BrowserService{
		browser: browser,
		page:    page,
		timeout: opts.Timeout,
		logger:  logger,
	}, nil
}

// URL returns the address of the active page, or "" when it is unavailable.
func (s *BrowserService) URL() string {
	if s.page == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Content returns the serialized markup of the active page.
func (s *BrowserService) Content(ctx context.Context) (string, error) {
	if s.closed {
		return "", ErrClosed
	}
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("page content: %w", err)
	}
	return html, nil
}

// Screenshot captures the viewport as PNG and, when path is set, writes it there too.
func (s *BrowserService) Screenshot(ctx context.Context, path string) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}
	img, err := s.page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	if path != "" {
		if err := utils.OutputFile(path, img); err != nil {
			return img, fmt.Errorf("save screenshot: %w", err)
		}
	}
	return img, nil
}

// Close closes the page, then the browser. Safe to call more than once.
func (s *BrowserService) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true
		var errs []error
		if s.page != nil {
			if err := s.page.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close page: %w", err))
			}
		}
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close browser: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
		s.logger.Info("browser closed")
	})
	return s.closeErr
}
