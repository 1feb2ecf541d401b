// Package screenshot captures homepage screenshots with headless Chrome.
package screenshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	defaultWidth      = 1280
	defaultHeight     = 800
	defaultNavTimeout = 30 * time.Second
)

// Config controls the capture.
type Config struct {
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
	ExecPath          string
	UserAgent         string
}

// Capturer renders a URL in a fresh headless Chrome and saves the viewport.
type Capturer struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a Capturer. Zero values fall back to a 1280x800 viewport and
// a 30 second navigation bound.
func New(cfg Config, logger *zap.Logger) (*Capturer, error) {
	if cfg.ViewportWidth < 0 || cfg.ViewportHeight < 0 {
		return nil, fmt.Errorf("viewport dimensions must be >= 0")
	}
	if cfg.ViewportWidth == 0 {
		cfg.ViewportWidth = defaultWidth
	}
	if cfg.ViewportHeight == 0 {
		cfg.ViewportHeight = defaultHeight
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Capturer{cfg: cfg, logger: logger}, nil
}

// FormatFor picks the encoding from the output extension: .webp selects
// WebP, everything else PNG.
func FormatFor(outputPath string) page.CaptureScreenshotFormat {
	if strings.EqualFold(filepath.Ext(outputPath), ".webp") {
		return page.CaptureScreenshotFormatWebp
	}
	return page.CaptureScreenshotFormatPng
}

// ContentType returns the MIME type matching FormatFor.
func ContentType(outputPath string) string {
	if FormatFor(outputPath) == page.CaptureScreenshotFormatWebp {
		return "image/webp"
	}
	return "image/png"
}

// Capture launches an isolated browser, loads url (waiting for the load
// event, bounded by the navigation timeout), screenshots the viewport and
// writes it to outputPath. The browser is torn down on every return path.
func (c *Capturer) Capture(ctx context.Context, url, outputPath string) error {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	start := time.Now()
	// The first Run starts the browser; it must not carry the navigation
	// deadline or the browser would die with it.
	if err := chromedp.Run(browserCtx, chromedp.EmulateViewport(
		int64(c.cfg.ViewportWidth),
		int64(c.cfg.ViewportHeight),
	)); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}

	if err := c.navigate(browserCtx, url); err != nil {
		return err
	}

	img, err := c.screenshot(browserCtx, FormatFor(outputPath))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o750); err != nil {
		return fmt.Errorf("create screenshot dir for %s: %w", outputPath, err)
	}
	if err := os.WriteFile(outputPath, img, 0o644); err != nil { //nolint:gosec // showcase images are public assets
		return fmt.Errorf("write screenshot %s: %w", outputPath, err)
	}

	c.logger.Debug("screenshot captured",
		zap.String("url", url),
		zap.String("path", outputPath),
		zap.Int("bytes", len(img)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (c *Capturer) navigate(browserCtx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(browserCtx, c.cfg.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (c *Capturer) screenshot(browserCtx context.Context, format page.CaptureScreenshotFormat) ([]byte, error) {
	shotCtx, cancel := context.WithTimeout(browserCtx, c.cfg.NavigationTimeout)
	defer cancel()

	var img []byte
	err := chromedp.Run(shotCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		buf, err := page.CaptureScreenshot().WithFormat(format).Do(ctx)
		if err != nil {
			return err
		}
		img = buf
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return img, nil
}

func (c *Capturer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(c.cfg.ViewportWidth, c.cfg.ViewportHeight),
	)
	if c.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
	}
	if c.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.cfg.UserAgent))
	}
	return opts
}
