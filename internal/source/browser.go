package source

import (
	"context"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Browser owns the shared rod browser the report sources navigate with.
type Browser struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// LaunchBrowser starts a local Chrome and connects to it.
func LaunchBrowser(headless bool) (*Browser, error) {
	l := launcher.New().Headless(headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, eris.Wrap(err, "browser: launch chrome")
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, eris.Wrap(err, "browser: connect")
	}
	return &Browser{browser: b, lnch: l}, nil
}

// Close shuts the browser down and cleans up the launcher.
func (b *Browser) Close() error {
	err := b.browser.Close()
	b.lnch.Cleanup()
	return eris.Wrap(err, "browser: close")
}

// OpenPage creates a stealth page and navigates it to pageURL, bounded by
// navTimeout. The exchange sites block obvious automation, hence stealth.
func (b *Browser) OpenPage(ctx context.Context, pageURL string, navTimeout time.Duration) (*rod.Page, error) {
	page, err := stealth.Page(b.browser)
	if err != nil {
		return nil, eris.Wrap(err, "browser: create page")
	}

	navCtx, cancel := context.WithTimeout(ctx, navTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		_ = page.Close()
		return nil, eris.Wrapf(err, "browser: navigate %s", pageURL)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		_ = page.Close()
		return nil, eris.Wrapf(err, "browser: wait load %s", pageURL)
	}
	return page, nil
}

// saveScreenshot captures a full-page screenshot to path. Best-effort by
// contract: callers log the error and never let it replace the failure
// that triggered the capture.
func saveScreenshot(page *rod.Page, path string) error {
	data, err := page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return eris.Wrap(err, "browser: capture screenshot")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "browser: write screenshot %s", path)
	}
	zap.L().Info("browser: saved debug screenshot", zap.String("path", path))
	return nil
}
