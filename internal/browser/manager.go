// File: internal/browser/manager.go

// Package browser implements the interaction surface over a headless
// Chrome instance driven through the DevTools protocol.
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/config"
)

// Manager owns the shared browser allocator. Each job gets its own tab via
// NewSurface; tabs are isolated from each other.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu       sync.Mutex
	sessions int

	initOnce sync.Once
}

// NewManager creates a browser manager. The browser process itself starts
// lazily with the first surface request.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger.Named("browser_manager"),
	}
}

// initialize builds the allocator once. Allocator construction cannot fail;
// a missing or broken browser binary surfaces from the first tab run in
// NewSurface.
func (m *Manager) initialize() {
	m.initOnce.Do(func() {
		opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		opts = append(opts,
			chromedp.Flag("headless", m.cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		if m.cfg.DisableCache {
			opts = append(opts, chromedp.Flag("disk-cache-size", "0"))
		}
		if m.cfg.IgnoreTLSErrors {
			opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
		}
		if m.cfg.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(m.cfg.UserAgent))
		}
		if w, h := m.cfg.Viewport["width"], m.cfg.Viewport["height"]; w > 0 && h > 0 {
			opts = append(opts, chromedp.WindowSize(w, h))
		}
		for _, arg := range m.cfg.Args {
			opts = append(opts, chromedp.Flag(arg, true))
		}

		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
		m.logger.Info("browser allocator ready", zap.Bool("headless", m.cfg.Headless))
	})
}

// NewSurface opens a fresh tab and verifies the browser answers.
func (m *Manager) NewSurface(ctx context.Context) (schemas.InteractionSurface, error) {
	m.initialize()

	tabCtx, tabCancel := chromedp.NewContext(m.allocCtx)

	// Force tab creation now so a broken browser surfaces here, not midway
	// through a job.
	setup := []chromedp.Action{network.Enable()}
	if m.cfg.DisableCache {
		setup = append(setup, network.SetCacheDisabled(true))
	}
	if err := chromedp.Run(tabCtx, setup...); err != nil {
		tabCancel()
		return nil, fmt.Errorf("starting browser tab: %w", err)
	}

	m.mu.Lock()
	m.sessions++
	n := m.sessions
	m.mu.Unlock()
	m.logger.Debug("surface session opened", zap.Int("session_seq", n))

	return newSession(tabCtx, tabCancel, m.logger), nil
}

// Shutdown tears down the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.allocCancel != nil {
		m.allocCancel()
	}
	m.logger.Info("browser manager shut down")
	return nil
}
