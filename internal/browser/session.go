// File: internal/browser/session.go

package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// clearInputsScript blanks enabled, visible text inputs so stale values from
// earlier steps never leak into a new form interaction.
const clearInputsScript = `(() => {
	let cleared = 0;
	const fields = document.querySelectorAll('input, textarea');
	for (const el of fields) {
		if (el.disabled || el.readOnly) continue;
		const type = (el.type || '').toLowerCase();
		if (['hidden', 'submit', 'button', 'checkbox', 'radio', 'file'].includes(type)) continue;
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 || rect.height === 0) continue;
		if (el.value !== '') {
			el.value = '';
			el.dispatchEvent(new Event('input', {bubbles: true}));
			cleared++;
		}
	}
	return cleared;
})()`

// session drives a single tab. It satisfies schemas.InteractionSurface.
type session struct {
	tabCtx context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

func newSession(tabCtx context.Context, cancel context.CancelFunc, logger *zap.Logger) *session {
	return &session{
		tabCtx: tabCtx,
		cancel: cancel,
		logger: logger.Named("surface"),
	}
}

// run executes tasks against the tab, bounded by the caller's context and an
// optional timeout. The tab context, not the caller's, carries the browser
// connection, so cancellation of either aborts the call.
func (s *session) run(ctx context.Context, timeout time.Duration, tasks ...chromedp.Action) error {
	runCtx := s.tabCtx
	var cancels []context.CancelFunc
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		cancels = append(cancels, cancel)
	}
	if ctx != nil && ctx.Done() != nil {
		var cancel context.CancelFunc
		runCtx, cancel = mergeCancel(runCtx, ctx)
		cancels = append(cancels, cancel)
	}
	defer func() {
		for _, c := range cancels {
			c()
		}
	}()
	err := chromedp.Run(runCtx, tasks...)
	return classifyRunError(s.tabCtx.Err(), timeout, err)
}

// classifyRunError sorts a DevTools call failure into the retryable and the
// fatal kind. A per-action timeout expiring while the tab is alive is a slow
// element, not a dead session, so the raw DeadlineExceeded is replaced by
// ErrActionTimeout and must not look like job-context expiry to callers. A
// dead tab context marks the whole session as lost.
func classifyRunError(tabErr error, timeout time.Duration, err error) error {
	if err == nil {
		return nil
	}
	if tabErr != nil {
		return fmt.Errorf("%w: %v", schemas.ErrSurfaceLost, err)
	}
	if timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", schemas.ErrActionTimeout, timeout)
	}
	return err
}

// mergeCancel makes parent cancel whenever watch is cancelled.
func mergeCancel(parent, watch context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(parent)
	stop := make(chan struct{})
	go func() {
		select {
		case <-watch.Done():
			cancel()
		case <-merged.Done():
		case <-stop:
		}
	}()
	return merged, func() {
		close(stop)
		cancel()
	}
}

func (s *session) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx, 0,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

func (s *session) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, 0, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return url, nil
}

func (s *session) Content(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page content: %w", err)
	}
	return html, nil
}

func (s *session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, 0, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

func (s *session) Click(ctx context.Context, selector string, timeout time.Duration) error {
	err := s.run(ctx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("clicking %q: %w", selector, err)
	}
	return nil
}

func (s *session) Fill(ctx context.Context, selector, text string, timeout time.Duration) error {
	err := s.run(ctx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("filling %q: %w", selector, err)
	}
	return nil
}

func (s *session) Press(ctx context.Context, selector, key string, timeout time.Duration) error {
	err := s.run(ctx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, chordForKey(key), chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("pressing %q on %q: %w", key, selector, err)
	}
	return nil
}

// chordForKey maps key names as the oracle emits them to DevTools key codes.
// Unknown names pass through as literal text.
func chordForKey(key string) string {
	switch key {
	case "Enter", "enter":
		return kb.Enter
	case "Tab", "tab":
		return kb.Tab
	case "Escape", "escape", "Esc":
		return kb.Escape
	case "Backspace", "backspace":
		return kb.Backspace
	case "Delete", "delete":
		return kb.Delete
	case "ArrowDown", "Down":
		return kb.ArrowDown
	case "ArrowUp", "Up":
		return kb.ArrowUp
	case "ArrowLeft", "Left":
		return kb.ArrowLeft
	case "ArrowRight", "Right":
		return kb.ArrowRight
	case "PageDown":
		return kb.PageDown
	case "PageUp":
		return kb.PageUp
	case "Home":
		return kb.Home
	case "End":
		return kb.End
	default:
		return key
	}
}

func (s *session) ScrollBy(ctx context.Context, deltaY int) error {
	script := "window.scrollBy(0, window.innerHeight)"
	if deltaY != 0 {
		script = fmt.Sprintf("window.scrollBy(0, %d)", deltaY)
	}
	if err := s.run(ctx, 0, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("scrolling page: %w", err)
	}
	return nil
}

func (s *session) ClearInputs(ctx context.Context) error {
	var cleared int
	if err := s.run(ctx, 0, chromedp.Evaluate(clearInputsScript, &cleared)); err != nil {
		return fmt.Errorf("clearing input fields: %w", err)
	}
	if cleared > 0 {
		s.logger.Debug("cleared stale input values", zap.Int("fields", cleared))
	}
	return nil
}

func (s *session) Evaluate(ctx context.Context, script string, out any) error {
	if err := s.run(ctx, 0, chromedp.Evaluate(script, out)); err != nil {
		return fmt.Errorf("evaluating script: %w", err)
	}
	return nil
}

func (s *session) Close(ctx context.Context) error {
	s.cancel()
	return nil
}

var _ schemas.InteractionSurface = (*session)(nil)
