package browser

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sunbase-energy/sitescout/internal/config"
)

// Keyboard input sent through SendKeys, re-exported so adapters don't
// import the driver library directly.
const (
	KeyEnter     = kb.Enter
	KeyArrowDown = kb.ArrowDown
)

// ChromeLauncher starts one dedicated headless Chrome per session.
type ChromeLauncher struct {
	cfg config.BrowserConfig
}

// NewChromeLauncher creates a Launcher backed by chromedp.
func NewChromeLauncher(cfg config.BrowserConfig) *ChromeLauncher {
	return &ChromeLauncher{cfg: cfg}
}

// NewSession allocates a fresh browser instance with anti-detection
// preparation applied before any navigation.
func (l *ChromeLauncher) NewSession(ctx context.Context) (Session, error) {
	opts := append([]chromedp.ExecAllocatorOption{},
		chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(randomUserAgent()),
	)
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		ctx:    browserCtx,
		cancel: func() { browserCancel(); allocCancel() },
	}

	// Record the main-document response status so adapters can tell a
	// 403 block page apart from content that merely looks odd.
	chromedp.ListenTarget(browserCtx, func(ev any) {
		if resp, ok := ev.(*network.EventResponseReceived); ok && resp.Type == network.ResourceTypeDocument {
			s.status.Store(resp.Response.Status)
		}
	})

	// Start the browser and install the stealth script so it runs before
	// any page script on every navigation.
	if err := chromedp.Run(browserCtx, network.Enable(), installStealth()); err != nil {
		s.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "browser: start session")
	}

	return s, nil
}

type chromeSession struct {
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	status    atomic.Int64
}

func (s *chromeSession) Status() int {
	return int(s.status.Load())
}

// run executes chromedp actions under the caller's deadline.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(s.ctx, actions...)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return eris.Wrapf(err, "browser: navigate %s", url)
	}
	return nil
}

func (s *chromeSession) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, chromedp.Title(&title)); err != nil {
		return "", eris.Wrap(err, "browser: read title")
	}
	return title, nil
}

func (s *chromeSession) PageText(ctx context.Context) (string, error) {
	var text string
	err := s.run(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text))
	if err != nil {
		return "", eris.Wrap(err, "browser: read page text")
	}
	return text, nil
}

func (s *chromeSession) Evaluate(ctx context.Context, js string, out any) error {
	if out == nil {
		var discard json.RawMessage
		out = &discard
	}
	if err := s.run(ctx, chromedp.Evaluate(js, out)); err != nil {
		return eris.Wrap(err, "browser: evaluate")
	}
	return nil
}

// SetField drives framework-bound form fields: direct value assignment
// plus synthetic input and change events, not simulated keystrokes.
func (s *chromeSession) SetField(ctx context.Context, selector, value string) error {
	js := `(() => {
		const el = document.querySelector(` + jsString(selector) + `);
		if (!el) return false;
		el.value = ` + jsString(value) + `;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`
	var ok bool
	if err := s.run(ctx, chromedp.Evaluate(js, &ok)); err != nil {
		return eris.Wrapf(err, "browser: set field %s", selector)
	}
	if !ok {
		return eris.Errorf("browser: no element matches %s", selector)
	}
	return nil
}

func (s *chromeSession) SendKeys(ctx context.Context, selector, keys string) error {
	if err := s.run(ctx, chromedp.SendKeys(selector, keys, chromedp.ByQuery)); err != nil {
		return eris.Wrapf(err, "browser: send keys to %s", selector)
	}
	return nil
}

func (s *chromeSession) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return eris.Wrapf(err, "browser: click %s", selector)
	}
	return nil
}

func (s *chromeSession) WaitVisible(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return eris.Wrapf(err, "browser: wait for %s", selector)
	}
	return nil
}

func (s *chromeSession) WaitFunc(ctx context.Context, js string) error {
	if err := s.run(ctx, chromedp.Poll(js, nil, chromedp.WithPollingTimeout(0))); err != nil {
		return eris.Wrap(err, "browser: wait for condition")
	}
	return nil
}

func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		zap.L().Debug("browser: session closed")
	})
	return nil
}

// jsString quotes a Go string as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
