package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Options configures a Chrome session.
type Options struct {
	Headless  bool
	ExecPath  string
	UserAgent string
	// Settle is how long ClickNth waits after a click before the page is
	// read again, so navigations and modals triggered by the click land.
	Settle time.Duration
}

// DefaultOptions returns headless options with a short settle delay.
func DefaultOptions() Options {
	return Options{
		Headless:  true,
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		Settle:    500 * time.Millisecond,
	}
}

// allocatorOptions builds the exec allocator flags for opts.
func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	out := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.UserAgent != "" {
		out = append(out, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	return out
}

// Chrome is a Session backed by a chromedp-driven Chrome tab.
type Chrome struct {
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	settle      time.Duration
	closeOnce   sync.Once
}

// NewChrome launches Chrome and opens a blank tab. The browser lives until
// Close; cancelling ctx after NewChrome returns does not stop it.
func NewChrome(ctx context.Context, opts Options) (*Chrome, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocatorOptions(opts)...)
	tab, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		zap.L().Sugar().Debugf("chromedp: "+format, args...)
	}))

	c := &Chrome{
		tab:         tab,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		settle:      opts.Settle,
	}

	// An empty Run starts the browser process.
	if err := c.run(ctx); err != nil {
		_ = c.Close()
		return nil, eris.Wrap(err, "browser: launch chrome")
	}

	zap.L().Debug("browser: chrome started", zap.Bool("headless", opts.Headless))
	return c, nil
}

// ChromeOpener returns an Opener that launches Chrome with opts.
func ChromeOpener(opts Options) Opener {
	return func(ctx context.Context) (Session, error) {
		return NewChrome(ctx, opts)
	}
}

// run executes actions on the tab, aborting when ctx is done without
// closing the tab itself.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(c.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Chrome) Visit(ctx context.Context, url string) error {
	return eris.Wrapf(c.run(ctx, chromedp.Navigate(url)), "browser: visit %s", url)
}

func (c *Chrome) WaitFor(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := c.run(waitCtx, chromedp.WaitReady(selector, chromedp.ByQuery))
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case waitCtx.Err() != nil:
		return false, nil
	default:
		return false, eris.Wrapf(err, "browser: wait for %s", selector)
	}
}

func (c *Chrome) HTML(ctx context.Context) (string, error) {
	var html string
	if err := c.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", eris.Wrap(err, "browser: read html")
	}
	return html, nil
}

func (c *Chrome) nodes(ctx context.Context, selector string) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	err := c.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, eris.Wrapf(err, "browser: query %s", selector)
	}
	return nodes, nil
}

func (c *Chrome) Count(ctx context.Context, selector string) (int, error) {
	nodes, err := c.nodes(ctx, selector)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (c *Chrome) ClickNth(ctx context.Context, selector string, n int) error {
	nodes, err := c.nodes(ctx, selector)
	if err != nil {
		return err
	}
	if n < 0 || n >= len(nodes) {
		return eris.Wrapf(ErrNoElement, "browser: %s[%d] of %d", selector, n, len(nodes))
	}

	actions := []chromedp.Action{chromedp.MouseClickNode(nodes[n])}
	if c.settle > 0 {
		actions = append(actions, chromedp.Sleep(c.settle))
	}
	actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))

	return eris.Wrapf(c.run(ctx, actions...), "browser: click %s[%d]", selector, n)
}

func (c *Chrome) Back(ctx context.Context) error {
	return eris.Wrap(c.run(ctx, chromedp.NavigateBack()), "browser: back")
}

func (c *Chrome) Location(ctx context.Context) (string, error) {
	var loc string
	if err := c.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", eris.Wrap(err, "browser: location")
	}
	return loc, nil
}

// Close shuts the tab and the browser process.
func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		if err := chromedp.Cancel(c.tab); err != nil {
			zap.L().Debug("browser: cancel tab", zap.Error(err))
		}
		c.cancelTab()
		c.cancelAlloc()
	})
	return nil
}
