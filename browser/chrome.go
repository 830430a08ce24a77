package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Chrome owns one headless browser process. Every page lives in its own
// browser context, so pages opened for different workers share no cookies.
type Chrome struct {
	opts Options

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewChrome starts the browser. The browser outlives ctx; call Close to stop it.
func NewChrome(ctx context.Context, opts Options) (*Chrome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), BuildChromeOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run allocates the browser and binds it to browserCtx.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	slog.Debug("chrome started", slog.Bool("headless", opts.Headless))
	return &Chrome{
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// NewPage opens a tab in a fresh browser context with the configured headers.
func (c *Chrome) NewPage(ctx context.Context) (Page, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("chrome is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(c.browserCtx, chromedp.WithNewBrowserContext())
	p := &chromePage{tabCtx: tabCtx, cancel: tabCancel}

	headers := network.Headers{}
	for k, v := range c.opts.headers() {
		headers[k] = v
	}
	// The target's event loop lives as long as the context of its first Run,
	// so the tab is created on tabCtx itself.
	err := chromedp.Run(tabCtx, network.Enable(), network.SetExtraHTTPHeaders(headers))
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return p, nil
}

// Close shuts the browser down. Open pages become unusable.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	shutdownCtx, cancel := context.WithTimeout(c.browserCtx, 5*time.Second)
	defer cancel()
	err := chromedp.Cancel(shutdownCtx)
	c.browserCancel()
	c.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close chrome: %w", err)
	}
	return nil
}

type chromePage struct {
	tabCtx context.Context
	cancel context.CancelFunc
}

// run executes actions on the tab. The call ends when either the tab or the
// caller's context is done; the caller's deadline and cancellation apply.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	callCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		var dcancel context.CancelFunc
		callCtx, dcancel = context.WithDeadline(callCtx, deadline)
		defer dcancel()
	}

	err := chromedp.Run(callCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate commits the navigation and waits only for the body to exist.
// Result pages keep loading trackers long after the cards render, so the
// load event is not awaited.
func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var res page.NavigateReturns
			if err := cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &res); err != nil {
				return err
			}
			return navigationError(url, res.ErrorText)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func navigationError(url, errorText string) error {
	if errorText == "" {
		return nil
	}
	return fmt.Errorf("navigate %s: %s", url, errorText)
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

type innerTextResult struct {
	Found bool   `json:"found"`
	Text  string `json:"text"`
}

func (p *chromePage) InnerText(ctx context.Context, selector string) (string, bool, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return "", false, err
	}
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		return el ? { found: true, text: el.innerText || "" } : { found: false, text: "" };
	})()`, quoted)

	var res innerTextResult
	if err := p.run(ctx, chromedp.Evaluate(script, &res)); err != nil {
		return "", false, err
	}
	return res.Text, res.Found, nil
}

func (p *chromePage) ClickNth(ctx context.Context, selector string, index int) error {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return err
	}
	if index < 0 || index >= len(nodes) {
		return fmt.Errorf("%s[%d]: %w", selector, index, ErrNotFound)
	}

	node := nodes[index]
	ids := []cdp.NodeID{node.NodeID}
	return p.run(ctx,
		chromedp.ScrollIntoView(ids, chromedp.ByNodeID),
		chromedp.WaitVisible(ids, chromedp.ByNodeID),
		chromedp.MouseClickNode(node),
	)
}

func (p *chromePage) Cookies(ctx context.Context) ([]Cookie, error) {
	var raw []*network.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookie := Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			sec, frac := math.Modf(c.Expires)
			cookie.Expires = time.Unix(int64(sec), int64(frac*1e9))
		}
		cookies = append(cookies, cookie)
	}
	return cookies, nil
}

func (p *chromePage) SetCookies(ctx context.Context, cookies []Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if !c.Expires.IsZero() {
			exp := cdp.TimeSinceEpoch(c.Expires)
			param.Expires = &exp
		}
		params = append(params, param)
	}
	return p.run(ctx, network.SetCookies(params))
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
