package browser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// Static fetches pages over plain HTTP with colly. It sees server-rendered
// markup only and cannot click.
type Static struct {
	opts      Options
	transport http.RoundTripper
}

// NewStatic builds the HTTP driver. A nil transport uses a pooled default.
func NewStatic(opts Options, transport http.RoundTripper) *Static {
	if transport == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}
	return &Static{opts: opts, transport: transport}
}

// NewPage returns a page with its own collector and cookie jar.
func (s *Static) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(s.opts.UserAgent),
		colly.IgnoreRobotsTxt(),
	)
	if s.opts.RequestTimeout > 0 {
		collector.SetRequestTimeout(s.opts.RequestTimeout)
	}
	collector.WithTransport(s.transport)

	p := &staticPage{collector: collector}
	headers := s.opts.headers()
	collector.OnRequest(func(r *colly.Request) {
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		p.body = r.Body
	})
	return p, nil
}

// Close is a no-op; collectors hold no process resources.
func (s *Static) Close() error {
	return nil
}

type staticPage struct {
	collector *colly.Collector
	body      []byte
	doc       *goquery.Document
	current   *url.URL
}

func (p *staticPage) Navigate(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	p.body, p.doc = nil, nil
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("visit %s: %w", rawURL, err)
	}
	p.collector.Context = ctx
	if err := p.collector.Visit(rawURL); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("visit %s: %w", rawURL, ctxErr)
		}
		return fmt.Errorf("visit %s: %w", rawURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.body))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	p.doc = doc
	p.current = u
	slog.Debug("static page loaded", slog.String("url", rawURL), slog.Int("bytes", len(p.body)))
	return nil
}

func (p *staticPage) WaitVisible(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.doc == nil {
		return ErrNoDocument
	}
	if p.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return nil
}

func (p *staticPage) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.doc == nil {
		return "", ErrNoDocument
	}
	return string(p.body), nil
}

func (p *staticPage) InnerText(ctx context.Context, selector string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if p.doc == nil {
		return "", false, ErrNoDocument
	}
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false, nil
	}
	var lines []string
	collectText(sel, &lines)
	return strings.Join(lines, "\n"), true, nil
}

// collectText approximates innerText: one line per non-empty text node.
func collectText(s *goquery.Selection, out *[]string) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		switch goquery.NodeName(c) {
		case "#text":
			if t := strings.TrimSpace(c.Text()); t != "" {
				*out = append(*out, t)
			}
		case "script", "style", "#comment":
		default:
			collectText(c, out)
		}
	})
}

func (p *staticPage) ClickNth(ctx context.Context, selector string, index int) error {
	return fmt.Errorf("click %s[%d]: %w", selector, index, ErrUnsupported)
}

func (p *staticPage) Cookies(ctx context.Context) ([]Cookie, error) {
	if p.current == nil {
		return nil, nil
	}
	raw := p.collector.Cookies(p.current.String())
	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
		})
	}
	return cookies, nil
}

func (p *staticPage) SetCookies(ctx context.Context, cookies []Cookie) error {
	byURL := make(map[string][]*http.Cookie)
	for _, c := range cookies {
		target, err := p.cookieURL(c)
		if err != nil {
			return err
		}
		byURL[target] = append(byURL[target], &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Expires:  c.Expires,
			HttpOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	for target, batch := range byURL {
		if err := p.collector.SetCookies(target, batch); err != nil {
			return fmt.Errorf("set cookies for %s: %w", target, err)
		}
	}
	return nil
}

func (p *staticPage) cookieURL(c Cookie) (string, error) {
	host := strings.TrimPrefix(c.Domain, ".")
	if host == "" {
		if p.current == nil {
			return "", fmt.Errorf("cookie %q has no domain and no page is loaded", c.Name)
		}
		host = p.current.Host
	}
	scheme := "https"
	if p.current != nil && p.current.Host == host {
		scheme = p.current.Scheme
	}
	return scheme + "://" + host + "/", nil
}

func (p *staticPage) Close() error {
	p.body, p.doc = nil, nil
	return nil
}
