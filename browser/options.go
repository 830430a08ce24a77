package browser

import (
	"time"

	"github.com/chromedp/chromedp"
)

const (
	DefaultWindowWidth  = 1366
	DefaultWindowHeight = 900

	DefaultAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
)

// Options configures both page drivers.
type Options struct {
	Headless       bool
	ExecPath       string
	UserAgent      string
	AcceptLanguage string
	Accept         string
	WindowWidth    int
	WindowHeight   int
	// RequestTimeout bounds a single HTTP fetch of the static driver.
	RequestTimeout time.Duration
}

// DefaultOptions returns headless Chrome settings for the marketplace.
func DefaultOptions() Options {
	return Options{
		Headless:       true,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.9",
		Accept:         DefaultAccept,
		WindowWidth:    DefaultWindowWidth,
		WindowHeight:   DefaultWindowHeight,
		RequestTimeout: 15 * time.Second,
	}
}

// BuildChromeOptions creates allocator options from Options.
func BuildChromeOptions(opts Options) []chromedp.ExecAllocatorOption {
	chromeOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	if opts.Headless {
		chromeOpts = append(chromeOpts, chromedp.Flag("headless", "new"))
	} else {
		chromeOpts = append(chromeOpts, chromedp.Flag("headless", false))
	}

	width, height := opts.WindowWidth, opts.WindowHeight
	if width <= 0 || height <= 0 {
		width, height = DefaultWindowWidth, DefaultWindowHeight
	}

	chromeOpts = append(chromeOpts,
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-translate", true),
		chromedp.WindowSize(width, height),
	)

	if opts.ExecPath != "" {
		chromeOpts = append(chromeOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		chromeOpts = append(chromeOpts, chromedp.UserAgent(opts.UserAgent))
	}

	return chromeOpts
}

func (o Options) headers() map[string]string {
	h := make(map[string]string, 2)
	accept := o.Accept
	if accept == "" {
		accept = DefaultAccept
	}
	h["Accept"] = accept
	if o.AcceptLanguage != "" {
		h["Accept-Language"] = o.AcceptLanguage
	}
	return h
}
