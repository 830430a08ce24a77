package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // schedules and reference times are pinned to a named zone
)

// DefaultVehicles is the fixed vehicle list used by scheduled runs.
var DefaultVehicles = []string{
	"exeed lx",
	"jac j7",
	"jac js4",
	"kaiyi x3",
	"kia pegas",
	"kia seltos",
	"kia sonet",
	"mg 3",
	"mg 5",
	"mg gt",
	"mitsubishi asx",
	"mitsubishi attrage",
	"mitsubishi xpander",
	"nissan kicks",
	"nissan sunny",
	"suzuki ciaz",
	"suzuki dzire",
}

// Config holds scraper configuration.
type Config struct {
	BaseURL  string
	SiteName string
	Vehicles []string
	Kinds    []string // daily, weekly, monthly
	Months   int
	LeadTime time.Duration
	Timezone string
	Workers  int

	BrowserMode    string // chrome or static
	Headless       bool
	ChromePath     string
	UserAgent      string
	AcceptLanguage string

	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration
	ClickTimeout      time.Duration
	PanelTimeout      time.Duration
	SettleDelay       time.Duration
	ExtractAttempts   int
	RetryDelay        time.Duration

	OutputDir          string
	OutputFormat       string // xlsx, csv, json, or multi
	PipelineBufferSize int
	BatchSize          int
	RepeatWindow       int // recent rows remembered to report repeats; 0 disables
	KeepOutput         bool

	Schedules []string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string
	Recipients   []string

	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns the production defaults for the marketplace.
func DefaultConfig() *Config {
	vehicles := make([]string, len(DefaultVehicles))
	copy(vehicles, DefaultVehicles)

	return &Config{
		BaseURL:  "https://drive.yango.com",
		SiteName: "Yango Drive",
		Vehicles: vehicles,
		Kinds:    []string{"daily", "weekly", "monthly"},
		Months:   1,
		LeadTime: 2 * time.Hour,
		Timezone: "Asia/Kolkata",
		Workers:  1,

		BrowserMode:    "chrome",
		Headless:       true,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.9",

		NavigationTimeout: 15 * time.Second,
		SelectorTimeout:   5 * time.Second,
		ClickTimeout:      3 * time.Second,
		PanelTimeout:      3 * time.Second,
		SettleDelay:       2 * time.Second,
		ExtractAttempts:   2,
		RetryDelay:        2 * time.Second,

		OutputDir:          "temp",
		OutputFormat:       "xlsx",
		PipelineBufferSize: 256,
		BatchSize:          64,
		RepeatWindow:       4096,

		Schedules: []string{"0 11 * * *", "0 16 * * *"},

		SMTPHost: "smtp.gmail.com",
		SMTPPort: 587,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if len(c.Vehicles) == 0 {
		return fmt.Errorf("vehicle list cannot be empty")
	}
	if len(c.Kinds) == 0 {
		return fmt.Errorf("at least one period kind must be enabled")
	}
	for _, kind := range c.Kinds {
		switch strings.ToLower(strings.TrimSpace(kind)) {
		case "daily", "weekly", "monthly":
		default:
			return fmt.Errorf("unknown period kind %q", kind)
		}
	}
	if c.Months < 0 {
		return fmt.Errorf("months cannot be negative")
	}
	if c.LeadTime < 0 {
		return fmt.Errorf("lead time cannot be negative")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}

	if c.BrowserMode != "chrome" && c.BrowserMode != "static" {
		return fmt.Errorf("browser mode must be chrome or static")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be positive")
	}
	if c.SelectorTimeout <= 0 {
		return fmt.Errorf("selector timeout must be positive")
	}
	if c.ClickTimeout <= 0 {
		return fmt.Errorf("click timeout must be positive")
	}
	if c.PanelTimeout <= 0 {
		return fmt.Errorf("panel timeout must be positive")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle delay cannot be negative")
	}
	if c.ExtractAttempts <= 0 {
		return fmt.Errorf("extract attempts must be positive")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	switch c.OutputFormat {
	case "xlsx", "csv", "json", "multi":
	default:
		return fmt.Errorf("output format must be xlsx, csv, json, or multi")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.RepeatWindow < 0 {
		return fmt.Errorf("repeat window cannot be negative")
	}

	if len(c.Recipients) > 0 {
		if c.SMTPHost == "" {
			return fmt.Errorf("smtp host required when recipients are set")
		}
		if c.SMTPPort <= 0 {
			return fmt.Errorf("smtp port must be positive")
		}
	}

	return nil
}

// Location returns the configured schedule/reference timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SMTPAddr returns host:port for the mail relay.
func (c *Config) SMTPAddr() string {
	return fmt.Sprintf("%s:%d", c.SMTPHost, c.SMTPPort)
}
