package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-rentals/browser"
	"github.com/aluiziolira/go-scrape-rentals/config"
	"github.com/aluiziolira/go-scrape-rentals/models"
	"github.com/aluiziolira/go-scrape-rentals/notify"
	"github.com/aluiziolira/go-scrape-rentals/orchestrator"
	"github.com/aluiziolira/go-scrape-rentals/schedule"
	"github.com/aluiziolira/go-scrape-rentals/scraper"
	"github.com/aluiziolira/go-scrape-rentals/service"
)

func main() {
	if code := run(); code != 0 {
		os.Exit(code)
	}
}

func run() int {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		return 1
	}

	cfg := config.DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		return 1
	}

	baseURL := flag.String("base-url", cfg.BaseURL, "Marketplace base URL")
	vehicles := flag.String("vehicles", strings.Join(cfg.Vehicles, ","), "Comma separated vehicle names")
	periods := flag.String("periods", strings.Join(cfg.Kinds, ","), "Comma separated period kinds: daily, weekly, monthly")
	months := flag.Int("months", cfg.Months, "Month count for the monthly period")
	workers := flag.Int("workers", cfg.Workers, "Vehicles scraped concurrently")
	leadTime := flag.Duration("lead-time", cfg.LeadTime, "Offset added to now for the rental start")
	timezone := flag.String("timezone", cfg.Timezone, "Timezone for schedules and rental windows")
	browserMode := flag.String("browser", cfg.BrowserMode, "Page driver: chrome or static")
	headless := flag.Bool("headless", cfg.Headless, "Run Chrome headless")
	chromePath := flag.String("chrome-path", cfg.ChromePath, "Chrome executable (empty for auto-detect)")
	outputDir := flag.String("output-dir", cfg.OutputDir, "Directory for export files")
	outputFormat := flag.String("format", cfg.OutputFormat, "Output format: xlsx, csv, json, or multi")
	keepOutput := flag.Bool("keep-output", cfg.KeepOutput, "Keep export files after mailing")
	schedules := flag.String("schedules", strings.Join(cfg.Schedules, ","), "Comma separated cron specs")
	once := flag.Bool("once", false, "Run a single cycle and exit")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Admin and metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg.BaseURL = *baseURL
	cfg.Vehicles = config.SplitList(*vehicles)
	cfg.Kinds = config.SplitList(strings.ToLower(*periods))
	cfg.Months = *months
	cfg.Workers = *workers
	cfg.LeadTime = *leadTime
	cfg.Timezone = *timezone
	cfg.BrowserMode = strings.ToLower(*browserMode)
	cfg.Headless = *headless
	cfg.ChromePath = *chromePath
	cfg.OutputDir = *outputDir
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.KeepOutput = *keepOutput
	cfg.Schedules = config.SplitList(*schedules)
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opener, err := newOpener(ctx, cfg)
	if err != nil {
		slog.Error("starting browser", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := opener.Close(); err != nil {
			slog.Error("close browser", slog.Any("error", err))
		}
	}()

	metrics := scraper.NewMetrics()
	s := scraper.NewScraper(cfg, scraper.DefaultSelectors(), metrics)
	gate := &schedule.Gate{}
	svc := service.New(cfg, orchestrator.New(cfg, opener, s), notify.NewMailer(cfg), metrics, gate)

	var adminServer *http.Server
	if cfg.MetricsAddr != "" {
		adminServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           svc.Handler(ctx),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("admin server failed", slog.Any("error", err))
			}
		}()
		slog.Info("admin server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	slog.Info("starting scraper",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("vehicles", len(cfg.Vehicles)),
		slog.String("periods", strings.Join(cfg.Kinds, ",")),
		slog.String("browser", cfg.BrowserMode),
		slog.Int("workers", cfg.Workers),
	)

	exitCode := 0
	if *once {
		var report models.Report
		if !gate.TryRun(func() { report = svc.RunCycle(ctx) }) {
			slog.Error("a run is already in progress")
			exitCode = 1
		} else {
			printSummary(report)
			if !report.Success {
				exitCode = 1
			}
		}
	} else {
		exitCode = runScheduled(ctx, cfg, svc, gate, logger)
	}

	if adminServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("admin server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}
	return exitCode
}

func runScheduled(ctx context.Context, cfg *config.Config, svc *service.Service, gate *schedule.Gate, logger *slog.Logger) int {
	sched := schedule.New(cfg.Location(), gate, func(ctx context.Context) {
		report := svc.RunCycle(ctx)
		printSummary(report)
	}, logger)
	for _, spec := range cfg.Schedules {
		if err := sched.Add(spec); err != nil {
			slog.Error("invalid schedule", slog.Any("error", err))
			return 1
		}
	}

	sched.Start(ctx)
	<-ctx.Done()
	slog.Info("shutdown signal received, stopping active run")
	svc.Stop()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		slog.Error("scheduler shutdown failed", slog.Any("error", err))
		return 1
	}
	return 0
}

func newOpener(ctx context.Context, cfg *config.Config) (browser.Opener, error) {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Headless
	opts.ExecPath = cfg.ChromePath
	opts.UserAgent = cfg.UserAgent
	opts.AcceptLanguage = cfg.AcceptLanguage
	opts.RequestTimeout = cfg.NavigationTimeout

	if cfg.BrowserMode == "static" {
		return browser.NewStatic(opts, nil), nil
	}
	chrome, err := browser.NewChrome(ctx, opts)
	if err != nil {
		return nil, err
	}
	return chrome, nil
}

func printSummary(report models.Report) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")
	fmt.Printf("  Success:       %t\n", report.Success)
	if report.Cancelled {
		fmt.Println("  Cancelled:     true")
	}
	fmt.Printf("  Message:       %s\n", report.Message)
	fmt.Printf("  Records:       %d\n", len(report.Records))
	fmt.Printf("  Errors:        %d\n", len(report.Errors))
	for _, e := range report.Errors {
		fmt.Printf("    - %s\n", e)
	}
	fmt.Printf("  Duration:      %v\n", report.Duration().Round(time.Millisecond))
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
