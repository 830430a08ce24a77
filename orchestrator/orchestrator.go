// Package orchestrator runs the period scraper over every vehicle and period
// kind and folds the outcomes into one report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-rentals/browser"
	"github.com/aluiziolira/go-scrape-rentals/config"
	"github.com/aluiziolira/go-scrape-rentals/models"
	"github.com/aluiziolira/go-scrape-rentals/parser"
	"github.com/aluiziolira/go-scrape-rentals/period"
	"github.com/aluiziolira/go-scrape-rentals/scraper"
)

const (
	MsgSuccess       = "Scraping completed successfully"
	MsgPartialPrefix = "Scraping completed with errors: "
	MsgCancelled     = "Scraping cancelled"
	MsgNoData        = "No data scraped"
)

// Request selects what one run scrapes.
type Request struct {
	Vehicles []string
	Kinds    []period.Kind
	Months   int
}

// RequestFromConfig builds the scheduled request from cfg.
func RequestFromConfig(cfg *config.Config) (Request, error) {
	kinds, err := period.ParseKinds(cfg.Kinds)
	if err != nil {
		return Request{}, err
	}
	vehicles := make([]string, len(cfg.Vehicles))
	copy(vehicles, cfg.Vehicles)
	return Request{Vehicles: vehicles, Kinds: kinds, Months: cfg.Months}, nil
}

// Orchestrator owns the page opener and the scraper shared by all runs.
type Orchestrator struct {
	cfg     *config.Config
	opener  browser.Opener
	scraper *scraper.Scraper
}

// New returns an orchestrator. Pages come from opener, one per vehicle.
func New(cfg *config.Config, opener browser.Opener, s *scraper.Scraper) *Orchestrator {
	return &Orchestrator{cfg: cfg, opener: opener, scraper: s}
}

// Run scrapes every (vehicle, kind) pair of req. Job failures are collected,
// never fatal; the report says whether anything was produced.
func (o *Orchestrator) Run(ctx context.Context, rc *RunContext, req Request) models.Report {
	stop := context.AfterFunc(ctx, rc.Token.Stop)
	defer stop()
	if ctx.Err() != nil {
		rc.Token.Stop()
	}

	report := models.Report{StartedAt: rc.StartedAt}
	if report.StartedAt.IsZero() {
		report.StartedAt = time.Now()
	}

	var invalid []string
	for _, v := range req.Vehicles {
		if err := parser.ValidateVehicle(v); err != nil {
			verr := scraper.ValidationError{Vehicle: v, Err: err}
			o.scraper.Metrics().IncError(scraper.ErrorTypeLabel(verr))
			invalid = append(invalid, err.Error())
		}
	}
	if len(invalid) > 0 {
		report.Message = strings.Join(invalid, "; ")
		report.Errors = invalid
		report.FinishedAt = time.Now()
		o.scraper.Metrics().ObserveRun("invalid", 0)
		slog.Error("run rejected", slog.String("reason", report.Message))
		return report
	}

	slog.Info("run started",
		slog.Int("vehicles", len(req.Vehicles)),
		slog.Int("kinds", len(req.Kinds)),
		slog.Time("reference", rc.Reference),
	)

	workers := o.cfg.Workers
	if workers > len(req.Vehicles) {
		workers = len(req.Vehicles)
	}
	if workers <= 1 {
		for vi, v := range req.Vehicles {
			if rc.Token.Cancelled() {
				slog.Info("run cancelled between vehicles", slog.Int("remaining", len(req.Vehicles)-vi))
				break
			}
			o.scrapeVehicle(rc, req, vi, v)
		}
	} else {
		o.runPool(rc, req, workers)
	}

	records, errs := rc.collect()
	report.Records = records
	report.Errors = errs
	report.Cancelled = rc.Token.Cancelled()
	report.Success = len(records) > 0
	report.Message = summarize(report)
	report.FinishedAt = time.Now()

	outcome := "failure"
	switch {
	case report.Cancelled:
		outcome = "cancelled"
	case report.Success && len(errs) == 0:
		outcome = "success"
	case report.Success:
		outcome = "partial"
	}
	o.scraper.Metrics().ObserveRun(outcome, len(records))

	slog.Info("run finished",
		slog.String("outcome", outcome),
		slog.Int("records", len(records)),
		slog.Int("errors", len(errs)),
		slog.Duration("duration", report.Duration()),
	)
	return report
}

func (o *Orchestrator) runPool(rc *RunContext, req Request, workers int) {
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for vi := range jobs {
				o.scrapeVehicle(rc, req, vi, req.Vehicles[vi])
			}
		}()
	}

	done := rc.Token.Context().Done()
feed:
	for vi := range req.Vehicles {
		if rc.Token.Cancelled() {
			break
		}
		select {
		case jobs <- vi:
		case <-done:
			break feed
		}
	}
	close(jobs)
	wg.Wait()
}

// scrapeVehicle runs every enabled kind for one vehicle on one page.
func (o *Orchestrator) scrapeVehicle(rc *RunContext, req Request, vi int, vehicle string) {
	ctx := rc.Token.Context()
	if rc.Token.Cancelled() {
		return
	}
	log := slog.With(slog.String("vehicle", vehicle))

	page, err := o.opener.NewPage(ctx)
	if err != nil {
		if rc.Token.Cancelled() {
			return
		}
		o.scraper.Metrics().IncError(scraper.ErrorTypeLabel(err))
		log.Error("open page failed", slog.Any("error", err))
		rc.addError(vi, -1, fmt.Sprintf("Failed to scrape %s: %v", vehicle, err))
		return
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug("close page", slog.Any("error", err))
		}
	}()

	if cookies := rc.Sessions.Snapshot(); len(cookies) > 0 {
		if err := page.SetCookies(ctx, cookies); err != nil {
			log.Debug("restore session cookies", slog.Any("error", err))
		}
	}

	for pi, kind := range req.Kinds {
		if rc.Token.Cancelled() {
			return
		}

		p, err := period.Build(kind, rc.Reference, req.Months)
		if errors.Is(err, period.ErrInvalidMonths) {
			log.Warn("skipping monthly period", slog.Int("months", req.Months))
			continue
		}
		if err != nil {
			rc.addError(vi, pi, fmt.Sprintf("%s scrape failed for %s: %v", kind.Title(), vehicle, err))
			continue
		}

		url, err := period.ListingURL(o.cfg.BaseURL, vehicle, p)
		if err != nil {
			rc.addError(vi, pi, fmt.Sprintf("%s scrape failed for %s: %v", kind.Title(), vehicle, err))
			o.scraper.Metrics().IncJob(kind.String(), "failure")
			continue
		}

		log.Info("scraping period", slog.String("kind", kind.String()), slog.String("period", p.Label))
		out := o.scraper.ScrapePeriod(ctx, page, scraper.Job{
			Vehicle: vehicle,
			Period:  p,
			URL:     url,
			Session: rc.Sessions,
		})

		switch {
		case out.Cancelled:
			o.scraper.Metrics().IncJob(kind.String(), "cancelled")
			return
		case out.Success:
			o.scraper.Metrics().IncJob(kind.String(), "success")
			rc.addRecords(vi, pi, out.Records)
		default:
			o.scraper.Metrics().IncJob(kind.String(), "failure")
			rc.addError(vi, pi, fmt.Sprintf("%s scrape failed for %s: %s", kind.Title(), vehicle, out.Message))
		}
	}
}

func summarize(r models.Report) string {
	switch {
	case len(r.Records) > 0 && len(r.Errors) == 0:
		return MsgSuccess
	case len(r.Records) > 0:
		return MsgPartialPrefix + strings.Join(r.Errors, "; ")
	case r.Cancelled:
		return MsgCancelled
	case len(r.Errors) > 0:
		return strings.Join(r.Errors, "; ")
	default:
		return MsgNoData
	}
}
