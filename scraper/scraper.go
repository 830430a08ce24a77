// Package scraper walks one listing page card by card and enriches each
// card from its detail view.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-rentals/browser"
	"github.com/aluiziolira/go-scrape-rentals/config"
	"github.com/aluiziolira/go-scrape-rentals/models"
	"github.com/aluiziolira/go-scrape-rentals/period"
)

// CancelledMessage is the outcome message of a job stopped on request.
const CancelledMessage = "Scraping cancelled by user"

// Job is one (vehicle, period) pagination run.
type Job struct {
	Vehicle string
	Period  period.Period
	URL     string
	// Session receives cookies after successful detail views. May be nil.
	Session *SessionStore
}

// Scraper drives card extraction and enrichment over a Page.
type Scraper struct {
	cfg     *config.Config
	sel     Selectors
	metrics *Metrics
}

// NewScraper builds a scraper using the timeouts and retry bounds in cfg.
func NewScraper(cfg *config.Config, sel Selectors, metrics *Metrics) *Scraper {
	return &Scraper{cfg: cfg, sel: sel, metrics: metrics}
}

// Metrics returns the collectors the scraper reports to.
func (s *Scraper) Metrics() *Metrics {
	return s.metrics
}

// ScrapePeriod loads the listing before every index, extracts cards until
// the list is exhausted or capped, and enriches cards that offer a detail
// view. Records gathered before a late failure are kept.
func (s *Scraper) ScrapePeriod(ctx context.Context, page browser.Page, job Job) models.PeriodOutcome {
	log := slog.With(
		slog.String("vehicle", job.Vehicle),
		slog.String("period", job.Period.Label),
	)

	var records []*models.CardRecord
	for index := 0; index < CardLimit; index++ {
		if ctx.Err() != nil {
			return cancelledOutcome(log, index)
		}

		log.Debug("loading listing", slog.Int("card", index+1))
		if err := s.load(ctx, page, job.URL); err != nil {
			if ctx.Err() != nil {
				return cancelledOutcome(log, index)
			}
			var noInventory NoInventoryError
			if errors.As(err, &noInventory) {
				log.Info("no car cards found", slog.Any("error", err))
				break
			}

			s.metrics.IncError(errorTypeLabel(err))
			if len(records) == 0 {
				log.Error("listing failed to load", slog.Any("error", err))
				return models.PeriodOutcome{Message: s.failureMessage(err)}
			}
			log.Warn("listing failed to reload, keeping earlier cards",
				slog.Int("records", len(records)),
				slog.Any("error", err),
			)
			break
		}

		card, err := s.ExtractCard(ctx, page, index, job)
		if err != nil {
			if ctx.Err() != nil {
				return cancelledOutcome(log, index)
			}
			s.metrics.IncError(errorTypeLabel(err))
			log.Warn("card unreadable, stopping pagination", slog.Int("index", index), slog.Any("error", err))
			break
		}
		if card == nil {
			log.Debug("no more cards", slog.Int("index", index))
			break
		}

		records = append(records, card.Record)
		s.metrics.IncCards()

		if card.HasAction {
			s.Enrich(ctx, page, card.Record, index, job.Session)
		} else {
			log.Debug("no detail action for card", slog.Int("index", index))
		}
	}

	if len(records) == 0 {
		log.Info("no data scraped")
		return models.PeriodOutcome{
			Message: fmt.Sprintf("No data found for %s (%s)", job.Vehicle, job.Period.Label),
		}
	}

	log.Info("period scraped", slog.Int("records", len(records)))
	return models.PeriodOutcome{Success: true, Records: records}
}

// load navigates to the listing and waits for the primary selectors.
func (s *Scraper) load(ctx context.Context, page browser.Page, url string) error {
	start := time.Now()

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	err := page.Navigate(navCtx, url)
	cancel()
	if err != nil {
		s.metrics.IncNavigation("error")
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return NavigationTimeoutError{URL: url, Err: err}
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	for _, selector := range s.sel.Primary() {
		waitCtx, cancel := context.WithTimeout(ctx, s.cfg.SelectorTimeout)
		err := page.WaitVisible(waitCtx, selector)
		cancel()
		if err != nil {
			s.metrics.IncNavigation("empty")
			return NoInventoryError{Selector: selector, Err: err}
		}
	}

	s.metrics.IncNavigation("ok")
	s.metrics.ObserveNavigation(time.Since(start))
	return nil
}

func (s *Scraper) failureMessage(err error) string {
	var timeout NavigationTimeoutError
	if errors.As(err, &timeout) {
		return fmt.Sprintf("Check car name on %s website", s.cfg.SiteName)
	}
	return err.Error()
}

func cancelledOutcome(log *slog.Logger, index int) models.PeriodOutcome {
	log.Info("job cancelled", slog.Int("index", index))
	return models.PeriodOutcome{Cancelled: true, Message: CancelledMessage}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
