package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-rentals/browser"
	"github.com/aluiziolira/go-scrape-rentals/models"
	"github.com/aluiziolira/go-scrape-rentals/parser"
)

// CardLimit caps the cards read per job; only the cheapest results matter.
const CardLimit = 5

// Card is one listing card and whether it offers a detail action.
type Card struct {
	Record    *models.CardRecord
	HasAction bool
}

// ExtractCard reads the card at index from the loaded listing. It returns
// nil when no card exists at index. Transient read failures are retried;
// an ExtractionError means every attempt failed.
func (s *Scraper) ExtractCard(ctx context.Context, page browser.Page, index int, job Job) (*Card, error) {
	if index < 0 || index >= CardLimit {
		return nil, nil
	}

	attempts := s.cfg.ExtractAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, CancelledError{Err: err}
		}

		card, err := s.readCard(ctx, page, index, job)
		if err == nil {
			return card, nil
		}
		lastErr = err

		if attempt < attempts {
			s.metrics.IncRetries()
			slog.Debug("retrying card",
				slog.String("vehicle", job.Vehicle),
				slog.Int("index", index),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			if err := sleep(ctx, s.cfg.RetryDelay); err != nil {
				return nil, CancelledError{Err: err}
			}
		}
	}

	return nil, ExtractionError{Index: index, Attempts: attempts, Err: lastErr}
}

func (s *Scraper) readCard(ctx context.Context, page browser.Page, index int, job Job) (*Card, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot listing: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	return cardFromDocument(doc, s.sel, index, job), nil
}

func cardFromDocument(doc *goquery.Document, sel Selectors, index int, job Job) *Card {
	titles := doc.Find(sel.Title)
	if index >= titles.Length() {
		return nil
	}
	title := titles.Eq(index)

	container := title.Closest("div")
	if container.Length() == 0 {
		return nil
	}

	rec := models.NewCardRecord()
	rec.CarName = textOr(title)
	rec.Model = textOr(container.Find(sel.Model).First())
	rec.Year = parser.ExtractYear(rec.Model)

	if features := doc.Find(sel.Features).Eq(index); features.Length() > 0 {
		var texts []string
		features.Find(sel.FeatureSpans).Each(func(_ int, span *goquery.Selection) {
			texts = append(texts, span.Text())
		})
		rec.Description = parser.JoinFeatures(texts)
	}

	if block := doc.Find(sel.Price).Eq(index); block.Length() > 0 {
		var lines []parser.PriceLine
		block.Find("p").Each(func(_ int, p *goquery.Selection) {
			lines = append(lines, parser.PriceLine{
				Text:       p.Text(),
				CrossedOut: p.Find(sel.CrossOut).Length() > 0,
			})
		})
		prices := parser.ClassifyPrices(lines)
		rec.CrossPrice = prices.Cross
		rec.ActualPrice = prices.Actual
		rec.Total = prices.Total
	}

	rec.OriginalVehicle = job.Vehicle
	rec.Period = job.Period.Label

	return &Card{
		Record:    rec,
		HasAction: doc.Find(sel.Button).Length() > index,
	}
}

func textOr(s *goquery.Selection) string {
	if s.Length() == 0 {
		return models.Sentinel
	}
	if t := strings.TrimSpace(s.Text()); t != "" {
		return t
	}
	return models.Sentinel
}
