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

// Enrich opens the detail view of the card at index and fills Mileage and
// InsuranceAndOptions. It never fails: on any error both fields hold the
// sentinel and the record is kept.
func (s *Scraper) Enrich(ctx context.Context, page browser.Page, rec *models.CardRecord, index int, sessions *SessionStore) {
	err := s.enrich(ctx, page, rec, index, sessions)
	if err == nil {
		return
	}

	rec.ClearDetail()
	err = EnrichmentError{Index: index, Err: err}
	s.metrics.IncEnrichmentFailure()
	s.metrics.IncError(errorTypeLabel(err))
	slog.Warn("detail view unavailable",
		slog.String("vehicle", rec.OriginalVehicle),
		slog.Int("index", index),
		slog.Any("error", err),
	)
}

func (s *Scraper) enrich(ctx context.Context, page browser.Page, rec *models.CardRecord, index int, sessions *SessionStore) error {
	clickCtx, cancel := context.WithTimeout(ctx, s.cfg.ClickTimeout)
	err := page.ClickNth(clickCtx, s.sel.Button, index)
	cancel()
	if err != nil {
		return fmt.Errorf("open detail: %w", err)
	}

	if err := sleep(ctx, s.cfg.SettleDelay); err != nil {
		return err
	}

	panelCtx, cancel := context.WithTimeout(ctx, s.cfg.PanelTimeout)
	if err := page.WaitVisible(panelCtx, s.sel.DetailPanel); err != nil {
		slog.Debug("mileage section not visible", slog.Int("index", index), slog.Any("error", err))
	}
	cancel()

	html, err := page.HTML(ctx)
	if err != nil {
		return fmt.Errorf("snapshot detail: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse detail: %w", err)
	}
	mileage := mileageFromDocument(doc, s.sel)

	insurance := models.Sentinel
	text, found, err := page.InnerText(ctx, s.sel.Insurance)
	if err != nil {
		return fmt.Errorf("read insurance: %w", err)
	}
	if found {
		insurance = parser.ParseInsurance(parser.SplitLines(text))
	}

	rec.Mileage = mileage
	rec.InsuranceAndOptions = insurance
	slog.Debug("detail view read",
		slog.String("vehicle", rec.OriginalVehicle),
		slog.Int("index", index),
		slog.String("mileage", mileage),
	)

	if sessions != nil {
		cookies, err := page.Cookies(ctx)
		if err != nil {
			slog.Debug("cookie snapshot failed", slog.Any("error", err))
		} else {
			sessions.Save(cookies)
		}
	}
	return nil
}

func mileageFromDocument(doc *goquery.Document, sel Selectors) string {
	var section *goquery.Selection
	doc.Find(sel.DetailPanel).EachWithBreak(func(_ int, island *goquery.Selection) bool {
		heading := strings.ToLower(island.Find(sel.PanelHeading).First().Text())
		if strings.Contains(heading, "mileage") {
			section = island
			return false
		}
		return true
	})
	if section == nil {
		return models.Sentinel
	}

	var texts []string
	collect := func(_ int, s *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(s.Text()))
	}
	section.Find(sel.SlotTitle).Each(collect)
	section.Find(sel.SlotSubtitle).Each(collect)
	return parser.ParseMileage(texts)
}
