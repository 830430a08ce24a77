package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-rentals/browser"
	"github.com/aluiziolira/go-scrape-rentals/config"
	"github.com/aluiziolira/go-scrape-rentals/models"
	"github.com/aluiziolira/go-scrape-rentals/period"
	"github.com/aluiziolira/go-scrape-rentals/scraper"
)

// fakeSite serves one single-card listing per vehicle slug.
type fakeSite struct {
	mu sync.Mutex

	navErrs map[string]error // vehicle slug -> navigation error
	openErr map[int]error    // NewPage call number -> error
	onClose func(n int)

	opened      int
	closed      int
	navigations []string
}

func (s *fakeSite) NewPage(ctx context.Context) (browser.Page, error) {
	s.mu.Lock()
	n := s.opened
	s.opened++
	err := s.openErr[n]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &sitePage{site: s}, nil
}

func (s *fakeSite) Close() error { return nil }

func (s *fakeSite) opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

type sitePage struct {
	site    *fakeSite
	current string
}

func (p *sitePage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := strings.SplitN(strings.TrimPrefix(url, "https://drive.yango.com/search/all/"), "?", 2)[0]

	p.site.mu.Lock()
	p.site.navigations = append(p.site.navigations, path)
	err := p.site.navErrs[path]
	p.site.mu.Unlock()
	if err != nil {
		return err
	}
	p.current = listingFor(strings.ReplaceAll(path, "/", " "))
	return nil
}

func (p *sitePage) WaitVisible(ctx context.Context, selector string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.current))
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return browser.ErrNotFound
	}
	return nil
}

func (p *sitePage) HTML(ctx context.Context) (string, error) { return p.current, nil }

func (p *sitePage) InnerText(ctx context.Context, selector string) (string, bool, error) {
	return "", false, nil
}

func (p *sitePage) ClickNth(ctx context.Context, selector string, index int) error {
	return browser.ErrUnsupported
}

func (p *sitePage) Cookies(ctx context.Context) ([]browser.Cookie, error) { return nil, nil }

func (p *sitePage) SetCookies(ctx context.Context, cookies []browser.Cookie) error { return nil }

func (p *sitePage) Close() error {
	p.site.mu.Lock()
	n := p.site.closed
	p.site.closed++
	hook := p.site.onClose
	p.site.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return nil
}

func listingFor(vehicle string) string {
	return fmt.Sprintf(`<html><body>
<div class="Card_Card__a1">
  <div><span class="Card_CardTitleMedium__korrS">%s offer</span></div>
  <div class="HStack_HStack__bHoaj Card_CardBubbles__zuOuw"><span class="Text_Text__F4Wpv Card_CardBubble__zukT3">Automatic</span></div>
  <div class="Heading_Heading__PjLg8 Card_CardPrice__spWUR"><p>AED 99</p></div>
</div>
</body></html>`, vehicle)
}

func testConfig(workers int) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Workers = workers
	cfg.NavigationTimeout = time.Second
	cfg.SelectorTimeout = 50 * time.Millisecond
	cfg.ClickTimeout = 50 * time.Millisecond
	cfg.PanelTimeout = 50 * time.Millisecond
	cfg.SettleDelay = 0
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func newTestOrchestrator(cfg *config.Config, site *fakeSite) *Orchestrator {
	s := scraper.NewScraper(cfg, scraper.DefaultSelectors(), scraper.NewMetrics())
	return New(cfg, site, s)
}

func newRun() *RunContext {
	return NewRunContext(context.Background(), time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
}

func vehiclesOf(records []*models.CardRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.OriginalVehicle)
	}
	return out
}

func TestRunPartialFailure(t *testing.T) {
	site := &fakeSite{navErrs: map[string]error{"b": errors.New("boom")}}
	o := newTestOrchestrator(testConfig(1), site)

	report := o.Run(context.Background(), newRun(), Request{
		Vehicles: []string{"a", "b", "c"},
		Kinds:    []period.Kind{period.Daily},
	})

	if !report.Success {
		t.Fatalf("report = %+v, want success", report)
	}
	if got := strings.Join(vehiclesOf(report.Records), ","); got != "a,c" {
		t.Fatalf("record vehicles = %q, want a,c", got)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("errors = %q, want one entry", report.Errors)
	}
	if !strings.HasPrefix(report.Errors[0], "Daily scrape failed for b: ") || !strings.Contains(report.Errors[0], "boom") {
		t.Fatalf("error = %q", report.Errors[0])
	}
	if report.Message != MsgPartialPrefix+report.Errors[0] {
		t.Fatalf("message = %q", report.Message)
	}
	if site.closed != 3 {
		t.Fatalf("closed pages = %d, want 3", site.closed)
	}
}

func TestRunCancelBetweenVehicles(t *testing.T) {
	rc := newRun()
	site := &fakeSite{onClose: func(n int) {
		if n == 0 {
			rc.Token.Stop()
		}
	}}
	o := newTestOrchestrator(testConfig(1), site)

	report := o.Run(context.Background(), rc, Request{
		Vehicles: []string{"a", "b", "c"},
		Kinds:    []period.Kind{period.Daily, period.Weekly},
	})

	if !report.Cancelled {
		t.Fatal("expected cancelled report")
	}
	if got := strings.Join(vehiclesOf(report.Records), ","); got != "a,a" {
		t.Fatalf("record vehicles = %q, want a,a", got)
	}
	if len(report.Errors) != 0 {
		t.Fatalf("errors = %q, want none", report.Errors)
	}
	if site.opens() != 1 {
		t.Fatalf("pages opened = %d, want 1", site.opens())
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	rc := newRun()
	rc.Token.Stop()
	site := &fakeSite{}
	o := newTestOrchestrator(testConfig(1), site)

	report := o.Run(context.Background(), rc, Request{Vehicles: []string{"a"}, Kinds: []period.Kind{period.Daily}})
	if report.Success || report.Message != MsgCancelled {
		t.Fatalf("report = %+v, want cancelled", report)
	}
}

func TestRunParentContextStopsToken(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rc := newRun()
	o := newTestOrchestrator(testConfig(1), &fakeSite{})

	report := o.Run(ctx, rc, Request{Vehicles: []string{"a"}, Kinds: []period.Kind{period.Daily}})
	if !report.Cancelled || !rc.Token.Cancelled() {
		t.Fatalf("report = %+v, want cancelled", report)
	}
}

func TestRunValidationBeforeNavigation(t *testing.T) {
	site := &fakeSite{}
	o := newTestOrchestrator(testConfig(1), site)

	report := o.Run(context.Background(), newRun(), Request{
		Vehicles: []string{"a", "  "},
		Kinds:    []period.Kind{period.Daily},
	})

	if report.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(report.Message, "must be at least 1 characters long") {
		t.Fatalf("message = %q", report.Message)
	}
	if site.opens() != 0 || len(site.navigations) != 0 {
		t.Fatalf("opened %d pages, navigated %v", site.opens(), site.navigations)
	}
}

func TestRunWorkerPoolKeepsJobOrder(t *testing.T) {
	vehicles := []string{"v1", "v2", "v3", "v4", "v5", "v6"}
	site := &fakeSite{navErrs: map[string]error{"v4": errors.New("down")}}
	o := newTestOrchestrator(testConfig(3), site)

	report := o.Run(context.Background(), newRun(), Request{
		Vehicles: vehicles,
		Kinds:    []period.Kind{period.Daily, period.Weekly},
	})

	want := "v1,v1,v2,v2,v3,v3,v5,v5,v6,v6"
	if got := strings.Join(vehiclesOf(report.Records), ","); got != want {
		t.Fatalf("record vehicles = %q, want %q", got, want)
	}
	if len(report.Errors) != 2 ||
		!strings.HasPrefix(report.Errors[0], "Daily scrape failed for v4") ||
		!strings.HasPrefix(report.Errors[1], "Weekly scrape failed for v4") {
		t.Fatalf("errors = %q", report.Errors)
	}
	if site.opens() != len(vehicles) {
		t.Fatalf("pages opened = %d, want %d", site.opens(), len(vehicles))
	}
}

func TestRunSkipsInvalidMonthly(t *testing.T) {
	site := &fakeSite{}
	o := newTestOrchestrator(testConfig(1), site)

	report := o.Run(context.Background(), newRun(), Request{
		Vehicles: []string{"a"},
		Kinds:    []period.Kind{period.Monthly},
		Months:   0,
	})

	if report.Success || report.Message != MsgNoData {
		t.Fatalf("report = %+v, want %q", report, MsgNoData)
	}
	if len(site.navigations) != 0 {
		t.Fatalf("navigations = %v, want none", site.navigations)
	}
}

func TestRunPageOpenFailure(t *testing.T) {
	site := &fakeSite{openErr: map[int]error{1: errors.New("tab crashed")}}
	o := newTestOrchestrator(testConfig(1), site)

	report := o.Run(context.Background(), newRun(), Request{
		Vehicles: []string{"a", "b"},
		Kinds:    []period.Kind{period.Daily},
	})

	if len(report.Errors) != 1 || report.Errors[0] != "Failed to scrape b: tab crashed" {
		t.Fatalf("errors = %q", report.Errors)
	}
	if !report.Success {
		t.Fatal("expected success from vehicle a")
	}
}

func TestRunAllFail(t *testing.T) {
	site := &fakeSite{navErrs: map[string]error{"a": errors.New("x"), "b": errors.New("y")}}
	o := newTestOrchestrator(testConfig(1), site)

	report := o.Run(context.Background(), newRun(), Request{
		Vehicles: []string{"a", "b"},
		Kinds:    []period.Kind{period.Daily},
	})

	if report.Success {
		t.Fatal("expected failure")
	}
	if report.Message != strings.Join(report.Errors, "; ") || len(report.Errors) != 2 {
		t.Fatalf("message = %q, errors = %q", report.Message, report.Errors)
	}
}

func TestRunMultiWordVehicle(t *testing.T) {
	site := &fakeSite{}
	o := newTestOrchestrator(testConfig(1), site)

	report := o.Run(context.Background(), newRun(), Request{
		Vehicles: []string{"Kia Seltos"},
		Kinds:    []period.Kind{period.Monthly},
		Months:   2,
	})

	if !report.Success || report.Message != MsgSuccess {
		t.Fatalf("report = %+v", report)
	}
	if site.navigations[0] != "kia/seltos" {
		t.Fatalf("navigated to %q, want kia/seltos", site.navigations[0])
	}
	if got := report.Records[0].Period; got != "2 Months from 1/1/2024, 8:00:00 AM" {
		t.Fatalf("period = %q", got)
	}
}

func TestReferenceTime(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timezone = "Asia/Kolkata"
	cfg.LeadTime = 2 * time.Hour

	now := time.Date(2024, 1, 1, 0, 0, 0, 500, time.UTC)
	ref, err := ReferenceTime(cfg, now)
	if err != nil {
		t.Fatalf("ReferenceTime() error = %v", err)
	}
	if !ref.Equal(time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)) {
		t.Fatalf("ref = %v", ref)
	}
	if ref.Location().String() != "Asia/Kolkata" {
		t.Fatalf("location = %v", ref.Location())
	}

	cfg.Timezone = "Nowhere/Land"
	if _, err := ReferenceTime(cfg, now); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestTokenStopIsTerminal(t *testing.T) {
	tok := NewToken(context.Background())
	if tok.Cancelled() {
		t.Fatal("new token should not be cancelled")
	}
	tok.Stop()
	tok.Stop()
	if !tok.Cancelled() || tok.Context().Err() == nil {
		t.Fatal("stopped token should stay cancelled")
	}
}

func TestRequestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Kinds = []string{"weekly", "daily"}
	req, err := RequestFromConfig(cfg)
	if err != nil {
		t.Fatalf("RequestFromConfig() error = %v", err)
	}
	if len(req.Kinds) != 2 || req.Kinds[0] != period.Weekly || len(req.Vehicles) != len(config.DefaultVehicles) {
		t.Fatalf("request = %+v", req)
	}
}
