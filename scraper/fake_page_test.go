package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-rentals/browser"
)

// fakePage serves a fixed listing after every navigation and a fixed detail
// view after every click.
type fakePage struct {
	mu sync.Mutex

	listing   string
	detail    string
	insurance string
	cookies   []browser.Cookie

	navErrs    map[int]error // by navigation number, zero-based
	htmlErrs   int           // number of leading HTML calls that fail
	clickErr   error
	onNavigate func(n int)

	current     string
	navigations int
	htmlCalls   int
	clicks      []int
	closed      bool
}

func (f *fakePage) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	n := f.navigations
	f.navigations++
	hook := f.onNavigate
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.navErrs[n]; err != nil {
		return err
	}
	f.current = f.listing
	return nil
}

func (f *fakePage) WaitVisible(ctx context.Context, selector string) error {
	f.mu.Lock()
	html := f.current
	f.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%s: %w", selector, browser.ErrNotFound)
	}
	return nil
}

func (f *fakePage) HTML(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.htmlCalls++
	if f.htmlCalls <= f.htmlErrs {
		return "", fmt.Errorf("stale node reference")
	}
	return f.current, nil
}

func (f *fakePage) InnerText(ctx context.Context, selector string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current != f.detail || f.insurance == "" {
		return "", false, nil
	}
	return f.insurance, true, nil
}

func (f *fakePage) ClickNth(ctx context.Context, selector string, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, index)
	if f.clickErr != nil {
		return f.clickErr
	}
	f.current = f.detail
	return nil
}

func (f *fakePage) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cookies, nil
}

func (f *fakePage) SetCookies(ctx context.Context, cookies []browser.Cookie) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cookies = append(f.cookies, cookies...)
	return nil
}

func (f *fakePage) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePage) Navigations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.navigations
}

func buildListing(cards int, withButtons bool) string {
	var b strings.Builder
	b.WriteString("<html><body><main>")
	for i := 1; i <= cards; i++ {
		b.WriteString(`<div class="Card_Card__a1">`)
		b.WriteString(`<div class="Card_Head__b2">`)
		fmt.Fprintf(&b, `<span class="Card_CardTitleMedium__korrS">Car %d</span>`, i)
		fmt.Fprintf(&b, `<span class="ButtonSimilarInfo_ButtonSimilarInfoPrefix___Qou3">or similar 202%d</span>`, i%10)
		b.WriteString(`</div>`)
		b.WriteString(`<div class="HStack_HStack__bHoaj Card_CardBubbles__zuOuw">`)
		b.WriteString(`<span class="Text_Text__F4Wpv Card_CardBubble__zukT3"> Automatic </span>`)
		b.WriteString(`<span class="Text_Text__F4Wpv Card_CardBubble__zukT3">5   seats</span>`)
		b.WriteString(`</div>`)
		b.WriteString(`<div class="Heading_Heading__PjLg8 Card_CardPrice__spWUR">`)
		fmt.Fprintf(&b, `<p><span class="Price_crossOut__QufS3">AED %d</span></p>`, 200+i)
		fmt.Fprintf(&b, `<p>AED %d / day</p>`, 100+i)
		fmt.Fprintf(&b, `<p>Total: AED %d</p>`, 700+i)
		b.WriteString(`</div>`)
		if withButtons {
			b.WriteString(`<button data-testid="Card.Book">View deal</button>`)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString("</main></body></html>")
	return b.String()
}

const detailHTML = `<html><body>
<div class="Island_IslandWrap__QuZPl x1"><h3>Pick-up</h3><div class="SlotText_Title__gHEmU">Dubai Marina</div></div>
<div class="Island_IslandWrap__QuZPl x2">
  <h3>Mileage limit</h3>
  <div class="SlotText_Title__gHEmU">4,500 km included</div>
  <div class="SlotText_Subtitle__yHTPE">then AED 0.5 per km</div>
</div>
<div class="BookFormInsuranceOptions_island__q1">insurance</div>
</body></html>`

const insuranceText = `Insurance & options
Comprehensive Insurance
Excess amount up to 1500 AED
Deposit
AED 1000`
