// Package parser turns raw text pulled from listing and detail views into
// record fields. Nothing here touches a page.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aluiziolira/go-scrape-rentals/models"
)

var (
	yearRe       = regexp.MustCompile(`\d{4}`)
	spaceRe      = regexp.MustCompile(`\s+`)
	totalRe      = regexp.MustCompile(`(?i)Total:`)
	currencyRe   = regexp.MustCompile(`AED`)
	kmRe         = regexp.MustCompile(`(?i)([\d,]+)\s*km`)
	perKmRe      = regexp.MustCompile(`(?i)AED\s?(\d+(\.\d+)?)`)
	excessRe     = regexp.MustCompile(`(?i)excess amount.*\d+.*AED`)
	depositFreeR = regexp.MustCompile(`(?i)deposit[- ]free ride.*AED`)
)

// PriceLine is one paragraph of a card's price block.
type PriceLine struct {
	Text string
	// CrossedOut is set when the paragraph holds the struck-through marker.
	CrossedOut bool
}

// Prices holds the classified price block.
type Prices struct {
	Cross  string
	Actual string
	Total  string
}

// ValidateVehicle rejects vehicle names that cannot form a listing URL.
func ValidateVehicle(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("car name %q must be at least 1 characters long", name)
	}
	return nil
}

// ValidateRecord ensures every column carries a value or the sentinel.
func ValidateRecord(r *models.CardRecord) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	for i, v := range r.Values() {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("record %q missing %s", r.CarName, models.Columns[i])
		}
	}
	return nil
}

// ExtractYear returns the first four-digit run in the model text.
func ExtractYear(model string) string {
	if y := yearRe.FindString(model); y != "" {
		return y
	}
	return models.Sentinel
}

// JoinFeatures joins non-empty feature badges with ", ".
func JoinFeatures(texts []string) string {
	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return models.Sentinel
	}
	return strings.TrimSpace(spaceRe.ReplaceAllString(strings.Join(parts, ", "), " "))
}

// ClassifyPrices assigns each price line to Total, Cross or Actual, top to
// bottom. A later line of the same category replaces an earlier one.
func ClassifyPrices(lines []PriceLine) Prices {
	p := Prices{Cross: models.Sentinel, Actual: models.Sentinel, Total: models.Sentinel}
	for _, line := range lines {
		text := strings.TrimSpace(line.Text)
		switch {
		case totalRe.MatchString(text):
			p.Total = strings.TrimSpace(strings.Replace(text, "Total:", "", 1))
		case currencyRe.MatchString(text) && line.CrossedOut:
			p.Cross = text
		case currencyRe.MatchString(text):
			p.Actual = text
		}
	}
	return p
}

// ParseMileage combines the mileage allowance and the per-km overage price
// found in the panel texts.
func ParseMileage(texts []string) string {
	combined := strings.Join(texts, " ")
	km := kmRe.FindStringSubmatch(combined)
	price := perKmRe.FindStringSubmatch(combined)
	if km == nil || price == nil {
		return models.Sentinel
	}
	allowance := strings.ReplaceAll(km[1], ",", "")
	if allowance == "" {
		return models.Sentinel
	}
	return fmt.Sprintf("%s km, then %s AED per km", allowance, price[1])
}

// ParseInsurance scans insurance lines in order and keeps the ones describing
// cover, excess and deposit terms.
func ParseInsurance(lines []string) string {
	var out []string
	for i, line := range lines {
		if strings.Contains(line, "Comprehensive Insurance") {
			out = append(out, line)
		}
		if excessRe.MatchString(line) {
			out = append(out, line)
		}
		if depositFreeR.MatchString(line) {
			out = append(out, line)
		}
		if strings.ToLower(line) == "deposit" && i+1 < len(lines) && strings.Contains(lines[i+1], "AED") {
			out = append(out, fmt.Sprintf(" or %s %s", line, lines[i+1]))
		}
	}
	if len(out) == 0 {
		return models.Sentinel
	}
	return strings.Join(out, "\n")
}

// SplitLines splits rendered text into trimmed, non-empty lines.
func SplitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
