package period

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	unsafeFileRe = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)
	underscoreRe = regexp.MustCompile(`_+`)
)

// Slug lowercases a vehicle name and turns whitespace runs into path separators.
func Slug(vehicle string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(vehicle)), "/")
}

// FileSlug lowercases a vehicle name for use inside file names.
func FileSlug(vehicle string) string {
	s := whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(vehicle)), "_")
	return strings.ReplaceAll(s, "/", "_")
}

// SanitizeFileName keeps [a-zA-Z0-9-_], squeezes underscores and caps the length at 100.
func SanitizeFileName(s string) string {
	s = unsafeFileRe.ReplaceAllString(s, "_")
	s = underscoreRe.ReplaceAllString(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// ListingURL builds the sorted-by-price search URL for one vehicle and window.
func ListingURL(base, vehicle string, p Period) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("base url must include a host")
	}

	slug := Slug(vehicle)
	if slug == "" {
		return "", fmt.Errorf("empty vehicle slug")
	}
	segments := strings.Split(slug, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	months := p.MonthCount
	monthly := p.IsMonthly
	if p.Kind == Monthly {
		monthly = true
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	b.WriteString("/search/all/")
	b.WriteString(strings.Join(segments, "/"))
	fmt.Fprintf(&b, "?since=%d&until=%d&duration_months=%d", p.SinceMillis, p.UntilMillis, months)
	if monthly {
		b.WriteString("&is_monthly=true")
	}
	b.WriteString("&sort_by=price&sort_order=asc")
	return b.String(), nil
}
