// Package period builds the rental windows queried for every vehicle.
package period

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind selects the window-construction rule.
type Kind int

const (
	Daily Kind = iota
	Weekly
	Monthly
)

// MonthlyThresholdHours is the duration from which a window counts as monthly.
const MonthlyThresholdHours = 720

// LabelLayout formats window bounds in labels.
const LabelLayout = "1/2/2006, 3:04:05 PM"

// ErrInvalidMonths is returned for monthly windows shorter than one month.
var ErrInvalidMonths = errors.New("period: month count must be at least 1")

// String returns the lowercase name used in config and metrics.
func (k Kind) String() string {
	switch k {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Title returns the capitalised name used in error messages.
func (k Kind) Title() string {
	s := k.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseKind converts a config value into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return Daily, nil
	case "weekly":
		return Weekly, nil
	case "monthly":
		return Monthly, nil
	default:
		return 0, fmt.Errorf("period: unknown kind %q", s)
	}
}

// ParseKinds converts a list of config values, preserving order and dropping duplicates.
func ParseKinds(values []string) ([]Kind, error) {
	kinds := make([]Kind, 0, len(values))
	seen := make(map[Kind]bool, len(values))
	for _, v := range values {
		k, err := ParseKind(v)
		if err != nil {
			return nil, err
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Period is one rental window.
type Period struct {
	Kind          Kind
	Label         string
	Since         time.Time
	Until         time.Time
	SinceMillis   int64
	UntilMillis   int64
	DurationHours float64
	IsMonthly     bool
	MonthCount    int
}

// IsMonthlyDuration reports whether a window of the given length is monthly.
func IsMonthlyDuration(hours float64) bool {
	return hours >= MonthlyThresholdHours
}

// Build derives the window of the given kind starting at ref. months is only
// read for Monthly windows.
func Build(kind Kind, ref time.Time, months int) (Period, error) {
	var until time.Time
	switch kind {
	case Daily:
		until = ref.AddDate(0, 0, 1)
	case Weekly:
		until = ref.AddDate(0, 0, 7)
	case Monthly:
		if months < 1 {
			return Period{}, ErrInvalidMonths
		}
		until = ref.AddDate(0, months, 0)
	default:
		return Period{}, fmt.Errorf("period: unknown kind %d", int(kind))
	}

	p := Period{
		Kind:        kind,
		Since:       ref,
		Until:       until,
		SinceMillis: ref.UnixMilli(),
		UntilMillis: until.UnixMilli(),
	}
	p.DurationHours = float64(p.UntilMillis-p.SinceMillis) / float64(time.Hour/time.Millisecond)
	p.IsMonthly = IsMonthlyDuration(p.DurationHours)

	switch {
	case kind == Monthly:
		p.MonthCount = months
	case p.IsMonthly:
		p.MonthCount = int(math.Ceil(p.DurationHours / MonthlyThresholdHours))
	}

	if kind == Monthly {
		unit := "Month"
		if months > 1 {
			unit = "Months"
		}
		p.Label = fmt.Sprintf("%d %s from %s", months, unit, ref.Format(LabelLayout))
	} else {
		p.Label = fmt.Sprintf("%s - %s", ref.Format(LabelLayout), until.Format(LabelLayout))
	}

	return p, nil
}
