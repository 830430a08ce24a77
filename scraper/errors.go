package scraper

import (
	"context"
	"errors"
	"fmt"
)

// ValidationError rejects a vehicle name before any navigation.
type ValidationError struct {
	Vehicle string
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Errorf("validation: %w", e.Err).Error()
}

func (e ValidationError) Unwrap() error {
	return e.Err
}

// NoInventoryError means the listing loaded but the card selectors never
// appeared. It ends a job normally.
type NoInventoryError struct {
	Selector string
	Err      error
}

func (e NoInventoryError) Error() string {
	return fmt.Errorf("no_inventory: %s: %w", e.Selector, e.Err).Error()
}

func (e NoInventoryError) Unwrap() error {
	return e.Err
}

// ExtractionError means a card could not be read after every attempt.
type ExtractionError struct {
	Index    int
	Attempts int
	Err      error
}

func (e ExtractionError) Error() string {
	return fmt.Errorf("extraction: card %d after %d attempts: %w", e.Index, e.Attempts, e.Err).Error()
}

func (e ExtractionError) Unwrap() error {
	return e.Err
}

// EnrichmentError means the detail view of a card could not be read.
type EnrichmentError struct {
	Index int
	Err   error
}

func (e EnrichmentError) Error() string {
	return fmt.Errorf("enrichment: card %d: %w", e.Index, e.Err).Error()
}

func (e EnrichmentError) Unwrap() error {
	return e.Err
}

// CancelledError reports a cooperative stop.
type CancelledError struct {
	Err error
}

func (e CancelledError) Error() string {
	return fmt.Errorf("cancelled: %w", e.Err).Error()
}

func (e CancelledError) Unwrap() error {
	return e.Err
}

// NavigationTimeoutError means the listing page did not load in time.
type NavigationTimeoutError struct {
	URL string
	Err error
}

func (e NavigationTimeoutError) Error() string {
	return fmt.Errorf("navigation_timeout: %s: %w", e.URL, e.Err).Error()
}

func (e NavigationTimeoutError) Unwrap() error {
	return e.Err
}

// ErrorTypeLabel returns the metric label for err.
func ErrorTypeLabel(err error) string {
	return errorTypeLabel(err)
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var validation ValidationError
	if errors.As(err, &validation) {
		return "validation"
	}
	var cancelled CancelledError
	if errors.As(err, &cancelled) {
		return "cancelled"
	}
	var navTimeout NavigationTimeoutError
	if errors.As(err, &navTimeout) {
		return "navigation_timeout"
	}
	var noInventory NoInventoryError
	if errors.As(err, &noInventory) {
		return "no_inventory"
	}
	var extraction ExtractionError
	if errors.As(err, &extraction) {
		return "extraction"
	}
	var enrichment EnrichmentError
	if errors.As(err, &enrichment) {
		return "enrichment"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "other"
}
