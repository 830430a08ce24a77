package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-rentals/config"
	"github.com/aluiziolira/go-scrape-rentals/models"
	"github.com/aluiziolira/go-scrape-rentals/scraper"
)

// RunContext holds everything one run owns. It is created fresh per run and
// never shared between runs.
type RunContext struct {
	Token     *Token
	Reference time.Time
	Sessions  *scraper.SessionStore
	StartedAt time.Time

	mu      sync.Mutex
	entries []entry
}

// entry is one job's contribution, ordered by (vehicle, period). Period -1
// marks a vehicle-level failure.
type entry struct {
	vehicle int
	period  int
	records []*models.CardRecord
	err     string
}

// NewRunContext starts a run whose periods begin at ref.
func NewRunContext(parent context.Context, ref time.Time) *RunContext {
	return &RunContext{
		Token:     NewToken(parent),
		Reference: ref,
		Sessions:  scraper.NewSessionStore(),
		StartedAt: time.Now(),
	}
}

// ReferenceTime returns now shifted by the configured lead time in the
// configured timezone.
func ReferenceTime(cfg *config.Config, now time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	return now.In(loc).Add(cfg.LeadTime).Truncate(time.Second), nil
}

func (rc *RunContext) addRecords(vehicle, period int, records []*models.CardRecord) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.entries = append(rc.entries, entry{vehicle: vehicle, period: period, records: records})
}

func (rc *RunContext) addError(vehicle, period int, msg string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.entries = append(rc.entries, entry{vehicle: vehicle, period: period, err: msg})
}

// collect returns records and errors in job order.
func (rc *RunContext) collect() ([]*models.CardRecord, []string) {
	rc.mu.Lock()
	entries := make([]entry, len(rc.entries))
	copy(entries, rc.entries)
	rc.mu.Unlock()

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].vehicle != entries[j].vehicle {
			return entries[i].vehicle < entries[j].vehicle
		}
		return entries[i].period < entries[j].period
	})

	var records []*models.CardRecord
	var errs []string
	for _, e := range entries {
		records = append(records, e.records...)
		if e.err != "" {
			errs = append(errs, e.err)
		}
	}
	return records, errs
}
