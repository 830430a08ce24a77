// Package service ties one scrape cycle together: run, export, mail, clean up.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-rentals/config"
	"github.com/aluiziolira/go-scrape-rentals/models"
	"github.com/aluiziolira/go-scrape-rentals/orchestrator"
	"github.com/aluiziolira/go-scrape-rentals/pipeline"
	"github.com/aluiziolira/go-scrape-rentals/schedule"
	"github.com/aluiziolira/go-scrape-rentals/scraper"
)

// Runner executes one orchestrated run.
type Runner interface {
	Run(ctx context.Context, rc *orchestrator.RunContext, req orchestrator.Request) models.Report
}

// Notifier delivers cycle results.
type Notifier interface {
	SendReport(path, name string, recipients []string) error
	SendFailure(message string, recipients []string) error
}

// ExportFunc writes records and returns the file to deliver.
type ExportFunc func(ctx context.Context, records []*models.CardRecord, vehicles []string, cfg *config.Config) (string, error)

// Service runs scrape cycles and exposes their control surface.
type Service struct {
	cfg      *config.Config
	runner   Runner
	notifier Notifier
	export   ExportFunc
	gate     *schedule.Gate
	metrics  *scraper.Metrics
	now      func() time.Time

	mu          sync.Mutex
	active      *orchestrator.RunContext
	started     bool // the current cycle has handed its run context out
	pendingStop bool // stop arrived after the gate was taken but before the run began
	last        *models.Report
}

// New builds a service. A nil notifier disables mail; a nil gate gets a private one.
func New(cfg *config.Config, runner Runner, notifier Notifier, metrics *scraper.Metrics, gate *schedule.Gate) *Service {
	if gate == nil {
		gate = &schedule.Gate{}
	}
	return &Service{
		cfg:      cfg,
		runner:   runner,
		notifier: notifier,
		export:   pipeline.Export,
		gate:     gate,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Gate returns the admission gate shared with the scheduler.
func (s *Service) Gate() *schedule.Gate {
	return s.gate
}

// RunCycle scrapes the configured vehicles, exports and mails the result.
// It does not consult the gate; scheduled and manual triggers do.
func (s *Service) RunCycle(ctx context.Context) models.Report {
	log := slog.With(slog.String("cycle", s.now().Format(time.RFC3339)))
	defer s.endCycle()

	req, err := orchestrator.RequestFromConfig(s.cfg)
	if err != nil {
		return s.fail(log, fmt.Sprintf("invalid request: %v", err))
	}
	ref, err := orchestrator.ReferenceTime(s.cfg, s.now())
	if err != nil {
		return s.fail(log, err.Error())
	}

	rc := orchestrator.NewRunContext(ctx, ref)
	s.setActive(rc)
	report := s.runner.Run(ctx, rc, req)
	s.setActive(nil)
	s.setLast(report)

	if !report.Success {
		log.Warn("cycle produced no data", slog.String("message", report.Message))
		if report.Cancelled {
			return report
		}
		s.notifyFailure(log, report.Message)
		return report
	}

	// The export runs even when shutdown cancelled the run so collected rows survive.
	path, err := s.export(context.WithoutCancel(ctx), report.Records, req.Vehicles, s.cfg)
	if err != nil {
		log.Error("export failed", slog.Any("error", err))
		s.notifyFailure(log, fmt.Sprintf("export failed: %v", err))
		return report
	}
	log.Info("cycle exported",
		slog.String("path", path),
		slog.Int("records", len(report.Records)),
		slog.String("message", report.Message),
	)

	if s.notifier != nil && len(s.cfg.Recipients) > 0 {
		if err := s.notifier.SendReport(path, filepath.Base(path), s.cfg.Recipients); err != nil {
			log.Error("report email failed", slog.Any("error", err))
		}
	}
	if !s.cfg.KeepOutput {
		removeOutputs(log, path)
	}
	return report
}

// Stop cancels the active run. It reports false when nothing is running.
func (s *Service) Stop() bool {
	s.mu.Lock()
	rc := s.active
	if rc == nil {
		pending := !s.started && s.gate.Running()
		if pending {
			s.pendingStop = true
		}
		s.mu.Unlock()
		if pending {
			slog.Info("stop requested before run start")
		}
		return pending
	}
	s.mu.Unlock()
	rc.Token.Stop()
	slog.Info("stop requested for active run")
	return true
}

// Running reports whether a cycle holds the gate.
func (s *Service) Running() bool {
	return s.gate.Running()
}

// LastReport returns the most recent finished run, if any.
func (s *Service) LastReport() (models.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return models.Report{}, false
	}
	return *s.last, true
}

func (s *Service) fail(log *slog.Logger, msg string) models.Report {
	now := s.now()
	report := models.Report{Message: msg, Errors: []string{msg}, StartedAt: now, FinishedAt: now}
	s.setLast(report)
	log.Error("cycle aborted", slog.String("message", msg))
	s.notifyFailure(log, msg)
	return report
}

func (s *Service) notifyFailure(log *slog.Logger, msg string) {
	if s.notifier == nil || len(s.cfg.Recipients) == 0 {
		return
	}
	if err := s.notifier.SendFailure(msg, s.cfg.Recipients); err != nil {
		log.Error("failure email failed", slog.Any("error", err))
	}
}

func (s *Service) setActive(rc *orchestrator.RunContext) {
	s.mu.Lock()
	s.active = rc
	stop := rc != nil && s.pendingStop
	if rc != nil {
		s.started = true
		s.pendingStop = false
	}
	s.mu.Unlock()
	if stop {
		rc.Token.Stop()
	}
}

func (s *Service) endCycle() {
	s.mu.Lock()
	s.active = nil
	s.started = false
	s.pendingStop = false
	s.mu.Unlock()
}

func (s *Service) setLast(r models.Report) {
	s.mu.Lock()
	s.last = &r
	s.mu.Unlock()
}

// removeOutputs deletes path and any sibling written for the same export.
func removeOutputs(log *slog.Logger, path string) {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	matches, err := filepath.Glob(stem + ".*")
	if err != nil || len(matches) == 0 {
		matches = []string{path}
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			log.Warn("remove export", slog.String("path", m), slog.Any("error", err))
		}
	}
}
