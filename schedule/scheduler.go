// Package schedule fires scrape cycles on cron specs in a fixed timezone.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RunFunc executes one scrape cycle.
type RunFunc func(ctx context.Context)

// Scheduler wraps a cron instance whose every trigger goes through a Gate.
type Scheduler struct {
	cron   *cron.Cron
	parser cron.Parser
	loc    *time.Location
	gate   *Gate
	run    RunFunc
	logger *slog.Logger

	mu        sync.Mutex
	specs     []string
	schedules []cron.Schedule
	ctx       context.Context
}

// New builds a stopped scheduler. A nil gate gets a private one.
func New(loc *time.Location, gate *Gate, run RunFunc, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if gate == nil {
		gate = &Gate{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	cl := cronLogger{logger: logger}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		parser: parser,
		loc:    loc,
		gate:   gate,
		run:    run,
		logger: logger,
		ctx:    context.Background(),
	}
}

// Add registers a five-field cron spec.
func (s *Scheduler) Add(spec string) error {
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", spec, err)
	}

	s.cron.Schedule(sched, cron.FuncJob(func() {
		s.logger.Info("schedule triggered", slog.String("schedule", spec))
		s.Trigger()
	}))

	s.mu.Lock()
	s.specs = append(s.specs, spec)
	s.schedules = append(s.schedules, sched)
	s.mu.Unlock()

	s.logger.Info("schedule registered",
		slog.String("schedule", spec),
		slog.String("timezone", s.loc.String()),
		slog.Time("next_run", sched.Next(time.Now().In(s.loc))),
	)
	return nil
}

// Trigger runs a cycle now unless one is already in progress.
func (s *Scheduler) Trigger() bool {
	ctx := s.context()
	if ctx.Err() != nil {
		return false
	}
	ok := s.gate.TryRun(func() { s.run(ctx) })
	if !ok {
		s.logger.Warn("scrape already running, trigger skipped")
	}
	return ok
}

// NextAfter returns the next fire time of every registered spec after t.
func (s *Scheduler) NextAfter(t time.Time) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]time.Time, 0, len(s.schedules))
	for _, sched := range s.schedules {
		out = append(out, sched.Next(t.In(s.loc)))
	}
	return out
}

// Start begins firing. Runs receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	n := len(s.specs)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("schedules", n), slog.String("timezone", s.loc.String()))
}

// Stop halts new triggers and waits for a running cycle up to the deadline on ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{slog.Any("error", err)}, keysAndValues...)...)
}
