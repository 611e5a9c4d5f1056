package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"MarketLens/internal/collector"
	"MarketLens/internal/recorder"
)

// failureWindow is how far back the stats job counts upstream failures.
const failureWindow = 24 * time.Hour

// Scheduler manages the background cron tasks of the daemon.
type Scheduler struct {
	Cron      *cron.Cron
	Collector *collector.Collector
	Recorder  recorder.Recorder
	Ctx       context.Context

	logger *zap.Logger
	now    func() time.Time
}

// NewScheduler creates a new Scheduler. Specs take a leading seconds field.
func NewScheduler(ctx context.Context, col *collector.Collector, rec recorder.Recorder, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Collector: col,
		Recorder:  rec,
		Ctx:       ctx,
		logger:    logger.With(zap.String("component", "scheduler")),
		now:       time.Now,
	}
}

// RegisterAll registers the cache warm-up and stats tasks.
func (s *Scheduler) RegisterAll(warmCron, statsCron string) error {
	if _, err := s.Cron.AddFunc(warmCron, s.warmTask); err != nil {
		return fmt.Errorf("register warm task: %w", err)
	}
	if _, err := s.Cron.AddFunc(statsCron, s.statsTask); err != nil {
		return fmt.Errorf("register stats task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started", zap.Int("tasks", len(s.Cron.Entries())))
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunWarmNow executes the warm-up task immediately (RUN_ON_START).
func (s *Scheduler) RunWarmNow() {
	s.warmTask()
}

func (s *Scheduler) warmTask() {
	if s.Ctx.Err() != nil {
		return
	}
	start := time.Now()
	failed := s.Collector.Warm(s.Ctx, s.now())
	s.logger.Info("cache warmed", zap.Int("failures", failed), zap.Duration("elapsed", time.Since(start)))
}

// StatsReport is what the stats task logs.
type StatsReport struct {
	Caches   map[string]CacheLine
	Failures map[string]int // per symbol over failureWindow
}

// CacheLine summarises one cache store.
type CacheLine struct {
	Entries int
	Fresh   int
	HitRate float64
}

// Stats gathers cache and failure statistics as of now.
func (s *Scheduler) Stats(now time.Time) (StatsReport, error) {
	report := StatsReport{Caches: make(map[string]CacheLine)}
	for name, st := range s.Collector.CacheStats(now) {
		report.Caches[name] = CacheLine{Entries: st.Entries, Fresh: st.Fresh, HitRate: st.HitRate()}
	}
	failures, err := s.Recorder.FailureCounts(now.Add(-failureWindow))
	if err != nil {
		return report, fmt.Errorf("failure counts: %w", err)
	}
	report.Failures = failures
	return report, nil
}

func (s *Scheduler) statsTask() {
	report, err := s.Stats(s.now())
	if err != nil {
		s.logger.Error("stats", zap.Error(err))
	}
	for name, line := range report.Caches {
		s.logger.Info("cache stats",
			zap.String("store", name),
			zap.Int("entries", line.Entries),
			zap.Int("fresh", line.Fresh),
			zap.Float64("hit_rate", line.HitRate),
		)
	}
	if len(report.Failures) == 0 {
		return
	}
	syms := make([]string, 0, len(report.Failures))
	for sym := range report.Failures {
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool {
		return report.Failures[syms[i]] > report.Failures[syms[j]] ||
			(report.Failures[syms[i]] == report.Failures[syms[j]] && syms[i] < syms[j])
	})
	if len(syms) > 10 {
		syms = syms[:10]
	}
	for _, sym := range syms {
		s.logger.Warn("failing symbol", zap.String("symbol", sym), zap.Int("failures_24h", report.Failures[sym]))
	}
}
