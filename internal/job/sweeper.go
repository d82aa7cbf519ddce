package job

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aatumaykin/taskmind/internal/logger"
	"github.com/aatumaykin/taskmind/internal/store"
)

// Sweeper periodically removes terminal jobs older than the retention
// window, cascading to their tasks and tool uses.
type Sweeper struct {
	store   store.Store
	log     *logger.Logger
	metrics *Metrics
	maxAge  time.Duration
	cron    *cron.Cron
}

// NewSweeper creates a retention sweeper on the given cron schedule
// (standard 5-field expression).
func NewSweeper(st store.Store, log *logger.Logger, metrics *Metrics, schedule string, maxAge time.Duration) (*Sweeper, error) {
	s := &Sweeper{
		store:   st,
		log:     log,
		metrics: metrics,
		maxAge:  maxAge,
		cron:    cron.New(),
	}

	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins running the schedule.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.log.Info("retention sweeper started",
		logger.Field{Key: "max_age", Value: s.maxAge.String()})
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep removes terminal jobs that ended before the retention cutoff.
// Exposed for manual invocation; the cron schedule calls it as well.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.maxAge)
	removed, err := s.store.PruneJobsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		s.metrics.JobsPruned(removed)
		s.log.Info("pruned old jobs",
			logger.Field{Key: "removed", Value: removed},
			logger.Field{Key: "cutoff", Value: cutoff.UTC().Format(time.RFC3339)})
	}
	return removed, nil
}

func (s *Sweeper) sweep() {
	if _, err := s.Sweep(context.Background()); err != nil {
		s.log.Error("retention sweep failed", err)
	}
}
