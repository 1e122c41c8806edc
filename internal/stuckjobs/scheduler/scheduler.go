// Package scheduler runs the stuck job sweep on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/amankumarsingh77/video-ingest/internal/stuckjobs"
	"github.com/amankumarsingh77/video-ingest/pkg/logger"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type Scheduler struct {
	mu sync.Mutex

	uc       stuckjobs.UseCase
	schedule cron.Schedule
	spec     string
	logger   logger.Logger

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler validates spec, a five field cron expression or a descriptor such as "@every 5m".
func NewScheduler(uc stuckjobs.UseCase, spec string, log logger.Logger) (*Scheduler, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	return &Scheduler{
		uc:       uc,
		schedule: schedule,
		spec:     spec,
		logger:   log,
	}, nil
}

// Start sweeps once right away, then on every tick. Overlapping ticks are skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return errors.New("scheduler already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	cronLog := &cronLogger{log: s.logger}
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	job := cron.FuncJob(func() { s.sweep(s.ctx) })
	s.cron.Schedule(s.schedule, job)
	s.cron.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweep(s.ctx)
	}()

	s.logger.Infof("Stuck job scheduler started with schedule %q", s.spec)
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.ctx, s.cancel, s.cron = nil, nil, nil
	s.mu.Unlock()

	s.logger.Info("Stuck job scheduler stopped")
}

func (s *Scheduler) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	res, err := s.uc.DetectAndFix(ctx)
	if err != nil {
		s.logger.Errorf("Scheduler.sweep - DetectAndFix error: %v", err)
		return
	}
	if n := len(res.FixedIDs); n > 0 {
		s.logger.Warnf("Stuck job sweep marked %d videos failed (queue: %d, processing: %d)",
			n, res.StuckInQueueCount, res.StuckInProcessingCount)
		return
	}
	s.logger.Debug("Stuck job sweep found nothing")
}

// cronLogger routes cron's own messages to the app logger.
type cronLogger struct {
	log logger.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugf("cron: %s %v", msg, keysAndValues)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorf("cron: %s: %v %v", msg, err, keysAndValues)
}
