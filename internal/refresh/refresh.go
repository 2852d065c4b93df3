// Package refresh re-runs the screen's startup flow on a cron schedule.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-screen/internal/observability"
)

// Mounter is implemented by screen.Screen.
type Mounter interface {
	Mount(ctx context.Context)
}

// Refresher runs Mount on a schedule. A run that is still in progress when the next one
// fires causes the new one to be skipped.
type Refresher struct {
	mounter  Mounter
	logger   *zap.Logger
	clock    clockwork.Clock
	timeout  time.Duration
	schedule string

	cron    *cron.Cron
	running atomic.Bool

	mu      sync.Mutex
	lastRun time.Time
}

// New parses schedule (standard five-field cron, or descriptors such as "@every 15m").
// Each run is bounded by timeout when it is positive.
func New(m Mounter, schedule string, timeout time.Duration, logger *zap.Logger, clock clockwork.Clock) (*Refresher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	r := &Refresher{
		mounter:  m,
		logger:   logger,
		clock:    clock,
		timeout:  timeout,
		schedule: schedule,
	}
	r.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{logger.Sugar()})))
	if _, err := r.cron.AddFunc(schedule, func() { r.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start begins running on the schedule in the background.
func (r *Refresher) Start() {
	r.cron.Start()
	r.logger.Info("screen refresh started", zap.String("schedule", r.schedule), zap.Time("next_run", r.Next()))
}

// Stop halts the schedule and waits for a run in progress, or until ctx is done.
func (r *Refresher) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		r.logger.Info("screen refresh stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce runs Mount unless a run is already in progress. It reports whether it ran.
func (r *Refresher) RunOnce(ctx context.Context) bool {
	if !r.running.CompareAndSwap(false, true) {
		observability.RefreshRunsTotal.WithLabelValues("skipped").Inc()
		r.logger.Debug("screen refresh skipped, previous run still in progress")
		return false
	}
	defer r.running.Store(false)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := r.clock.Now()
	r.mu.Lock()
	r.lastRun = start
	r.mu.Unlock()

	r.mounter.Mount(ctx)

	observability.RefreshRunsTotal.WithLabelValues("completed").Inc()
	r.logger.Info("screen refresh completed", zap.Duration("duration", r.clock.Since(start)))
	return true
}

// LastRun returns the start time of the most recent run, or zero.
func (r *Refresher) LastRun() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun
}

// Next returns the next scheduled run, or zero when not started.
func (r *Refresher) Next() time.Time {
	entries := r.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
