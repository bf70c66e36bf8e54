package daemon

import (
	"context"
	"sync"
	"time"

	"cronwatch/internal/logger"
	"cronwatch/internal/monitor"

	"go.uber.org/zap"
)

// Scheduler drives the two periodic background tasks: the monitor tick on
// a short interval and the retention sweep once a day at a fixed hour.
// The two run on independent goroutines so a slow tick can never push the
// sweep off its slot.
type Scheduler struct {
	monitor  *monitor.Monitor
	sweeper  *monitor.Sweeper
	interval time.Duration
	// sweepHour is the local hour (0-23) of the daily sweep.
	sweepHour         int
	disableMonitoring bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(m *monitor.Monitor, s *monitor.Sweeper, interval time.Duration, sweepHour int, disableMonitoring bool) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if sweepHour < 0 || sweepHour > 23 {
		sweepHour = 2
	}
	return &Scheduler{
		monitor:           m,
		sweeper:           s,
		interval:          interval,
		sweepHour:         sweepHour,
		disableMonitoring: disableMonitoring,
	}
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if s.disableMonitoring {
		logger.Log.Info("monitoring is disabled, running in discovery-only mode")
	} else {
		s.wg.Add(1)
		go s.monitorLoop(ctx)
		logger.Log.Info("monitor scheduled",
			zap.Duration("interval", s.interval))
	}

	s.wg.Add(1)
	go s.sweepLoop(ctx)
	logger.Log.Info("retention sweep scheduled",
		zap.Int("hour", s.sweepHour))
}

// Stop cancels both loops and waits for in-flight work to settle. All
// writes are idempotent, so abandoning a tick mid-flight is safe.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) monitorLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.monitor.Tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		timer := time.NewTimer(time.Until(nextSweep(time.Now(), s.sweepHour)))
		select {
		case <-timer.C:
			s.sweeper.Sweep()
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func nextSweep(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
