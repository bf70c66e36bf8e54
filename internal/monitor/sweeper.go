package monitor

import (
	"time"

	"cronwatch/internal/logger"
	"cronwatch/internal/repository"

	"go.uber.org/zap"
)

// Retention horizons are fixed, not configurable.
const (
	runRetention   = 30 * 24 * time.Hour
	alertRetention = 90 * 24 * time.Hour
	staleAfter     = 7 * 24 * time.Hour
)

type SweepResult struct {
	RunsDeleted      int64 `json:"runsDeleted"`
	AlertsDeleted    int64 `json:"alertsDeleted"`
	StaleJobsTouched int64 `json:"staleJobsTouched"`
}

// Sweeper enforces data retention independently of the monitor schedule.
type Sweeper struct {
	jobs   *repository.JobRepository
	runs   *repository.RunRepository
	alerts *repository.AlertRepository
}

func NewSweeper(jobs *repository.JobRepository, runs *repository.RunRepository, alerts *repository.AlertRepository) *Sweeper {
	return &Sweeper{jobs: jobs, runs: runs, alerts: alerts}
}

// Sweep deletes runs past 30 days, alerts past 90 days, and bumps the
// last-seen timestamp of jobs unseen for 7+ days. Each step is isolated:
// one failing deletion never blocks the others.
func (s *Sweeper) Sweep() SweepResult {
	var result SweepResult
	now := time.Now()

	runsDeleted, err := s.runs.DeleteOlderThan(now.Add(-runRetention))
	if err != nil {
		logger.Log.Error("failed to delete old job runs", zap.Error(err))
	}
	result.RunsDeleted = runsDeleted

	alertsDeleted, err := s.alerts.DeleteOlderThan(now.Add(-alertRetention))
	if err != nil {
		logger.Log.Error("failed to delete old alerts", zap.Error(err))
	}
	result.AlertsDeleted = alertsDeleted

	// Resets staleness rather than flagging it. Kept as the original
	// system behaves; see DESIGN.md before changing.
	touched, err := s.jobs.TouchStale(now.Add(-staleAfter))
	if err != nil {
		logger.Log.Error("failed to touch stale jobs", zap.Error(err))
	}
	result.StaleJobsTouched = touched

	logger.Log.Info("retention sweep finished",
		zap.Int64("runs_deleted", result.RunsDeleted),
		zap.Int64("alerts_deleted", result.AlertsDeleted),
		zap.Int64("stale_jobs_touched", result.StaleJobsTouched))

	return result
}
