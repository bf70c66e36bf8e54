package repository

import (
	"time"

	"cronwatch/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Insert persists an observed run. Re-observing the same (job, start time)
// is a no-op, which makes monitor ticks safe to repeat or abandon.
func (r *RunRepository) Insert(run *model.JobRun) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(run).Error
}

func (r *RunRepository) ListByJob(jobID string, limit, offset int) ([]model.JobRun, error) {
	var runs []model.JobRun
	err := r.db.
		Where("job_id = ?", jobID).
		Order("started_at desc").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error
	return runs, err
}

type RunStats struct {
	TotalRuns      int64      `json:"totalRuns"`
	SucceededRuns  int64      `json:"succeededRuns"`
	FailedRuns     int64      `json:"failedRuns"`
	RunningRuns    int64      `json:"runningRuns"`
	LastRun        *time.Time `json:"lastRun,omitempty"`
	AvgDurationSec *float64   `json:"avgDurationSec,omitempty"`
}

func (r *RunRepository) Stats(jobID string) (RunStats, error) {
	var stats RunStats

	type row struct {
		Total     int64
		Succeeded int64
		Failed    int64
		Running   int64
	}
	var counts row
	err := r.db.Model(&model.JobRun{}).
		Select(
			"COUNT(*) as total, "+
				"COUNT(CASE WHEN status = ? THEN 1 END) as succeeded, "+
				"COUNT(CASE WHEN status = ? THEN 1 END) as failed, "+
				"COUNT(CASE WHEN status = ? THEN 1 END) as running",
			model.RunStatusSucceeded, model.RunStatusFailed, model.RunStatusRunning).
		Where("job_id = ?", jobID).
		Scan(&counts).Error
	if err != nil {
		return stats, err
	}

	stats.TotalRuns = counts.Total
	stats.SucceededRuns = counts.Succeeded
	stats.FailedRuns = counts.Failed
	stats.RunningRuns = counts.Running

	if counts.Total > 0 {
		var last model.JobRun
		if err := r.db.
			Where("job_id = ?", jobID).
			Order("started_at desc").
			First(&last).Error; err == nil {
			stats.LastRun = &last.StartedAt
		}

		var avg *float64
		err = r.db.Model(&model.JobRun{}).
			Select("AVG((julianday(ended_at) - julianday(started_at)) * 86400.0)").
			Where("job_id = ? AND ended_at IS NOT NULL", jobID).
			Scan(&avg).Error
		if err != nil {
			return stats, err
		}
		stats.AvgDurationSec = avg
	}

	return stats, nil
}

func (r *RunRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res := r.db.Where("started_at < ?", cutoff).Delete(&model.JobRun{})
	return res.RowsAffected, res.Error
}

func (r *RunRepository) CountByJob(jobID string) (int64, error) {
	var n int64
	err := r.db.Model(&model.JobRun{}).Where("job_id = ?", jobID).Count(&n).Error
	return n, err
}
