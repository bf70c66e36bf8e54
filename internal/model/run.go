package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusRunning   RunStatus = "running"
)

// JobRun is one observed execution of a Job. (JobID, StartedAt) is unique
// so that re-observing the same run across monitor ticks is a no-op.
type JobRun struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	JobID     string     `gorm:"size:36;not null;uniqueIndex:idx_runs_job_started" json:"jobId"`
	Status    RunStatus  `gorm:"not null" json:"status"`
	StartedAt time.Time  `gorm:"not null;uniqueIndex:idx_runs_job_started;index" json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Message   string     `json:"message,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (r *JobRun) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
