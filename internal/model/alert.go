package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AlertType string

const (
	AlertTypeFailure AlertType = "failure"
)

// Alert records one failure incident for a Job. Resolution state lives
// inside Details ("resolved", "resolvedAt") rather than in a column.
type Alert struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	JobID     string         `gorm:"size:36;not null;index" json:"jobId"`
	Type      AlertType      `gorm:"not null;index" json:"type"`
	Details   datatypes.JSON `gorm:"default:'{}'" json:"details"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (a *Alert) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
