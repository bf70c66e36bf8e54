package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Job is a scheduled task discovered from a connection, keyed by the
// platform-native identifier. (ConnectionID, OriginID) is the
// reconciliation key; those fields never change after creation.
type Job struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	ConnectionID string         `gorm:"size:36;not null;uniqueIndex:idx_jobs_conn_origin" json:"connectionId"`
	OriginID     string         `gorm:"not null;uniqueIndex:idx_jobs_conn_origin" json:"originId"`
	Name         string         `gorm:"not null" json:"name"`
	Cron         string         `json:"cron"`
	Platform     Platform       `gorm:"not null" json:"platform"`
	Project      string         `json:"project"`
	Metadata     datatypes.JSON `gorm:"default:'{}'" json:"metadata"`
	LastSeenAt   time.Time      `gorm:"not null;index" json:"lastSeenAt"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`

	Runs   []JobRun `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Alerts []Alert  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (j *Job) BeforeCreate(*gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

// Metadata is the schema-less per-platform payload attached to jobs and
// alerts. Known fields are read through the typed accessors.
type Metadata map[string]any

func DecodeMetadata(raw datatypes.JSON) Metadata {
	if len(raw) == 0 {
		return Metadata{}
	}
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return Metadata{}
	}
	return m
}

func (m Metadata) String(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int reads a numeric field. JSON numbers decode as float64, so both
// representations are accepted.
func (m Metadata) Int(key string) (int64, bool) {
	switch v := m[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}
