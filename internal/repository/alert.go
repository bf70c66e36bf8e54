package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"cronwatch/internal/model"

	"gorm.io/gorm"
)

type AlertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) Create(alert *model.Alert) error {
	return r.db.Create(alert).Error
}

// HasRecent reports whether an alert of the given type was created for the
// job inside the dedup window.
func (r *AlertRepository) HasRecent(jobID string, alertType model.AlertType, window time.Duration) (bool, error) {
	var n int64
	err := r.db.Model(&model.Alert{}).
		Where("job_id = ? AND type = ? AND created_at > ?", jobID, alertType, time.Now().Add(-window)).
		Count(&n).Error
	return n > 0, err
}

func (r *AlertRepository) ListForUser(userID string, alertType model.AlertType, limit, offset int) ([]model.Alert, error) {
	q := r.db.
		Joins("JOIN jobs ON jobs.id = alerts.job_id").
		Joins("JOIN connections ON connections.id = jobs.connection_id").
		Where("connections.user_id = ?", userID)

	if alertType != "" {
		q = q.Where("alerts.type = ?", alertType)
	}

	var alerts []model.Alert
	err := q.
		Order("alerts.created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&alerts).Error
	return alerts, err
}

func (r *AlertRepository) GetForUser(id, userID string) (model.Alert, error) {
	var alert model.Alert
	err := r.db.
		Joins("JOIN jobs ON jobs.id = alerts.job_id").
		Joins("JOIN connections ON connections.id = jobs.connection_id").
		Where("alerts.id = ? AND connections.user_id = ?", id, userID).
		First(&alert).Error
	return alert, translate(err)
}

// Resolve merges resolution fields into the alert details. The read and
// write are not transactional; resolving the same alert twice converges
// on the same state.
func (r *AlertRepository) Resolve(id, userID string) (model.Alert, error) {
	alert, err := r.GetForUser(id, userID)
	if err != nil {
		return model.Alert{}, err
	}

	details := model.DecodeMetadata(alert.Details)
	details["resolved"] = true
	details["resolvedAt"] = time.Now().UTC().Format(time.RFC3339)

	raw, err := json.Marshal(details)
	if err != nil {
		return model.Alert{}, fmt.Errorf("failed to encode details: %w", err)
	}

	if err := r.db.Model(&model.Alert{}).
		Where("id = ?", id).
		Update("details", raw).Error; err != nil {
		return model.Alert{}, err
	}

	alert.Details = raw
	return alert, nil
}

type AlertStats struct {
	TotalAlerts    int64 `json:"totalAlerts"`
	FailureAlerts  int64 `json:"failureAlerts"`
	ResolvedAlerts int64 `json:"resolvedAlerts"`
	RecentAlerts   int64 `json:"recentAlerts"`
	WeeklyAlerts   int64 `json:"weeklyAlerts"`
}

func (r *AlertRepository) StatsForUser(userID string) (AlertStats, error) {
	var stats AlertStats
	now := time.Now()

	err := r.db.Model(&model.Alert{}).
		Select(
			"COUNT(*) as total_alerts, "+
				"COUNT(CASE WHEN alerts.type = ? THEN 1 END) as failure_alerts, "+
				"COUNT(CASE WHEN json_extract(alerts.details, '$.resolved') = true THEN 1 END) as resolved_alerts, "+
				"COUNT(CASE WHEN alerts.created_at > ? THEN 1 END) as recent_alerts, "+
				"COUNT(CASE WHEN alerts.created_at > ? THEN 1 END) as weekly_alerts",
			model.AlertTypeFailure, now.Add(-24*time.Hour), now.Add(-7*24*time.Hour)).
		Joins("JOIN jobs ON jobs.id = alerts.job_id").
		Joins("JOIN connections ON connections.id = jobs.connection_id").
		Where("connections.user_id = ?", userID).
		Scan(&stats).Error
	return stats, err
}

func (r *AlertRepository) CountByJob(jobID string) (int64, error) {
	var n int64
	err := r.db.Model(&model.Alert{}).Where("job_id = ?", jobID).Count(&n).Error
	return n, err
}

func (r *AlertRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res := r.db.Where("created_at < ?", cutoff).Delete(&model.Alert{})
	return res.RowsAffected, res.Error
}
