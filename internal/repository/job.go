package repository

import (
	"time"

	"cronwatch/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *model.Job) error {
	return r.db.Create(job).Error
}

func (r *JobRepository) GetByOrigin(connectionID, originID string) (model.Job, error) {
	var job model.Job
	err := r.db.First(&job, "connection_id = ? AND origin_id = ?", connectionID, originID).Error
	return job, translate(err)
}

// UpdateDiscovered overwrites the mutable fields of a job that was seen
// again during discovery. Identity fields are never touched.
func (r *JobRepository) UpdateDiscovered(id, name, cron string, metadata datatypes.JSON) error {
	return r.db.Model(&model.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"name":         name,
			"cron":         cron,
			"metadata":     metadata,
			"last_seen_at": time.Now(),
		}).Error
}

func (r *JobRepository) ListByConnection(connectionID string) ([]model.Job, error) {
	var jobs []model.Job
	err := r.db.Where("connection_id = ?", connectionID).Find(&jobs).Error
	return jobs, err
}

func (r *JobRepository) ListForUser(userID string, platform model.Platform, limit, offset int) ([]model.Job, error) {
	q := r.db.
		Joins("JOIN connections ON connections.id = jobs.connection_id").
		Where("connections.user_id = ?", userID)

	if platform != "" {
		q = q.Where("jobs.platform = ?", platform)
	}

	var jobs []model.Job
	err := q.
		Order("jobs.last_seen_at desc").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error
	return jobs, err
}

func (r *JobRepository) GetForUser(id, userID string) (model.Job, error) {
	var job model.Job
	err := r.db.
		Joins("JOIN connections ON connections.id = jobs.connection_id").
		Where("jobs.id = ? AND connections.user_id = ?", id, userID).
		First(&job).Error
	return job, translate(err)
}

// TouchStale refreshes last_seen_at for jobs unseen since the cutoff.
func (r *JobRepository) TouchStale(cutoff time.Time) (int64, error) {
	res := r.db.Model(&model.Job{}).
		Where("last_seen_at < ?", cutoff).
		Update("last_seen_at", time.Now())
	return res.RowsAffected, res.Error
}

func (r *JobRepository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&model.Job{}).Count(&n).Error
	return n, err
}
