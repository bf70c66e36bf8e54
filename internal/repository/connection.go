package repository

import (
	"cronwatch/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ConnectionRepository struct {
	db *gorm.DB
}

func NewConnectionRepository(db *gorm.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

func (r *ConnectionRepository) Create(conn *model.Connection) error {
	return r.db.Create(conn).Error
}

// GetByID does not check ownership; it exists for trusted internal
// callers (monitor, discovery). User-facing reads go through GetForUser.
func (r *ConnectionRepository) GetByID(id string) (model.Connection, error) {
	var conn model.Connection
	err := r.db.First(&conn, "id = ?", id).Error
	return conn, translate(err)
}

// GetForUser filters by owner inside the query predicate so a mismatched
// user and a missing record are indistinguishable.
func (r *ConnectionRepository) GetForUser(id, userID string) (model.Connection, error) {
	var conn model.Connection
	err := r.db.First(&conn, "id = ? AND user_id = ?", id, userID).Error
	return conn, translate(err)
}

func (r *ConnectionRepository) ListForUser(userID string) ([]model.Connection, error) {
	var conns []model.Connection
	err := r.db.
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&conns).Error
	return conns, err
}

func (r *ConnectionRepository) ListByPlatform(platform model.Platform) ([]model.Connection, error) {
	var conns []model.Connection
	err := r.db.Where("platform = ?", platform).Find(&conns).Error
	return conns, err
}

func (r *ConnectionRepository) UpdateLabel(id, userID, label string) error {
	res := r.db.Model(&model.Connection{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("label", label)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ConnectionRepository) UpdateConfig(id, userID string, config datatypes.JSON) error {
	res := r.db.Model(&model.Connection{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("config", config)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete reports whether a row was removed. Owned jobs, runs and alerts
// go with it through the cascade constraints.
func (r *ConnectionRepository) Delete(id, userID string) (bool, error) {
	res := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Connection{})
	return res.RowsAffected > 0, res.Error
}
