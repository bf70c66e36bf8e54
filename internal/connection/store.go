package connection

import (
	"encoding/json"
	"fmt"
	"time"

	"cronwatch/internal/logger"
	"cronwatch/internal/model"
	"cronwatch/internal/repository"
	"cronwatch/internal/vault"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Record is a connection as returned to callers: identity plus the
// decrypted configuration. Ciphertext never leaves the store.
type Record struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	Platform  model.Platform         `json:"platform"`
	Label     string                 `json:"label"`
	Config    model.ConnectionConfig `json:"config"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// Store owns connection records and all sealing/unsealing of their
// configuration.
type Store struct {
	repo      *repository.ConnectionRepository
	masterKey string
}

func NewStore(repo *repository.ConnectionRepository, masterKey string) *Store {
	return &Store{repo: repo, masterKey: masterKey}
}

func (s *Store) Create(userID string, platform model.Platform, label string, config model.ConnectionConfig) (Record, error) {
	sealed, err := s.sealConfig(config)
	if err != nil {
		return Record{}, err
	}

	conn := model.Connection{
		UserID:   userID,
		Platform: platform,
		Label:    label,
		Config:   sealed,
	}
	if err := s.repo.Create(&conn); err != nil {
		return Record{}, err
	}

	return record(conn, config), nil
}

// Get decrypts a single connection. Decryption failure surfaces directly
// here, unlike bulk listing.
func (s *Store) Get(id, userID string) (Record, error) {
	conn, err := s.repo.GetForUser(id, userID)
	if err != nil {
		return Record{}, err
	}

	config, err := s.openConfig(conn.Config)
	if err != nil {
		return Record{}, err
	}
	return record(conn, config), nil
}

// List decrypts every connection of a user. One undecryptable record
// degrades to an empty config instead of failing the whole listing.
func (s *Store) List(userID string) ([]Record, error) {
	conns, err := s.repo.ListForUser(userID)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(conns))
	for _, conn := range conns {
		config, err := s.openConfig(conn.Config)
		if err != nil {
			logger.Log.Warn("failed to decrypt connection config",
				zap.String("connection", conn.ID),
				zap.Error(err))
			config = model.ConnectionConfig{}
		}
		records = append(records, record(conn, config))
	}
	return records, nil
}

type Updates struct {
	Label  *string
	Config *model.ConnectionConfig
}

// Update replaces the label and/or the whole config blob.
func (s *Store) Update(id, userID string, updates Updates) (Record, error) {
	if updates.Label != nil {
		if err := s.repo.UpdateLabel(id, userID, *updates.Label); err != nil {
			return Record{}, err
		}
	}

	if updates.Config != nil {
		sealed, err := s.sealConfig(*updates.Config)
		if err != nil {
			return Record{}, err
		}
		if err := s.repo.UpdateConfig(id, userID, sealed); err != nil {
			return Record{}, err
		}
	}

	return s.Get(id, userID)
}

func (s *Store) Delete(id, userID string) (bool, error) {
	return s.repo.Delete(id, userID)
}

// GetDecryptedConfig skips the ownership check; only trusted internal
// components (monitor, discovery) call it.
func (s *Store) GetDecryptedConfig(id string) (model.ConnectionConfig, error) {
	conn, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	return s.openConfig(conn.Config)
}

// ListMonitored returns every connection of a platform together with its
// decrypted config. Undecryptable connections are skipped with a warning
// so one corrupted record cannot halt monitoring.
func (s *Store) ListMonitored(platform model.Platform) ([]Record, error) {
	conns, err := s.repo.ListByPlatform(platform)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(conns))
	for _, conn := range conns {
		config, err := s.openConfig(conn.Config)
		if err != nil {
			logger.Log.Warn("skipping connection with undecryptable config",
				zap.String("connection", conn.ID),
				zap.Error(err))
			continue
		}
		records = append(records, record(conn, config))
	}
	return records, nil
}

func (s *Store) sealConfig(config model.ConnectionConfig) (datatypes.JSON, error) {
	plain, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	envelope, err := vault.Seal(string(plain), s.masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to seal config: %w", err)
	}

	wrapped, err := json.Marshal(map[string]string{"encrypted": envelope})
	if err != nil {
		return nil, err
	}
	return wrapped, nil
}

func (s *Store) openConfig(stored datatypes.JSON) (model.ConnectionConfig, error) {
	envelope, err := unwrapEnvelope(stored)
	if err != nil {
		return nil, err
	}

	plain, err := vault.Open(envelope, s.masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}

	var config model.ConnectionConfig
	if err := json.Unmarshal([]byte(plain), &config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return config, nil
}

// unwrapEnvelope accepts both storage shapes: the current
// {"encrypted": "<envelope>"} wrapper and the legacy bare envelope string.
func unwrapEnvelope(stored datatypes.JSON) (string, error) {
	var wrapped struct {
		Encrypted string `json:"encrypted"`
	}
	if err := json.Unmarshal(stored, &wrapped); err == nil && wrapped.Encrypted != "" {
		return wrapped.Encrypted, nil
	}

	var bare string
	if err := json.Unmarshal(stored, &bare); err == nil && bare != "" {
		return bare, nil
	}

	return "", fmt.Errorf("unrecognized config storage format")
}

func record(conn model.Connection, config model.ConnectionConfig) Record {
	return Record{
		ID:        conn.ID,
		UserID:    conn.UserID,
		Platform:  conn.Platform,
		Label:     conn.Label,
		Config:    config,
		CreatedAt: conn.CreatedAt,
		UpdatedAt: conn.UpdatedAt,
	}
}
