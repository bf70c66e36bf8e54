package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Platform string

const (
	PlatformSupabase Platform = "supabase"
)

// SupportedPlatforms lists the platforms the monitor polls. Discovery and
// monitoring both dispatch through the platform registry, so adding a
// platform means adding it here plus one Fetcher implementation.
func SupportedPlatforms() []Platform {
	return []Platform{PlatformSupabase}
}

// ConnectionConfig is the decrypted configuration of a connection. Fields
// are platform-specific; consumers go through the accessors instead of
// indexing the map directly.
type ConnectionConfig map[string]any

func (c ConnectionConfig) String(key string) (string, bool) {
	v, ok := c[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Connection links one user to one external platform account. The config
// column only ever holds sealed material: {"encrypted": "<envelope>"} in
// the current format, or a bare envelope string in records that predate
// the wrapper.
type Connection struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	UserID    string         `gorm:"size:36;not null;index" json:"userId"`
	Platform  Platform       `gorm:"not null" json:"platform"`
	Label     string         `gorm:"not null" json:"label"`
	Config    datatypes.JSON `gorm:"not null" json:"-"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`

	Jobs []Job `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (c *Connection) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
