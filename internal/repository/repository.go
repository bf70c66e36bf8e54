package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a record does not exist or is not owned by
// the requesting user. Callers see absence, not a driver error.
var ErrNotFound = errors.New("record not found")

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
