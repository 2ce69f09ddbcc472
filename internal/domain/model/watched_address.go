package model

import (
	"time"

	"github.com/google/uuid"
)

type WatchedAddress struct {
	ID        uuid.UUID     `db:"id"`
	Address   string        `db:"address"`
	Label     *string       `db:"label"`
	IsActive  bool          `db:"is_active"`
	Source    AddressSource `db:"source"`
	CreatedAt time.Time     `db:"created_at"`
	UpdatedAt time.Time     `db:"updated_at"`
}
