// Package entity holds the value object embedded by every ledger record.
package entity

import (
	"time"

	"posledger/internal/core/id"
)

// Base contains the identity, timestamps and optimistic-lock version
// shared by all persisted records. It is embedded, never extended.
type Base struct {
	ID        id.ID     `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	// Version is incremented on every update and checked on write.
	Version int `db:"version" json:"version"`
}

// NewBase creates a Base with a fresh id at version 1.
func NewBase(now time.Time) Base {
	return Base{
		ID:        id.New(),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// Touch bumps the version and update time.
func (b *Base) Touch(now time.Time) {
	b.Version++
	b.UpdatedAt = now
}
