package models

import (
	"time"

	"gorm.io/gorm"
)

// Record is the base shape every stored entity embeds. The backing store
// assigns the identifier and timestamps at write time; callers never set
// them. DeletedAt gives soft deletion with the non-deleted filter applied
// on every normal query. Version backs the optimistic concurrency check
// used by updates.
type Record struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Version   uint           `json:"-"`
}

func (r Record) PrimaryID() uint     { return r.ID }
func (r Record) RecordVersion() uint { return r.Version }

// Ptr is a convenience for building records and patches with optional
// fields.
func Ptr[T any](v T) *T { return &v }
