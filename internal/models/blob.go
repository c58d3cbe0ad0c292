package models

import "time"

// Blob is a stored snapshot row in the database.
type Blob struct {
	Key       string `gorm:"primaryKey"`
	Data      []byte `gorm:"not null"`
	Size      int
	CreatedAt time.Time
	UpdatedAt time.Time
}
