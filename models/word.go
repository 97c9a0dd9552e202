package models

import (
	"time"

	"gorm.io/gorm"
)

// Word is one row of the optional database-backed word source.
type Word struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Text      string         `json:"text" gorm:"uniqueIndex;not null"`
	Category  string         `json:"category" gorm:"index;not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
