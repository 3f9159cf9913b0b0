package models

import (
	"time"

	"gorm.io/datatypes"
)

type Notification struct {
	ID              int64          `gorm:"primaryKey"`
	Recipient       *string        `gorm:"type:text;index"`
	Type            string         `gorm:"type:text;not null"`
	Title           string         `gorm:"type:text;not null"`
	Message         string         `gorm:"type:text;not null"`
	RelatedImportID *string        `gorm:"type:uuid"`
	Payload         datatypes.JSON `gorm:"type:jsonb"`
	IsRead          bool           `gorm:"not null;default:false"`
	CreatedAt       time.Time
}

func (Notification) TableName() string {
	return "notifications"
}
