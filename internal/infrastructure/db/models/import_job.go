package models

import (
	"time"

	"gorm.io/datatypes"
)

type ImportJob struct {
	ID                  string         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	OriginalFilename    string         `gorm:"type:text;not null"`
	StoredFilename      string         `gorm:"type:text;not null"`
	Status              string         `gorm:"type:text;not null;index:idx_import_jobs_status_created,priority:1"`
	TotalRows           int            `gorm:"not null;default:0"`
	SuccessCount        int            `gorm:"not null;default:0"`
	ErrorCount          int            `gorm:"not null;default:0"`
	InsertedCount       int            `gorm:"not null;default:0"`
	UpdatedCount        int            `gorm:"not null;default:0"`
	SkippedCount        int            `gorm:"not null;default:0"`
	Errors              datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"`
	UnresolvedConflicts datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"`
	Options             datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"`
	SubmittedBy         *string        `gorm:"type:text"`
	HeartbeatAt         *time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
	CreatedAt           time.Time `gorm:"index:idx_import_jobs_status_created,priority:2"`
	UpdatedAt           time.Time
}

func (ImportJob) TableName() string {
	return "import_jobs"
}
