package notify

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/mohammadpnp/site-import/internal/domain/project"
	"github.com/mohammadpnp/site-import/internal/infrastructure/db/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const notificationTypeImport = "import"

type completionPayload struct {
	ImportID     string           `json:"importId"`
	Filename     string           `json:"filename"`
	Status       domain.JobStatus `json:"status"`
	TotalRows    int              `json:"totalRows"`
	SuccessCount int              `json:"successCount"`
	ErrorCount   int              `json:"errorCount"`
}

// NotificationRepository stores import completions as in-app notifications
// for the submitter.
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) NotifyImportCompleted(ctx context.Context, completion domain.ImportCompletion) error {
	payload, err := json.Marshal(completionPayload{
		ImportID:     completion.JobID,
		Filename:     completion.Filename,
		Status:       completion.Status,
		TotalRows:    completion.TotalRows,
		SuccessCount: completion.SuccessCount,
		ErrorCount:   completion.ErrorCount,
	})
	if err != nil {
		return fmt.Errorf("encode notification payload: %w", err)
	}

	importID := completion.JobID
	row := models.Notification{
		Recipient:       completion.SubmittedBy,
		Type:            notificationTypeImport,
		Title:           completionTitle(completion.Status),
		Message:         CompletionMessage(completion),
		RelatedImportID: &importID,
		Payload:         datatypes.JSON(payload),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func completionTitle(status domain.JobStatus) string {
	switch status {
	case domain.JobStatusCompleted:
		return "Import completed"
	case domain.JobStatusPartial:
		return "Import completed with errors"
	default:
		return "Import failed"
	}
}

func CompletionMessage(c domain.ImportCompletion) string {
	return fmt.Sprintf("%s: %d of %d rows imported, %d failed.", c.Filename, c.SuccessCount, c.TotalRows, c.ErrorCount)
}
