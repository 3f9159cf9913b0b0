package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/mohammadpnp/site-import/internal/domain/project"
	"github.com/mohammadpnp/site-import/internal/infrastructure/db/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const claimReturning = `
RETURNING id, original_filename, stored_filename, status, total_rows, success_count, error_count,
  inserted_count, updated_count, skipped_count, errors, unresolved_conflicts, options,
  submitted_by, heartbeat_at, started_at, completed_at, created_at, updated_at`

type ImportJobRepository struct {
	db *gorm.DB
}

func NewImportJobRepository(db *gorm.DB) *ImportJobRepository {
	return &ImportJobRepository{db: db}
}

func (r *ImportJobRepository) Create(ctx context.Context, job domain.ImportJob) (string, error) {
	row := models.ImportJob{
		OriginalFilename:    job.OriginalFilename,
		StoredFilename:      job.StoredFilename,
		Status:              string(domain.JobStatusPending),
		TotalRows:           job.TotalRows,
		Errors:              toJSON(emptyIfNil(job.Errors)),
		UnresolvedConflicts: toJSON(emptyIfNil(job.UnresolvedConflicts)),
		Options:             toJSON(job.Options),
		SubmittedBy:         job.SubmittedBy,
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("create import job: %w", err)
	}

	return row.ID, nil
}

func (r *ImportJobRepository) Get(ctx context.Context, jobID string) (*domain.ImportJob, error) {
	var row models.ImportJob
	err := r.db.WithContext(ctx).First(&row, "id = ?", jobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("get import job: %w", err)
	}
	return toDomainJob(row)
}

func (r *ImportJobRepository) List(ctx context.Context, limit, offset int) ([]domain.ImportJob, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.ImportJob{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count import jobs: %w", err)
	}

	var rows []models.ImportJob
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list import jobs: %w", err)
	}

	jobs := make([]domain.ImportJob, 0, len(rows))
	for _, row := range rows {
		job, err := toDomainJob(row)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, total, nil
}

func (r *ImportJobRepository) Delete(ctx context.Context, jobID string) error {
	result := r.db.WithContext(ctx).Delete(&models.ImportJob{}, "id = ?", jobID)
	if result.Error != nil {
		return fmt.Errorf("delete import job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// Claim moves one Pending job to Processing. The conditional update makes a
// second claim of the same job fail with ErrJobNotPending.
func (r *ImportJobRepository) Claim(ctx context.Context, jobID string) (*domain.ImportJob, error) {
	var row models.ImportJob
	err := r.db.WithContext(ctx).Raw(`
UPDATE import_jobs
SET status = ?, started_at = COALESCE(started_at, NOW()), heartbeat_at = NOW(), updated_at = NOW()
WHERE id = ? AND status = ?`+claimReturning,
		string(domain.JobStatusProcessing), jobID, string(domain.JobStatusPending),
	).Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("claim import job: %w", err)
	}

	if row.ID == "" {
		if _, err := r.Get(ctx, jobID); err != nil {
			return nil, err
		}
		return nil, domain.ErrJobNotPending
	}
	return toDomainJob(row)
}

// ClaimNext claims the oldest Pending job, skipping rows locked by other
// workers. It returns nil when the queue is empty.
func (r *ImportJobRepository) ClaimNext(ctx context.Context) (*domain.ImportJob, error) {
	var row models.ImportJob
	err := r.db.WithContext(ctx).Raw(`
UPDATE import_jobs
SET status = ?, started_at = COALESCE(started_at, NOW()), heartbeat_at = NOW(), updated_at = NOW()
WHERE id = (
  SELECT id FROM import_jobs
  WHERE status = ?
  ORDER BY created_at
  LIMIT 1
  FOR UPDATE SKIP LOCKED
)`+claimReturning,
		string(domain.JobStatusProcessing), string(domain.JobStatusPending),
	).Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("claim next import job: %w", err)
	}
	if row.ID == "" {
		return nil, nil
	}
	return toDomainJob(row)
}

func (r *ImportJobRepository) Heartbeat(ctx context.Context, jobID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.ImportJob{}).
		Where("id = ? AND status = ?", jobID, string(domain.JobStatusProcessing)).
		Updates(map[string]any{"heartbeat_at": time.Now().UTC()})
	if result.Error != nil {
		return fmt.Errorf("heartbeat import job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: job %s is not processing", domain.ErrInvalidTransition, jobID)
	}
	return nil
}

// SaveProgress persists counts and row errors of a running job and renews its
// heartbeat.
func (r *ImportJobRepository) SaveProgress(ctx context.Context, job domain.ImportJob) error {
	values := progressValues(job)
	values["heartbeat_at"] = time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&models.ImportJob{}).
		Where("id = ? AND status = ?", job.ID, string(domain.JobStatusProcessing)).
		Updates(values)
	if result.Error != nil {
		return fmt.Errorf("save import progress: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: job %s is not processing", domain.ErrInvalidTransition, job.ID)
	}
	return nil
}

// Finish stores the terminal state. Only a Processing job can finish, so a
// job already failed by the stale-job reaper is never overwritten.
func (r *ImportJobRepository) Finish(ctx context.Context, job domain.ImportJob) error {
	if !job.IsTerminal() {
		return fmt.Errorf("%w: job %s is %s", domain.ErrInvalidTransition, job.ID, job.Status)
	}

	values := progressValues(job)
	values["status"] = string(job.Status)
	values["completed_at"] = job.CompletedAt

	result := r.db.WithContext(ctx).
		Model(&models.ImportJob{}).
		Where("id = ? AND status = ?", job.ID, string(domain.JobStatusProcessing)).
		Updates(values)
	if result.Error != nil {
		return fmt.Errorf("finish import job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: job %s is not processing", domain.ErrJobTerminal, job.ID)
	}
	return nil
}

// FailStale fails Processing jobs whose heartbeat is older than staleBefore and
// returns them in their Failed state.
func (r *ImportJobRepository) FailStale(ctx context.Context, staleBefore time.Time, reason string) ([]domain.ImportJob, error) {
	failure := toJSON([]domain.RowError{{RowNumber: 0, Messages: []string{reason}}})

	var rows []models.ImportJob
	err := r.db.WithContext(ctx).Raw(`
UPDATE import_jobs
SET status = ?, errors = ?, completed_at = NOW(), updated_at = NOW()
WHERE status = ? AND (heartbeat_at IS NULL OR heartbeat_at < ?)`+claimReturning,
		string(domain.JobStatusFailed), failure, string(domain.JobStatusProcessing), staleBefore,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fail stale import jobs: %w", err)
	}

	jobs := make([]domain.ImportJob, 0, len(rows))
	for _, row := range rows {
		job, err := toDomainJob(row)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

func progressValues(job domain.ImportJob) map[string]any {
	return map[string]any{
		"total_rows":           job.TotalRows,
		"success_count":        job.SuccessCount,
		"error_count":          job.ErrorCount,
		"inserted_count":       job.InsertedCount,
		"updated_count":        job.UpdatedCount,
		"skipped_count":        job.SkippedCount,
		"errors":               toJSON(emptyIfNil(job.Errors)),
		"unresolved_conflicts": toJSON(emptyIfNil(job.UnresolvedConflicts)),
	}
}

func toDomainJob(row models.ImportJob) (*domain.ImportJob, error) {
	job := &domain.ImportJob{
		ID:               row.ID,
		OriginalFilename: row.OriginalFilename,
		StoredFilename:   row.StoredFilename,
		TotalRows:        row.TotalRows,
		SuccessCount:     row.SuccessCount,
		ErrorCount:       row.ErrorCount,
		InsertedCount:    row.InsertedCount,
		UpdatedCount:     row.UpdatedCount,
		SkippedCount:     row.SkippedCount,
		Status:           domain.JobStatus(row.Status),
		SubmittedBy:      row.SubmittedBy,
		CreatedAt:        row.CreatedAt,
		StartedAt:        row.StartedAt,
		CompletedAt:      row.CompletedAt,
		HeartbeatAt:      row.HeartbeatAt,
	}

	if err := fromJSON(row.Errors, &job.Errors); err != nil {
		return nil, fmt.Errorf("decode import job errors: %w", err)
	}
	if err := fromJSON(row.UnresolvedConflicts, &job.UnresolvedConflicts); err != nil {
		return nil, fmt.Errorf("decode import job conflicts: %w", err)
	}
	if err := fromJSON(row.Options, &job.Options); err != nil {
		return nil, fmt.Errorf("decode import job options: %w", err)
	}
	return job, nil
}

func toJSON(v any) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(raw)
}

func fromJSON(raw datatypes.JSON, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
