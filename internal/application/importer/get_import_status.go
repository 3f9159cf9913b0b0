package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	domain "github.com/mohammadpnp/site-import/internal/domain/project"
)

const maxStatusErrors = 100

type GetImportStatusInput struct {
	ID string
}

type ImportStatusOutput struct {
	ImportID            string               `json:"importId"`
	Filename            string               `json:"filename"`
	Status              domain.JobStatus     `json:"status"`
	Progress            int                  `json:"progress"`
	TotalRows           int                  `json:"totalRows"`
	ProcessedRows       int                  `json:"processedRows"`
	SuccessCount        int                  `json:"successCount"`
	ErrorCount          int                  `json:"errorCount"`
	Results             domain.ImportResults `json:"results"`
	Errors              []domain.RowError    `json:"errors"`
	UnresolvedConflicts []int                `json:"unresolvedConflicts"`
	SubmittedBy         *string              `json:"submittedBy,omitempty"`
	CreatedAt           time.Time            `json:"createdAt"`
	StartedAt           *time.Time           `json:"startedAt,omitempty"`
	CompletedAt         *time.Time           `json:"completedAt,omitempty"`
}

type GetImportStatus interface {
	Execute(ctx context.Context, in GetImportStatusInput) (ImportStatusOutput, error)
}

type importJobGetter interface {
	Get(ctx context.Context, jobID string) (*domain.ImportJob, error)
}

type getImportStatus struct {
	jobs importJobGetter
}

func NewGetImportStatus(jobs importJobGetter) GetImportStatus {
	return &getImportStatus{jobs: jobs}
}

func (uc *getImportStatus) Execute(ctx context.Context, in GetImportStatusInput) (ImportStatusOutput, error) {
	job, err := loadJob(ctx, uc.jobs, in.ID)
	if err != nil {
		return ImportStatusOutput{}, err
	}

	out := statusOutput(*job)
	if len(out.Errors) > maxStatusErrors {
		out.Errors = out.Errors[:maxStatusErrors]
	}
	return out, nil
}

func statusOutput(job domain.ImportJob) ImportStatusOutput {
	rowErrors := job.Errors
	if rowErrors == nil {
		rowErrors = []domain.RowError{}
	}
	unresolved := job.UnresolvedConflicts
	if unresolved == nil {
		unresolved = []int{}
	}
	return ImportStatusOutput{
		ImportID:            job.ID,
		Filename:            job.OriginalFilename,
		Status:              job.Status,
		Progress:            job.Percent(),
		TotalRows:           job.TotalRows,
		ProcessedRows:       job.Processed(),
		SuccessCount:        job.SuccessCount,
		ErrorCount:          job.ErrorCount,
		Results:             job.Results(),
		Errors:              rowErrors,
		UnresolvedConflicts: unresolved,
		SubmittedBy:         job.SubmittedBy,
		CreatedAt:           job.CreatedAt,
		StartedAt:           job.StartedAt,
		CompletedAt:         job.CompletedAt,
	}
}

// loadJob validates the id and maps repository errors to use case errors.
func loadJob(ctx context.Context, jobs importJobGetter, id string) (*domain.ImportJob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidImportID
	}

	job, err := jobs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return nil, ErrImportNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrGetImport, err)
	}
	return job, nil
}
