package importer

import (
	"context"
	"fmt"
	"time"

	domain "github.com/mohammadpnp/site-import/internal/domain/project"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type ListImportsInput struct {
	Limit  int
	Offset int
}

type ListImportsOutput struct {
	Items  []ImportSummaryOutput `json:"items"`
	Total  int64                 `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

type ImportSummaryOutput struct {
	ImportID     string               `json:"importId"`
	Filename     string               `json:"filename"`
	Status       domain.JobStatus     `json:"status"`
	Progress     int                  `json:"progress"`
	TotalRows    int                  `json:"totalRows"`
	SuccessCount int                  `json:"successCount"`
	ErrorCount   int                  `json:"errorCount"`
	Results      domain.ImportResults `json:"results"`
	SubmittedBy  *string              `json:"submittedBy,omitempty"`
	CreatedAt    time.Time            `json:"createdAt"`
	CompletedAt  *time.Time           `json:"completedAt,omitempty"`
}

type ListImports interface {
	Execute(ctx context.Context, in ListImportsInput) (ListImportsOutput, error)
}

type importJobLister interface {
	List(ctx context.Context, limit, offset int) ([]domain.ImportJob, int64, error)
}

type listImports struct {
	jobs importJobLister
}

func NewListImports(jobs importJobLister) ListImports {
	return &listImports{jobs: jobs}
}

func (uc *listImports) Execute(ctx context.Context, in ListImportsInput) (ListImportsOutput, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := in.Offset
	if offset < 0 {
		offset = 0
	}

	jobs, total, err := uc.jobs.List(ctx, limit, offset)
	if err != nil {
		return ListImportsOutput{}, fmt.Errorf("%w: %v", ErrListImports, err)
	}

	items := make([]ImportSummaryOutput, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, ImportSummaryOutput{
			ImportID:     job.ID,
			Filename:     job.OriginalFilename,
			Status:       job.Status,
			Progress:     job.Percent(),
			TotalRows:    job.TotalRows,
			SuccessCount: job.SuccessCount,
			ErrorCount:   job.ErrorCount,
			Results:      job.Results(),
			SubmittedBy:  job.SubmittedBy,
			CreatedAt:    job.CreatedAt,
			CompletedAt:  job.CompletedAt,
		})
	}

	return ListImportsOutput{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}
