package importer

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/mohammadpnp/site-import/internal/domain/project"
)

type DeleteImportInput struct {
	ID string
}

type DeleteImport interface {
	Execute(ctx context.Context, in DeleteImportInput) error
}

type importJobDeleter interface {
	importJobGetter
	Delete(ctx context.Context, jobID string) error
}

type fileRemover interface {
	Remove(ctx context.Context, storedFilename string) error
}

type deleteImport struct {
	jobs  importJobDeleter
	files fileRemover
}

func NewDeleteImport(jobs importJobDeleter, files fileRemover) DeleteImport {
	return &deleteImport{jobs: jobs, files: files}
}

// Execute removes a finished import and its stored upload. Jobs that are
// still queued or running are refused.
func (uc *deleteImport) Execute(ctx context.Context, in DeleteImportInput) error {
	job, err := loadJob(ctx, uc.jobs, in.ID)
	if err != nil {
		return err
	}
	if !job.IsTerminal() {
		return ErrImportNotFinished
	}

	if job.StoredFilename != "" {
		if err := uc.files.Remove(ctx, job.StoredFilename); err != nil {
			return fmt.Errorf("%w: %v", ErrDeleteImport, err)
		}
	}

	if err := uc.jobs.Delete(ctx, job.ID); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return ErrImportNotFound
		}
		return fmt.Errorf("%w: %v", ErrDeleteImport, err)
	}
	return nil
}
