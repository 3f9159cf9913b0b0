package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

type DownloadErrorReportInput struct {
	ID string
}

type DownloadErrorReportOutput struct {
	Filename string
	Content  []byte
}

type DownloadErrorReport interface {
	Execute(ctx context.Context, in DownloadErrorReportInput) (DownloadErrorReportOutput, error)
}

type downloadErrorReport struct {
	jobs importJobGetter
}

func NewDownloadErrorReport(jobs importJobGetter) DownloadErrorReport {
	return &downloadErrorReport{jobs: jobs}
}

func (uc *downloadErrorReport) Execute(ctx context.Context, in DownloadErrorReportInput) (DownloadErrorReportOutput, error) {
	job, err := loadJob(ctx, uc.jobs, in.ID)
	if err != nil {
		return DownloadErrorReportOutput{}, err
	}
	if !job.IsTerminal() {
		return DownloadErrorReportOutput{}, ErrImportNotFinished
	}
	if len(job.Errors) == 0 {
		return DownloadErrorReportOutput{}, ErrNoImportErrors
	}

	content, err := GenerateErrorReport(job.Errors)
	if err != nil {
		return DownloadErrorReportOutput{}, fmt.Errorf("%w: %v", ErrGetImport, err)
	}

	base := strings.TrimSuffix(job.OriginalFilename, filepath.Ext(job.OriginalFilename))
	if base == "" {
		base = "import"
	}
	return DownloadErrorReportOutput{
		Filename: fmt.Sprintf("%s-errors-%s.csv", base, job.ID[:8]),
		Content:  content,
	}, nil
}
