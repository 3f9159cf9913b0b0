package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	domain "github.com/mohammadpnp/site-import/internal/domain/project"
)

type StartImportInput struct {
	Filename        string
	Content         io.Reader
	SkipDuplicates  bool
	UpdateExisting  bool
	ResolutionsJSON string
	SubmittedBy     *string
}

type StartImportOutput struct {
	ImportID  string           `json:"importId"`
	Filename  string           `json:"filename"`
	TotalRows int              `json:"totalRows"`
	Status    domain.JobStatus `json:"status"`
}

type StartImport interface {
	Execute(ctx context.Context, in StartImportInput) (StartImportOutput, error)
}

// ConflictsError rejects a submission whose conflicts have not all been
// decided. Rows lists the row numbers still waiting for a decision.
type ConflictsError struct {
	Err       error
	Rows      []int
	Conflicts []domain.Conflict
}

func (e *ConflictsError) Error() string {
	return fmt.Sprintf("%v: rows %s", e.Err, joinRows(e.Rows))
}

func (e *ConflictsError) Unwrap() error {
	return e.Err
}

type FileStore interface {
	Save(ctx context.Context, originalFilename string, content io.Reader) (string, error)
	Remove(ctx context.Context, storedFilename string) error
}

type importJobCreator interface {
	Create(ctx context.Context, job domain.ImportJob) (string, error)
}

type conflictFinder interface {
	Detect(ctx context.Context, rows []domain.ParsedRow) (DetectionResult, error)
}

// JobNotifier is told about every newly queued job.
type JobNotifier interface {
	Notify()
}

type startImport struct {
	jobs     importJobCreator
	files    FileStore
	detector conflictFinder
	notifier JobNotifier
	maxRows  int
}

func NewStartImport(jobs importJobCreator, files FileStore, detector conflictFinder, notifier JobNotifier, maxRows int) StartImport {
	return &startImport{
		jobs:     jobs,
		files:    files,
		detector: detector,
		notifier: notifier,
		maxRows:  maxRows,
	}
}

func (uc *startImport) Execute(ctx context.Context, in StartImportInput) (StartImportOutput, error) {
	filename := strings.TrimSpace(filepath.Base(in.Filename))
	if in.Content == nil || !isCSVFilename(filename) {
		return StartImportOutput{}, ErrInvalidImportFile
	}

	content, err := io.ReadAll(in.Content)
	if err != nil {
		return StartImportOutput{}, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}

	rows, err := ParseCSV(bytes.NewReader(content), uc.maxRows)
	if err != nil {
		return StartImportOutput{}, err
	}

	resolutions, err := ParseResolutions(in.ResolutionsJSON)
	if err != nil {
		return StartImportOutput{}, err
	}

	opts := domain.ImportOptions{
		SkipDuplicates: in.SkipDuplicates,
		UpdateExisting: in.UpdateExisting,
		Resolutions:    resolutions,
	}
	if err := uc.checkConflicts(ctx, rows, opts); err != nil {
		return StartImportOutput{}, err
	}

	storedFilename, err := uc.files.Save(ctx, filename, bytes.NewReader(content))
	if err != nil {
		return StartImportOutput{}, fmt.Errorf("%w: %v", ErrEnqueueImportJob, err)
	}

	job := domain.NewImportJob(filename, storedFilename, len(rows), in.SubmittedBy, opts)
	jobID, err := uc.jobs.Create(ctx, job)
	if err != nil {
		_ = uc.files.Remove(ctx, storedFilename)
		return StartImportOutput{}, fmt.Errorf("%w: %v", ErrEnqueueImportJob, err)
	}

	if uc.notifier != nil {
		uc.notifier.Notify()
	}

	return StartImportOutput{
		ImportID:  jobID,
		Filename:  filename,
		TotalRows: len(rows),
		Status:    domain.JobStatusPending,
	}, nil
}

// checkConflicts runs only when the submission depends on per-row decisions:
// explicit resolutions were given, or neither duplicate policy applies.
func (uc *startImport) checkConflicts(ctx context.Context, rows []domain.ParsedRow, opts domain.ImportOptions) error {
	explicit := len(opts.Resolutions) > 0
	if !explicit && (opts.SkipDuplicates || opts.UpdateExisting) {
		return nil
	}

	detected, err := uc.detector.Detect(ctx, rows)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDetectConflicts, err)
	}
	if len(detected.Conflicts) == 0 {
		return nil
	}

	if explicit {
		missing := opts.Resolutions.Missing(detected.Conflicts)
		if len(missing) == 0 {
			return nil
		}
		return &ConflictsError{Err: ErrUnresolvedConflicts, Rows: missing, Conflicts: detected.Conflicts}
	}

	conflictRows := make([]int, 0, len(detected.Conflicts))
	for _, conflict := range detected.Conflicts {
		conflictRows = append(conflictRows, conflict.RowNumber)
	}
	return &ConflictsError{Err: ErrConflictsRequireResolution, Rows: conflictRows, Conflicts: detected.Conflicts}
}

type resolutionInput struct {
	RowIndex *int   `json:"rowIndex"`
	Action   string `json:"action"`
}

// ParseResolutions decodes `[{"rowIndex": 3, "action": "override"}]`, where
// rowIndex is the 1-based data row number. An empty payload means none.
func ParseResolutions(raw string) (domain.Resolutions, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}

	var items []resolutionInput
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResolutions, err)
	}

	resolutions := make(domain.Resolutions, len(items))
	for i, item := range items {
		if item.RowIndex == nil || *item.RowIndex < 1 {
			return nil, fmt.Errorf("%w: item %d needs a positive rowIndex", ErrInvalidResolutions, i)
		}
		action, err := domain.ParseResolution(item.Action)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidResolutions, *item.RowIndex, err)
		}
		if prev, ok := resolutions[*item.RowIndex]; ok && prev != action {
			return nil, fmt.Errorf("%w: row %d has conflicting actions", ErrInvalidResolutions, *item.RowIndex)
		}
		resolutions[*item.RowIndex] = action
	}
	if len(resolutions) == 0 {
		return nil, nil
	}
	return resolutions, nil
}

func isCSVFilename(filename string) bool {
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return false
	}
	return strings.EqualFold(filepath.Ext(filename), ".csv")
}

func joinRows(rows []int) string {
	sorted := append([]int(nil), rows...)
	sort.Ints(sorted)
	parts := make([]string, 0, len(sorted))
	for _, row := range sorted {
		parts = append(parts, fmt.Sprint(row))
	}
	return strings.Join(parts, ", ")
}
