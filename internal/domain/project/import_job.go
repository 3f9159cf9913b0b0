package project

import (
	"fmt"
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "Pending"
	JobStatusProcessing JobStatus = "Processing"
	JobStatusCompleted  JobStatus = "Completed"
	JobStatusPartial    JobStatus = "Partial"
	JobStatusFailed     JobStatus = "Failed"
)

func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusPartial, JobStatusFailed:
		return true
	default:
		return false
	}
}

type RowAction string

const (
	RowActionInserted RowAction = "inserted"
	RowActionUpdated  RowAction = "updated"
	RowActionSkipped  RowAction = "skipped"
)

type RowError struct {
	RowNumber int      `json:"rowNumber"`
	SiteCode  string   `json:"siteCode"`
	Messages  []string `json:"messages"`
}

type ImportOptions struct {
	SkipDuplicates bool        `json:"skipDuplicates"`
	UpdateExisting bool        `json:"updateExisting"`
	Resolutions    Resolutions `json:"resolutions,omitempty"`
}

func DefaultImportOptions() ImportOptions {
	return ImportOptions{SkipDuplicates: true}
}

type ImportJob struct {
	ID                  string
	OriginalFilename    string
	StoredFilename      string
	TotalRows           int
	SuccessCount        int
	ErrorCount          int
	InsertedCount       int
	UpdatedCount        int
	SkippedCount        int
	Errors              []RowError
	UnresolvedConflicts []int
	Status              JobStatus
	SubmittedBy         *string
	Options             ImportOptions
	CreatedAt           time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
	HeartbeatAt         *time.Time
}

func NewImportJob(originalFilename, storedFilename string, totalRows int, submittedBy *string, opts ImportOptions) ImportJob {
	return ImportJob{
		OriginalFilename: originalFilename,
		StoredFilename:   storedFilename,
		TotalRows:        totalRows,
		Status:           JobStatusPending,
		SubmittedBy:      submittedBy,
		Options:          opts,
	}
}

func (j *ImportJob) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// SetTotalRows fixes the row count once parsing has finished. Counts are reset
// because a claimed job is always processed from the first row.
func (j *ImportJob) SetTotalRows(total int) {
	j.TotalRows = total
	j.SuccessCount = 0
	j.ErrorCount = 0
	j.InsertedCount = 0
	j.UpdatedCount = 0
	j.SkippedCount = 0
	j.Errors = nil
	j.UnresolvedConflicts = nil
}

func (j *ImportJob) RecordSuccess(action RowAction) error {
	if j.Status != JobStatusProcessing {
		return fmt.Errorf("%w: record success while %s", ErrInvalidTransition, j.Status)
	}
	if j.Processed() >= j.TotalRows {
		return fmt.Errorf("%w: processed rows exceed total %d", ErrInvalidTransition, j.TotalRows)
	}
	j.SuccessCount++
	switch action {
	case RowActionInserted:
		j.InsertedCount++
	case RowActionUpdated:
		j.UpdatedCount++
	case RowActionSkipped:
		j.SkippedCount++
	}
	return nil
}

func (j *ImportJob) RecordError(rowErr RowError) error {
	if j.Status != JobStatusProcessing {
		return fmt.Errorf("%w: record error while %s", ErrInvalidTransition, j.Status)
	}
	if j.Processed() >= j.TotalRows {
		return fmt.Errorf("%w: processed rows exceed total %d", ErrInvalidTransition, j.TotalRows)
	}
	if n := len(j.Errors); n > 0 && j.Errors[n-1].RowNumber >= rowErr.RowNumber {
		return fmt.Errorf("%w: row %d after row %d", ErrRowOutOfOrder, rowErr.RowNumber, j.Errors[n-1].RowNumber)
	}
	j.Errors = append(j.Errors, rowErr)
	j.ErrorCount++
	return nil
}

func (j *ImportJob) RecordUnresolvedConflict(rowErr RowError) error {
	if err := j.RecordError(rowErr); err != nil {
		return err
	}
	j.UnresolvedConflicts = append(j.UnresolvedConflicts, rowErr.RowNumber)
	return nil
}

func (j *ImportJob) Processed() int {
	return j.SuccessCount + j.ErrorCount
}

// Percent is floor(100 * processed / total); an empty file counts as done.
func (j *ImportJob) Percent() int {
	if j.TotalRows <= 0 {
		return 100
	}
	return j.Processed() * 100 / j.TotalRows
}

// Finish derives the terminal status from the final counts.
func (j *ImportJob) Finish(now time.Time) error {
	if j.IsTerminal() {
		return ErrJobTerminal
	}
	if j.Status != JobStatusProcessing {
		return fmt.Errorf("%w: %s -> terminal", ErrInvalidTransition, j.Status)
	}

	switch {
	case j.ErrorCount == 0:
		j.Status = JobStatusCompleted
	case j.ErrorCount == j.TotalRows:
		j.Status = JobStatusFailed
	default:
		j.Status = JobStatusPartial
	}
	j.CompletedAt = &now
	return nil
}

// ForceFail ends the job after an unrecoverable fault. Counts recorded so far
// are kept as a record of progress; the error list is replaced by the fault.
func (j *ImportJob) ForceFail(now time.Time, message string) error {
	if j.IsTerminal() {
		return ErrJobTerminal
	}
	j.Status = JobStatusFailed
	j.Errors = []RowError{{RowNumber: 0, Messages: []string{message}}}
	j.CompletedAt = &now
	return nil
}

func (j *ImportJob) Results() ImportResults {
	return ImportResults{
		Inserted: j.InsertedCount,
		Updated:  j.UpdatedCount,
		Skipped:  j.SkippedCount,
		Errors:   j.ErrorCount,
	}
}

func (j *ImportJob) ProgressEvent() ProgressEvent {
	return ProgressEvent{
		Type:          EventTypeProgress,
		ImportID:      j.ID,
		Progress:      j.Percent(),
		TotalRows:     j.TotalRows,
		ProcessedRows: j.Processed(),
		SuccessCount:  j.SuccessCount,
		ErrorCount:    j.ErrorCount,
		Status:        j.Status,
	}
}

func (j *ImportJob) CompletionEvent() ProgressEvent {
	results := j.Results()
	event := j.ProgressEvent()
	event.Type = EventTypeComplete
	event.Results = &results
	return event
}
