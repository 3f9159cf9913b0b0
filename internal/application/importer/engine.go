package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	domain "github.com/mohammadpnp/site-import/internal/domain/project"
)

const (
	defaultProgressEvery = 10
	maxFailureMessageLen = 1000
)

type ImportSource interface {
	Open(ctx context.Context, storedFilename string) (io.ReadCloser, error)
}

type ProgressPublisher interface {
	Publish(jobID string, event domain.ProgressEvent)
}

type engineJobRepo interface {
	Claim(ctx context.Context, jobID string) (*domain.ImportJob, error)
	Heartbeat(ctx context.Context, jobID string) error
	SaveProgress(ctx context.Context, job domain.ImportJob) error
	Finish(ctx context.Context, job domain.ImportJob) error
}

type referenceResolver interface {
	RefreshIfStale(ctx context.Context) error
	Resolve(row domain.ParsedRow) (domain.ResolvedIDs, []string)
}

type EngineConfig struct {
	ProgressEvery     int
	HeartbeatInterval time.Duration
	MaxRows           int
}

type ImportResult struct {
	JobID        string               `json:"importId"`
	Status       domain.JobStatus     `json:"status"`
	TotalRows    int                  `json:"totalRows"`
	SuccessCount int                  `json:"successCount"`
	ErrorCount   int                  `json:"errorCount"`
	Results      domain.ImportResults `json:"results"`
}

// Engine processes one claimed import job at a time per job id. Rows are
// written in file order, each in its own transaction.
type Engine struct {
	jobs      engineJobRepo
	sites     domain.SiteRepository
	source    ImportSource
	refs      referenceResolver
	publisher ProgressPublisher
	notifier  domain.CompletionNotifier
	logger    *slog.Logger
	cfg       EngineConfig
	now       func() time.Time

	mu      sync.Mutex
	running map[string]struct{}
}

func NewEngine(
	jobs engineJobRepo,
	sites domain.SiteRepository,
	source ImportSource,
	refs referenceResolver,
	publisher ProgressPublisher,
	notifier domain.CompletionNotifier,
	logger *slog.Logger,
	cfg EngineConfig,
) *Engine {
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = defaultProgressEvery
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		jobs:      jobs,
		sites:     sites,
		source:    source,
		refs:      refs,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		running:   make(map[string]struct{}),
	}
}

// Run claims a Pending job and processes it to a terminal state.
func (e *Engine) Run(ctx context.Context, jobID string) (ImportResult, error) {
	release, err := e.acquire(jobID)
	if err != nil {
		return ImportResult{}, err
	}
	defer release()

	job, err := e.jobs.Claim(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotPending) {
			return ImportResult{}, fmt.Errorf("%w: %v", ErrJobAlreadyRunning, err)
		}
		return ImportResult{}, fmt.Errorf("claim import job: %w", err)
	}
	return e.process(ctx, *job)
}

// ProcessJob runs a job that has already been claimed.
func (e *Engine) ProcessJob(ctx context.Context, job domain.ImportJob) (ImportResult, error) {
	release, err := e.acquire(job.ID)
	if err != nil {
		return ImportResult{}, err
	}
	defer release()

	return e.process(ctx, job)
}

func (e *Engine) acquire(jobID string) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.running[jobID]; ok {
		return nil, ErrJobAlreadyRunning
	}
	e.running[jobID] = struct{}{}
	return func() {
		e.mu.Lock()
		delete(e.running, jobID)
		e.mu.Unlock()
	}, nil
}

func (e *Engine) process(ctx context.Context, job domain.ImportJob) (ImportResult, error) {
	if job.Status != domain.JobStatusProcessing {
		return resultOf(job), fmt.Errorf("%w: job %s is %s", domain.ErrInvalidTransition, job.ID, job.Status)
	}
	logger := e.logger.With("import_id", job.ID, "filename", job.OriginalFilename)
	logger.Info("import started")

	rows, err := e.readRows(ctx, job)
	if err != nil {
		return e.fail(ctx, logger, &job, err)
	}
	job.SetTotalRows(len(rows))

	if err := e.refs.RefreshIfStale(ctx); err != nil {
		return e.fail(ctx, logger, &job, err)
	}

	existing, err := e.sites.FindByCodes(ctx, naturalKeys(rows))
	if err != nil {
		return e.fail(ctx, logger, &job, fmt.Errorf("find existing sites: %w", err))
	}

	if err := e.saveProgress(ctx, &job); err != nil {
		return e.fail(ctx, logger, &job, err)
	}

	ticker := time.NewTicker(e.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for _, row := range rows {
		select {
		case <-ctx.Done():
			logger.Warn("import interrupted", "processed_rows", job.Processed())
			return resultOf(job), ctx.Err()
		case <-ticker.C:
			if err := e.jobs.Heartbeat(ctx, job.ID); err != nil {
				logger.Warn("import heartbeat failed", "error", err)
			}
		default:
		}

		outcome, err := e.processRow(ctx, job, row, existing)
		if err != nil {
			if ctx.Err() != nil {
				logger.Warn("import interrupted", "processed_rows", job.Processed())
				return resultOf(job), ctx.Err()
			}
			return e.fail(ctx, logger, &job, err)
		}

		if err := e.record(&job, row, outcome); err != nil {
			return e.fail(ctx, logger, &job, err)
		}

		if job.Processed()%e.cfg.ProgressEvery == 0 {
			if err := e.saveProgress(ctx, &job); err != nil {
				return e.fail(ctx, logger, &job, err)
			}
		}
	}

	if err := job.Finish(e.now()); err != nil {
		return e.fail(ctx, logger, &job, err)
	}
	if err := e.jobs.Finish(ctx, job); err != nil {
		logger.Error("persist finished import failed", "error", err)
		return resultOf(job), fmt.Errorf("finish import job: %w", err)
	}

	e.complete(ctx, logger, job)
	return resultOf(job), nil
}

func (e *Engine) readRows(ctx context.Context, job domain.ImportJob) ([]domain.ParsedRow, error) {
	reader, err := e.source.Open(ctx, job.StoredFilename)
	if err != nil {
		return nil, fmt.Errorf("open import source: %w", err)
	}
	defer reader.Close()

	rows, err := ParseCSV(reader, e.cfg.MaxRows)
	if err != nil {
		return nil, fmt.Errorf("parse import file: %w", err)
	}
	return rows, nil
}

type rowOutcome struct {
	action     domain.RowAction
	messages   []string
	unresolved bool
}

func (e *Engine) processRow(ctx context.Context, job domain.ImportJob, row domain.ParsedRow, existing map[string]domain.ProjectSite) (rowOutcome, error) {
	valid, messages := domain.ValidateRow(row)
	if len(messages) > 0 {
		return rowOutcome{messages: messages}, nil
	}
	ids, messages := e.refs.Resolve(row)
	if len(messages) > 0 {
		return rowOutcome{messages: messages}, nil
	}

	key := row.NaturalKey()
	site := row.ToSite(valid, ids, job.SubmittedBy)
	stored, exists := existing[key]
	if !exists {
		id, err := e.sites.Insert(ctx, site)
		if errors.Is(err, domain.ErrSiteCodeTaken) {
			return rowOutcome{messages: []string{fmt.Sprintf("Site Code %q was created by another import", key)}}, nil
		}
		if err != nil {
			return e.storeFailure(ctx, row, err)
		}
		site.ID = id
		existing[key] = site
		return rowOutcome{action: domain.RowActionInserted}, nil
	}

	switch disposition(job.Options, row.RowNumber) {
	case domain.RowActionSkipped:
		return rowOutcome{action: domain.RowActionSkipped}, nil
	case domain.RowActionUpdated:
		site.ID = stored.ID
		err := e.sites.Update(ctx, stored.ID, site)
		if errors.Is(err, domain.ErrSiteNotFound) {
			return rowOutcome{messages: []string{fmt.Sprintf("Site Code %q was removed during the import", key)}}, nil
		}
		if err != nil {
			return e.storeFailure(ctx, row, err)
		}
		existing[key] = site
		return rowOutcome{action: domain.RowActionUpdated}, nil
	default:
		return rowOutcome{
			messages:   []string{fmt.Sprintf("Site Code %q already exists and no resolution was given", key)},
			unresolved: true,
		}, nil
	}
}

// storeFailure turns a failed write into a row error. Only the row's own
// transaction is rolled back; rows already committed stay.
func (e *Engine) storeFailure(ctx context.Context, row domain.ParsedRow, err error) (rowOutcome, error) {
	if ctx.Err() != nil {
		return rowOutcome{}, ctx.Err()
	}
	e.logger.Warn("import row write failed", "row", row.RowNumber, "site_code", row.NaturalKey(), "error", err)
	return rowOutcome{messages: []string{"Could not save row: " + err.Error()}}, nil
}

// disposition decides what happens to a row whose site code is already stored.
// An explicit decision wins. UpdateExisting only applies when no decisions
// were supplied at all. The zero value means the conflict is unresolved.
func disposition(opts domain.ImportOptions, rowNumber int) domain.RowAction {
	if resolution, ok := opts.Resolutions[rowNumber]; ok {
		if resolution == domain.ResolutionOverride {
			return domain.RowActionUpdated
		}
		return domain.RowActionSkipped
	}
	switch {
	case len(opts.Resolutions) == 0 && opts.UpdateExisting:
		return domain.RowActionUpdated
	case opts.SkipDuplicates:
		return domain.RowActionSkipped
	default:
		return ""
	}
}

func (e *Engine) record(job *domain.ImportJob, row domain.ParsedRow, outcome rowOutcome) error {
	if len(outcome.messages) == 0 {
		return job.RecordSuccess(outcome.action)
	}
	rowErr := domain.RowError{
		RowNumber: row.RowNumber,
		SiteCode:  row.NaturalKey(),
		Messages:  outcome.messages,
	}
	if outcome.unresolved {
		return job.RecordUnresolvedConflict(rowErr)
	}
	return job.RecordError(rowErr)
}

func (e *Engine) saveProgress(ctx context.Context, job *domain.ImportJob) error {
	if err := e.jobs.SaveProgress(ctx, *job); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	e.publisher.Publish(job.ID, job.ProgressEvent())
	return nil
}

// fail ends the job after a fault that stops processing. Cancellation is not a
// fault: the job stays Processing and is recovered by the stale-job reaper.
func (e *Engine) fail(ctx context.Context, logger *slog.Logger, job *domain.ImportJob, cause error) (ImportResult, error) {
	if ctx.Err() != nil {
		logger.Warn("import interrupted", "error", cause)
		return resultOf(*job), ctx.Err()
	}

	logger.Error("import failed", "error", cause)
	if job.IsTerminal() {
		return resultOf(*job), cause
	}
	if err := job.ForceFail(e.now(), truncateMessage("import failed: "+cause.Error())); err != nil {
		return resultOf(*job), fmt.Errorf("%v; force fail: %w", cause, err)
	}
	if err := e.jobs.Finish(ctx, *job); err != nil {
		return resultOf(*job), fmt.Errorf("%v; persist failure: %w", cause, err)
	}

	e.complete(ctx, logger, *job)
	return resultOf(*job), cause
}

func (e *Engine) complete(ctx context.Context, logger *slog.Logger, job domain.ImportJob) {
	logger.Info("import finished",
		"status", job.Status,
		"total_rows", job.TotalRows,
		"success_count", job.SuccessCount,
		"error_count", job.ErrorCount,
	)
	announce(ctx, e.publisher, e.notifier, logger, job)
}

// announce publishes the terminal event of job and records its completion
// notification. A nil notifier skips the notification.
func announce(ctx context.Context, publisher ProgressPublisher, notifier domain.CompletionNotifier, logger *slog.Logger, job domain.ImportJob) {
	publisher.Publish(job.ID, job.CompletionEvent())

	if notifier == nil {
		return
	}
	err := notifier.NotifyImportCompleted(ctx, domain.ImportCompletion{
		JobID:        job.ID,
		Filename:     job.OriginalFilename,
		Status:       job.Status,
		TotalRows:    job.TotalRows,
		SuccessCount: job.SuccessCount,
		ErrorCount:   job.ErrorCount,
		SubmittedBy:  job.SubmittedBy,
	})
	if err != nil {
		logger.Warn("import completion notification failed", "error", err)
	}
}

func resultOf(job domain.ImportJob) ImportResult {
	return ImportResult{
		JobID:        job.ID,
		Status:       job.Status,
		TotalRows:    job.TotalRows,
		SuccessCount: job.SuccessCount,
		ErrorCount:   job.ErrorCount,
		Results:      job.Results(),
	}
}

func truncateMessage(message string) string {
	message = strings.TrimSpace(message)
	if len(message) <= maxFailureMessageLen {
		return message
	}
	cut := maxFailureMessageLen
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}
