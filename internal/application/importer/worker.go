package importer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	domain "github.com/mohammadpnp/site-import/internal/domain/project"
)

const staleJobReason = "processing interrupted"

type jobProcessor interface {
	ProcessJob(ctx context.Context, job domain.ImportJob) (ImportResult, error)
}

type workerJobRepo interface {
	ClaimNext(ctx context.Context) (*domain.ImportJob, error)
	FailStale(ctx context.Context, staleBefore time.Time, reason string) ([]domain.ImportJob, error)
}

type ImportWorkerConfig struct {
	Workers       int
	PollInterval  time.Duration
	LeaseDuration time.Duration
}

// ImportWorker drains Pending jobs in the background. Submission calls Notify
// so an idle worker picks the job up without waiting for the next poll.
type ImportWorker struct {
	repo      workerJobRepo
	processor jobProcessor
	publisher ProgressPublisher
	notifier  domain.CompletionNotifier
	logger    *slog.Logger
	cfg       ImportWorkerConfig
	now       func() time.Time

	wake chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewImportWorker(
	repo workerJobRepo,
	processor jobProcessor,
	publisher ProgressPublisher,
	notifier domain.CompletionNotifier,
	logger *slog.Logger,
	cfg ImportWorkerConfig,
) *ImportWorker {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ImportWorker{
		repo:      repo,
		processor: processor,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		wake:      make(chan struct{}, cfg.Workers),
	}
}

func (w *ImportWorker) Start(ctx context.Context) {
	w.once.Do(func() {
		w.reap(ctx)

		w.wg.Add(w.cfg.Workers + 1)
		go w.reaperLoop(ctx)
		for i := 0; i < w.cfg.Workers; i++ {
			go w.workerLoop(ctx)
		}
	})
}

// Notify wakes one idle worker. It never blocks.
func (w *ImportWorker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Wait blocks until every loop has returned after its context was cancelled.
func (w *ImportWorker) Wait() {
	w.wg.Wait()
}

func (w *ImportWorker) workerLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := w.repo.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Error("claim next import job failed", "error", err)
			}
			if !w.idle(ctx) {
				return
			}
			continue
		}

		if job == nil {
			if !w.idle(ctx) {
				return
			}
			continue
		}

		w.run(ctx, *job)
	}
}

func (w *ImportWorker) run(ctx context.Context, job domain.ImportJob) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("import job panicked", "import_id", job.ID, "panic", r)
		}
	}()

	if _, err := w.processor.ProcessJob(ctx, job); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Error("process import job failed", "import_id", job.ID, "error", err)
	}
}

// idle waits for a poll tick or a Notify, returning false on shutdown.
func (w *ImportWorker) idle(ctx context.Context) bool {
	timer := time.NewTimer(w.cfg.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-w.wake:
		return true
	case <-timer.C:
		return true
	}
}

func (w *ImportWorker) reaperLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.LeaseDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reap(ctx)
		}
	}
}

// reap fails jobs left Processing by a crashed or stopped worker and closes
// their progress streams.
func (w *ImportWorker) reap(ctx context.Context) {
	jobs, err := w.repo.FailStale(ctx, w.now().Add(-w.cfg.LeaseDuration), staleJobReason)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("fail stale import jobs failed", "error", err)
		}
		return
	}
	if len(jobs) > 0 {
		w.logger.Warn("failed stale import jobs", "count", len(jobs))
	}
	for _, job := range jobs {
		announce(ctx, w.publisher, w.notifier, w.logger.With("import_id", job.ID), job)
	}
}
