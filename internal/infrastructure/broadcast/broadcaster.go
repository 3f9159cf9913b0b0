package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	domain "github.com/mohammadpnp/site-import/internal/domain/project"
)

type JobLoader interface {
	Get(ctx context.Context, jobID string) (*domain.ImportJob, error)
}

type subscriber struct {
	mailbox       chan domain.ProgressEvent
	lastProcessed int
	closed        bool
}

// Broadcaster fans job progress out to any number of subscribers. Publish
// never blocks: each subscriber holds only the newest undelivered event.
type Broadcaster struct {
	jobs   JobLoader
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

func NewBroadcaster(jobs JobLoader, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		jobs:   jobs,
		logger: logger,
		subs:   make(map[string]map[*subscriber]struct{}),
	}
}

// Subscribe registers for a job's events and then primes the channel with the
// job's stored state, so an event published in between is never missed. The
// channel is closed after the completion event or on unsubscribe.
func (b *Broadcaster) Subscribe(ctx context.Context, jobID string) (<-chan domain.ProgressEvent, func(), error) {
	sub := &subscriber{
		mailbox:       make(chan domain.ProgressEvent, 1),
		lastProcessed: -1,
	}

	b.mu.Lock()
	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[*subscriber]struct{})
	}
	b.subs[jobID][sub] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() { b.unsubscribe(jobID, sub) }

	job, err := b.jobs.Get(ctx, jobID)
	if err != nil {
		unsubscribe()
		return nil, nil, fmt.Errorf("load import job: %w", err)
	}

	b.mu.Lock()
	if job.IsTerminal() {
		b.offer(sub, job.CompletionEvent())
		b.remove(jobID, sub)
	} else {
		b.offer(sub, job.ProgressEvent())
	}
	b.mu.Unlock()

	return sub.mailbox, unsubscribe, nil
}

func (b *Broadcaster) Publish(jobID string, event domain.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs[jobID] {
		b.offer(sub, event)
	}
	if event.IsTerminal() {
		if n := len(b.subs[jobID]); n > 0 {
			b.logger.Debug("closing progress subscribers", "import_id", jobID, "subscribers", n)
		}
		delete(b.subs, jobID)
	}
}

func (b *Broadcaster) SubscriberCount(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[jobID])
}

// offer replaces any undelivered event with the new one. Progress that goes
// backwards is dropped. Callers hold b.mu.
func (b *Broadcaster) offer(sub *subscriber, event domain.ProgressEvent) {
	if sub.closed {
		return
	}
	if !event.IsTerminal() && event.ProcessedRows < sub.lastProcessed {
		return
	}

	select {
	case <-sub.mailbox:
	default:
	}
	sub.mailbox <- event
	sub.lastProcessed = event.ProcessedRows

	if event.IsTerminal() {
		sub.closed = true
		close(sub.mailbox)
	}
}

func (b *Broadcaster) unsubscribe(jobID string, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !sub.closed {
		sub.closed = true
		close(sub.mailbox)
	}
	b.remove(jobID, sub)
}

func (b *Broadcaster) remove(jobID string, sub *subscriber) {
	subs := b.subs[jobID]
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.subs, jobID)
	}
}
