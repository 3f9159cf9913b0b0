package broadcast_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	domain "github.com/mohammadpnp/site-import/internal/domain/project"
	"github.com/mohammadpnp/site-import/internal/infrastructure/broadcast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobLoader struct {
	mu   sync.Mutex
	jobs map[string]domain.ImportJob
}

func (f *fakeJobLoader) Get(ctx context.Context, jobID string) (*domain.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return &job, nil
}

func (f *fakeJobLoader) set(job domain.ImportJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
}

func processingJob(id string, total int) domain.ImportJob {
	return domain.ImportJob{ID: id, TotalRows: total, Status: domain.JobStatusProcessing}
}

func progress(id string, processed, total int) domain.ProgressEvent {
	return domain.ProgressEvent{
		Type:          domain.EventTypeProgress,
		ImportID:      id,
		TotalRows:     total,
		ProcessedRows: processed,
		SuccessCount:  processed,
		Progress:      processed * 100 / total,
	}
}

func complete(id string, total int) domain.ProgressEvent {
	return domain.ProgressEvent{
		Type:          domain.EventTypeComplete,
		ImportID:      id,
		TotalRows:     total,
		ProcessedRows: total,
		SuccessCount:  total,
		Progress:      100,
		Status:        domain.JobStatusCompleted,
		Results:       &domain.ImportResults{Inserted: total},
	}
}

func TestSubscribePrimesWithStoredProgress(t *testing.T) {
	t.Parallel()

	job := processingJob("job-1", 100)
	job.SuccessCount = 40
	b := broadcast.NewBroadcaster(&fakeJobLoader{jobs: map[string]domain.ImportJob{"job-1": job}}, nil)

	events, unsubscribe, err := b.Subscribe(context.Background(), "job-1")
	require.NoError(t, err)
	defer unsubscribe()

	event := <-events
	assert.Equal(t, domain.EventTypeProgress, event.Type)
	assert.Equal(t, 40, event.ProcessedRows)
	assert.Equal(t, 40, event.Progress)
}

func TestSubscribeToFinishedJobYieldsCompletionAndCloses(t *testing.T) {
	t.Parallel()

	job := processingJob("job-1", 3)
	job.SuccessCount = 2
	job.ErrorCount = 1
	job.InsertedCount = 2
	job.Status = domain.JobStatusPartial
	b := broadcast.NewBroadcaster(&fakeJobLoader{jobs: map[string]domain.ImportJob{"job-1": job}}, nil)

	events, unsubscribe, err := b.Subscribe(context.Background(), "job-1")
	require.NoError(t, err)
	defer unsubscribe()

	event, ok := <-events
	require.True(t, ok)
	assert.Equal(t, domain.EventTypeComplete, event.Type)
	assert.Equal(t, domain.JobStatusPartial, event.Status)
	require.NotNil(t, event.Results)
	assert.Equal(t, 2, event.Results.Inserted)
	assert.Equal(t, 1, event.Results.Errors)

	_, ok = <-events
	assert.False(t, ok, "channel closes after the completion event")
	assert.Zero(t, b.SubscriberCount("job-1"))
}

func TestSubscribeUnknownJob(t *testing.T) {
	t.Parallel()

	b := broadcast.NewBroadcaster(&fakeJobLoader{jobs: map[string]domain.ImportJob{}}, nil)

	_, _, err := b.Subscribe(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrJobNotFound))
	assert.Zero(t, b.SubscriberCount("missing"))
}

func TestPublishCoalescesToLatestEvent(t *testing.T) {
	t.Parallel()

	b := broadcast.NewBroadcaster(&fakeJobLoader{jobs: map[string]domain.ImportJob{"job-1": processingJob("job-1", 100)}}, nil)
	events, unsubscribe, err := b.Subscribe(context.Background(), "job-1")
	require.NoError(t, err)
	defer unsubscribe()

	for processed := 10; processed <= 50; processed += 10 {
		b.Publish("job-1", progress("job-1", processed, 100))
	}

	event := <-events
	assert.Equal(t, 50, event.ProcessedRows, "a slow subscriber only sees the newest event")
}

func TestPublishDropsRegressingProgress(t *testing.T) {
	t.Parallel()

	b := broadcast.NewBroadcaster(&fakeJobLoader{jobs: map[string]domain.ImportJob{"job-1": processingJob("job-1", 100)}}, nil)
	events, unsubscribe, err := b.Subscribe(context.Background(), "job-1")
	require.NoError(t, err)
	defer unsubscribe()
	<-events

	b.Publish("job-1", progress("job-1", 30, 100))
	assert.Equal(t, 30, (<-events).ProcessedRows)

	b.Publish("job-1", progress("job-1", 20, 100))
	b.Publish("job-1", progress("job-1", 40, 100))
	assert.Equal(t, 40, (<-events).ProcessedRows)
}

func TestCompletionClosesEverySubscriber(t *testing.T) {
	t.Parallel()

	b := broadcast.NewBroadcaster(&fakeJobLoader{jobs: map[string]domain.ImportJob{"job-1": processingJob("job-1", 5)}}, nil)

	var channels []<-chan domain.ProgressEvent
	for i := 0; i < 3; i++ {
		events, _, err := b.Subscribe(context.Background(), "job-1")
		require.NoError(t, err)
		channels = append(channels, events)
	}
	assert.Equal(t, 3, b.SubscriberCount("job-1"))

	b.Publish("job-1", complete("job-1", 5))

	for _, events := range channels {
		var last domain.ProgressEvent
		for event := range events {
			last = event
		}
		assert.Equal(t, domain.EventTypeComplete, last.Type)
		assert.Equal(t, 100, last.Progress)
	}
	assert.Zero(t, b.SubscriberCount("job-1"))
}

func TestUnsubscribeIsIdempotentAndIsolated(t *testing.T) {
	t.Parallel()

	b := broadcast.NewBroadcaster(&fakeJobLoader{jobs: map[string]domain.ImportJob{"job-1": processingJob("job-1", 10)}}, nil)

	gone, unsubscribe, err := b.Subscribe(context.Background(), "job-1")
	require.NoError(t, err)
	stays, unsubscribeOther, err := b.Subscribe(context.Background(), "job-1")
	require.NoError(t, err)
	defer unsubscribeOther()
	<-stays

	unsubscribe()
	unsubscribe()

	for range gone {
	}
	assert.Equal(t, 1, b.SubscriberCount("job-1"))

	b.Publish("job-1", progress("job-1", 5, 10))
	assert.Equal(t, 5, (<-stays).ProcessedRows)
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	t.Parallel()

	loader := &fakeJobLoader{jobs: map[string]domain.ImportJob{"job-1": processingJob("job-1", 1000)}}
	b := broadcast.NewBroadcaster(loader, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events, unsubscribe, err := b.Subscribe(context.Background(), "job-1")
			if err != nil {
				t.Error(err)
				return
			}
			defer unsubscribe()

			last := -1
			for event := range events {
				if event.ProcessedRows < last {
					t.Errorf("progress went backwards: %d after %d", event.ProcessedRows, last)
				}
				last = event.ProcessedRows
				if event.IsTerminal() {
					return
				}
			}
		}()
	}

	for processed := 1; processed <= 1000; processed++ {
		b.Publish("job-1", progress("job-1", processed, 1000))
	}
	finished := processingJob("job-1", 1000)
	finished.SuccessCount = 1000
	finished.Status = domain.JobStatusCompleted
	loader.set(finished)
	b.Publish("job-1", complete("job-1", 1000))

	wg.Wait()
}
