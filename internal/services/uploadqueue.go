package services

import (
	"context"
	"log"
	"time"

	"github.com/shelfhero/shelfhero/internal/models"
)

const (
	queuePollInterval = 15 * time.Second
	queueMaxAttempts  = 5
	queueBackoffBase  = 30 * time.Second
)

// QueueStore persists upload queue entries
type QueueStore interface {
	// NextPending claims the oldest pending entry whose next attempt
	// time has passed, marking it in_flight. Returns nil when the
	// queue has nothing due.
	NextPending(ctx context.Context) (*models.UploadEntry, error)
	// MarkDone removes the entry after a successful submission
	MarkDone(ctx context.Context, id int) error
	// MarkRetry returns the entry to pending with the next attempt time
	MarkRetry(ctx context.Context, id int, attempts int, lastError string, nextAttemptAt time.Time) error
	// MarkFailed retains the entry in a terminal failed state
	MarkFailed(ctx context.Context, id int, lastError string) error
}

// UploadProcessor submits one queued receipt to the pipeline
type UploadProcessor interface {
	Process(ctx context.Context, entry *models.UploadEntry) error
}

// UploadQueue drives queued receipt submissions through
// pending -> in_flight -> done or failed. Entries are retried with
// exponential backoff until the attempt cap; exhausted entries are
// kept with their last error visible.
type UploadQueue struct {
	store     QueueStore
	processor UploadProcessor
	interval  time.Duration
}

// NewUploadQueue creates a queue scheduler over a store and processor
func NewUploadQueue(store QueueStore, processor UploadProcessor) *UploadQueue {
	return &UploadQueue{
		store:     store,
		processor: processor,
		interval:  queuePollInterval,
	}
}

// Run polls the queue until the context is canceled. Each tick drains
// all entries that are due; transient processor failures reschedule
// the entry rather than stopping the loop.
func (q *UploadQueue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.drain(ctx)
		}
	}
}

// drain processes due entries until the queue reports none left
func (q *UploadQueue) drain(ctx context.Context) {
	for {
		entry, err := q.store.NextPending(ctx)
		if err != nil {
			log.Printf("upload queue: fetching next entry: %v", err)
			return
		}
		if entry == nil {
			return
		}
		q.processOne(ctx, entry)
	}
}

func (q *UploadQueue) processOne(ctx context.Context, entry *models.UploadEntry) {
	err := q.processor.Process(ctx, entry)
	if err == nil {
		if err := q.store.MarkDone(ctx, entry.ID); err != nil {
			log.Printf("upload queue: marking entry %d done: %v", entry.ID, err)
		}
		return
	}

	attempts := entry.Attempts + 1
	if attempts >= queueMaxAttempts {
		log.Printf("upload queue: entry %d failed after %d attempts: %v", entry.ID, attempts, err)
		if markErr := q.store.MarkFailed(ctx, entry.ID, err.Error()); markErr != nil {
			log.Printf("upload queue: marking entry %d failed: %v", entry.ID, markErr)
		}
		return
	}

	next := time.Now().Add(backoffDelay(attempts))
	log.Printf("upload queue: entry %d attempt %d failed, retrying at %s: %v",
		entry.ID, attempts, next.Format(time.RFC3339), err)
	if markErr := q.store.MarkRetry(ctx, entry.ID, attempts, err.Error(), next); markErr != nil {
		log.Printf("upload queue: rescheduling entry %d: %v", entry.ID, markErr)
	}
}

// backoffDelay doubles the base delay per completed attempt
func backoffDelay(attempts int) time.Duration {
	return queueBackoffBase << (attempts - 1)
}
