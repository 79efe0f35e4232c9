package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfhero/shelfhero/internal/models"
)

// fakeQueueStore hands out a fixed list of entries and records the
// terminal call made for each
type fakeQueueStore struct {
	pending []*models.UploadEntry

	done    []int
	failed  map[int]string
	retries []retryCall
}

type retryCall struct {
	id            int
	attempts      int
	lastError     string
	nextAttemptAt time.Time
}

func newFakeQueueStore(entries ...*models.UploadEntry) *fakeQueueStore {
	return &fakeQueueStore{pending: entries, failed: map[int]string{}}
}

func (f *fakeQueueStore) NextPending(context.Context) (*models.UploadEntry, error) {
	if len(f.pending) == 0 {
		return nil, nil
	}
	entry := f.pending[0]
	f.pending = f.pending[1:]
	return entry, nil
}

func (f *fakeQueueStore) MarkDone(_ context.Context, id int) error {
	f.done = append(f.done, id)
	return nil
}

func (f *fakeQueueStore) MarkRetry(_ context.Context, id, attempts int, lastError string, nextAttemptAt time.Time) error {
	f.retries = append(f.retries, retryCall{id: id, attempts: attempts, lastError: lastError, nextAttemptAt: nextAttemptAt})
	return nil
}

func (f *fakeQueueStore) MarkFailed(_ context.Context, id int, lastError string) error {
	f.failed[id] = lastError
	return nil
}

// fakeUploadProcessor fails the ids listed in failWith
type fakeUploadProcessor struct {
	failWith  map[int]error
	processed []int
}

func (f *fakeUploadProcessor) Process(_ context.Context, entry *models.UploadEntry) error {
	f.processed = append(f.processed, entry.ID)
	return f.failWith[entry.ID]
}

func TestQueueDrainMarksDone(t *testing.T) {
	store := newFakeQueueStore(
		&models.UploadEntry{ID: 1},
		&models.UploadEntry{ID: 2},
	)
	processor := &fakeUploadProcessor{}
	q := NewUploadQueue(store, processor)

	q.drain(context.Background())

	assert.Equal(t, []int{1, 2}, processor.processed)
	assert.Equal(t, []int{1, 2}, store.done)
	assert.Empty(t, store.retries)
	assert.Empty(t, store.failed)
}

func TestQueueFailureSchedulesRetry(t *testing.T) {
	store := newFakeQueueStore(&models.UploadEntry{ID: 1, Attempts: 0})
	processor := &fakeUploadProcessor{failWith: map[int]error{1: errors.New("ocr unavailable")}}
	q := NewUploadQueue(store, processor)

	before := time.Now()
	q.drain(context.Background())

	require.Len(t, store.retries, 1)
	retry := store.retries[0]
	assert.Equal(t, 1, retry.id)
	assert.Equal(t, 1, retry.attempts)
	assert.Equal(t, "ocr unavailable", retry.lastError)
	assert.False(t, retry.nextAttemptAt.Before(before.Add(30*time.Second)))
	assert.Empty(t, store.done)
}

func TestQueueBackoffDoubles(t *testing.T) {
	assert.Equal(t, 30*time.Second, backoffDelay(1))
	assert.Equal(t, 60*time.Second, backoffDelay(2))
	assert.Equal(t, 120*time.Second, backoffDelay(3))
	assert.Equal(t, 240*time.Second, backoffDelay(4))
}

func TestQueueExhaustedAttemptsMarkFailed(t *testing.T) {
	store := newFakeQueueStore(&models.UploadEntry{ID: 7, Attempts: 4})
	processor := &fakeUploadProcessor{failWith: map[int]error{7: errors.New("still broken")}}
	q := NewUploadQueue(store, processor)

	q.drain(context.Background())

	assert.Empty(t, store.retries)
	assert.Equal(t, "still broken", store.failed[7])
}

func TestQueueOneFailureDoesNotStopDrain(t *testing.T) {
	store := newFakeQueueStore(
		&models.UploadEntry{ID: 1},
		&models.UploadEntry{ID: 2, Attempts: 0},
		&models.UploadEntry{ID: 3},
	)
	processor := &fakeUploadProcessor{failWith: map[int]error{2: errors.New("boom")}}
	q := NewUploadQueue(store, processor)

	q.drain(context.Background())

	assert.Equal(t, []int{1, 2, 3}, processor.processed)
	assert.Equal(t, []int{1, 3}, store.done)
	require.Len(t, store.retries, 1)
}
