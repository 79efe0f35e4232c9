package models

import (
	"time"
)

// UploadStatus represents the processing state of a queued submission
type UploadStatus string

const (
	UploadStatusPending  UploadStatus = "pending"
	UploadStatusInFlight UploadStatus = "in_flight"
	UploadStatusDone     UploadStatus = "done"
	UploadStatusFailed   UploadStatus = "failed"
)

// UploadEntry is a queued receipt submission. Entries are processed FIFO,
// retried with exponential backoff, removed on success, and retained with
// a visible error state after retries are exhausted.
type UploadEntry struct {
	ID            int          `json:"id"`
	ObjectKey     *string      `json:"object_key,omitempty"`
	RawText       string       `json:"raw_text,omitempty"`
	StoreHint     string       `json:"store_hint,omitempty"`
	Status        UploadStatus `json:"status"`
	Attempts      int          `json:"attempts"`
	LastError     *string      `json:"last_error,omitempty"`
	NextAttemptAt time.Time    `json:"next_attempt_at"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
