package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shelfhero/shelfhero/internal/models"
)

// EnqueueUpload adds a receipt submission to the upload queue
func (db *DB) EnqueueUpload(ctx context.Context, entry *models.UploadEntry) error {
	return db.Pool.QueryRow(ctx, `
		INSERT INTO upload_queue (object_key, raw_text, store_hint, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, next_attempt_at, created_at, updated_at
	`, entry.ObjectKey, entry.RawText, entry.StoreHint, models.UploadStatusPending,
	).Scan(&entry.ID, &entry.NextAttemptAt, &entry.CreatedAt, &entry.UpdatedAt)
}

// NextPending claims the oldest due pending entry, marking it in_flight.
// The row lock guarantees a single claimant under concurrent schedulers.
func (db *DB) NextPending(ctx context.Context) (*models.UploadEntry, error) {
	entry := &models.UploadEntry{}
	err := db.Pool.QueryRow(ctx, `
		UPDATE upload_queue
		SET status = $1, updated_at = NOW()
		WHERE id = (
			SELECT id FROM upload_queue
			WHERE status = $2 AND next_attempt_at <= NOW()
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, object_key, raw_text, store_hint, status, attempts,
			last_error, next_attempt_at, created_at, updated_at
	`, models.UploadStatusInFlight, models.UploadStatusPending).Scan(
		&entry.ID, &entry.ObjectKey, &entry.RawText, &entry.StoreHint,
		&entry.Status, &entry.Attempts, &entry.LastError,
		&entry.NextAttemptAt, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// MarkDone removes the entry after a successful submission
func (db *DB) MarkDone(ctx context.Context, id int) error {
	_, err := db.Pool.Exec(ctx, "DELETE FROM upload_queue WHERE id = $1", id)
	return err
}

// MarkRetry returns the entry to pending with the next attempt time
func (db *DB) MarkRetry(ctx context.Context, id int, attempts int, lastError string, nextAttemptAt time.Time) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE upload_queue
		SET status = $2, attempts = $3, last_error = $4, next_attempt_at = $5, updated_at = NOW()
		WHERE id = $1
	`, id, models.UploadStatusPending, attempts, lastError, nextAttemptAt)
	return err
}

// MarkFailed retains the entry in a terminal failed state with the
// error visible
func (db *DB) MarkFailed(ctx context.Context, id int, lastError string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE upload_queue
		SET status = $2, attempts = attempts + 1, last_error = $3, updated_at = NOW()
		WHERE id = $1
	`, id, models.UploadStatusFailed, lastError)
	return err
}

// ListQueueEntries returns queue entries newest first, for inspection
func (db *DB) ListQueueEntries(ctx context.Context, limit int) ([]*models.UploadEntry, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, object_key, raw_text, store_hint, status, attempts,
			last_error, next_attempt_at, created_at, updated_at
		FROM upload_queue
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.UploadEntry
	for rows.Next() {
		entry := &models.UploadEntry{}
		err := rows.Scan(
			&entry.ID, &entry.ObjectKey, &entry.RawText, &entry.StoreHint,
			&entry.Status, &entry.Attempts, &entry.LastError,
			&entry.NextAttemptAt, &entry.CreatedAt, &entry.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
