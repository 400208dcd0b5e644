package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salon/internal/models"
)

const syncTaskColumns = `id, task_type, entity_id, payload, status, retry_count, last_error,
	created_at, processed_at, next_retry_at`

func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}

	query := `INSERT INTO sync_queue (task_type, entity_id, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		task.TaskType,
		task.EntityID,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		now,
		utcPtr(task.NextRetryAt),
	)
	if err != nil {
		return mapError(err, "create sync task", nil)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

// GetPendingSyncTasks returns due tasks, oldest first.
func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	query := `SELECT ` + syncTaskColumns + ` FROM sync_queue
              WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC, id ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query,
		models.TaskStatusPending, models.TaskStatusRetry, time.Now().UTC(), limit)
	if err != nil {
		return nil, mapError(err, "get pending sync tasks", nil)
	}
	defer rows.Close()
	return collectSyncTasks(rows)
}

// ClaimSyncTask moves a pending or retry task to processing. It reports
// false when another path already took the task.
func (db *DB) ClaimSyncTask(ctx context.Context, id int64) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ? WHERE id = ? AND status IN (?, ?)`,
		models.TaskStatusProcessing, id, models.TaskStatusPending, models.TaskStatusRetry)
	if err != nil {
		return false, mapError(err, "claim sync task", nil)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// ReleaseSyncTasks returns tasks left in processing by a stopped worker to
// the pending pool.
func (db *DB) ReleaseSyncTasks(ctx context.Context) (int64, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ? WHERE status = ?`,
		models.TaskStatusPending, models.TaskStatusProcessing)
	if err != nil {
		return 0, mapError(err, "release sync tasks", nil)
	}
	return result.RowsAffected()
}

func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var (
		query string
		args  []any
	)

	switch status {
	case models.TaskStatusRetry:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []any{status, nullString(errMsg), utcPtr(nextRetryAt), id}
	case models.TaskStatusCompleted, models.TaskStatusFailed:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = NULL, processed_at = ? WHERE id = ?`
		args = []any{status, nullString(errMsg), time.Now().UTC(), id}
	default:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []any{status, nullString(errMsg), utcPtr(nextRetryAt), id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return mapError(err, "update sync task status", nil)
	}
	return nil
}

// GetFailedSyncTasks lists dead tasks, newest first.
func (db *DB) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+syncTaskColumns+` FROM sync_queue WHERE status = ? ORDER BY created_at DESC, id DESC`,
		models.TaskStatusFailed)
	if err != nil {
		return nil, mapError(err, "get failed sync tasks", nil)
	}
	defer rows.Close()
	return collectSyncTasks(rows)
}

func collectSyncTasks(rows *sql.Rows) ([]models.SyncTask, error) {
	var tasks []models.SyncTask
	for rows.Next() {
		var (
			t           models.SyncTask
			lastErr     sql.NullString
			processedAt sql.NullTime
			nextRetryAt sql.NullTime
		)
		err := rows.Scan(&t.ID, &t.TaskType, &t.EntityID, &t.Payload, &t.Status, &t.RetryCount,
			&lastErr, &t.CreatedAt, &processedAt, &nextRetryAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		if lastErr.Valid {
			msg := lastErr.String
			t.LastError = &msg
		}
		t.ProcessedAt = timePtr(processedAt)
		t.NextRetryAt = timePtr(nextRetryAt)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func utcPtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
