package database

import (
	"context"
	"fmt"
	"time"

	"salon/internal/models"
)

func (db *DB) AppendVisitLog(ctx context.Context, entry *models.VisitLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO visit_logs (client_id, kind, created_at) VALUES (?, ?, ?)`,
		entry.ClientID, entry.Kind, entry.CreatedAt.UTC())
	if err != nil {
		return mapError(err, "append visit log", nil)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

func (db *DB) ListVisitLogs(ctx context.Context, clientID int64) ([]*models.VisitLog, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, client_id, kind, created_at FROM visit_logs WHERE client_id = ? ORDER BY created_at, id`,
		clientID)
	if err != nil {
		return nil, mapError(err, "list visit logs", nil)
	}
	defer rows.Close()

	var logs []*models.VisitLog
	for rows.Next() {
		var l models.VisitLog
		if err := rows.Scan(&l.ID, &l.ClientID, &l.Kind, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan visit log: %w", err)
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
