package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salon/internal/domain"
	"salon/internal/models"
)

const transactionColumns = `id, client_id, product_id, kind, description, category, quantity,
	unit_price, unit_cost, total, payment_method, created_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTransaction(ctx context.Context, exec execer, t *models.Transaction, now time.Time) error {
	if t.Total == 0 {
		t.Total = t.UnitPrice * int64(t.Quantity)
	}
	result, err := exec.ExecContext(ctx, `INSERT INTO transactions (
				client_id, product_id, kind, description, category, quantity,
				unit_price, unit_cost, total, payment_method, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullInt64(t.ClientID),
		nullInt64(t.ProductID),
		t.Kind,
		t.Description,
		t.Category,
		t.Quantity,
		t.UnitPrice,
		t.UnitCost,
		t.Total,
		t.PaymentMethod,
		now,
	)
	if err != nil {
		return mapError(err, "create transaction", nil)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	return nil
}

func (db *DB) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return insertTransaction(ctx, db, t, time.Now().UTC())
}

// CreateSale records a checkout: every product line decrements stock and
// logs a movement, and all lines land in one database transaction.
func (db *DB) CreateSale(ctx context.Context, lines []*models.Transaction, staff string) error {
	if len(lines) == 0 {
		return fmt.Errorf("create sale: %w: no lines", domain.ErrInvalidInput)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err, "begin transaction", nil)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, line := range lines {
		if line.Kind == models.KindProduct && line.ProductID != nil {
			if err := moveStock(ctx, tx, *line.ProductID, -line.Quantity, "venta", staff); err != nil {
				return err
			}
		}
		if err := insertTransaction(ctx, tx, line, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return mapError(err, "commit sale", nil)
	}
	return nil
}

// DeleteTransaction removes a sale line. Stock is not restored.
func (db *DB) DeleteTransaction(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return mapError(err, "delete transaction", nil)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete transaction %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListTransactions returns lines created in [from, to).
func (db *DB) ListTransactions(ctx context.Context, from, to time.Time) ([]*models.Transaction, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE created_at >= ? AND created_at < ? ORDER BY created_at, id`,
		from.UTC(), to.UTC())
	if err != nil {
		return nil, mapError(err, "list transactions", nil)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		var (
			t         models.Transaction
			clientID  sql.NullInt64
			productID sql.NullInt64
		)
		err := rows.Scan(&t.ID, &clientID, &productID, &t.Kind, &t.Description, &t.Category, &t.Quantity,
			&t.UnitPrice, &t.UnitCost, &t.Total, &t.PaymentMethod, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.ClientID = int64Ptr(clientID)
		t.ProductID = int64Ptr(productID)
		txs = append(txs, &t)
	}
	return txs, rows.Err()
}

// CountNewClients counts members registered in [from, to).
func (db *DB) CountNewClients(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM clients WHERE created_at >= ? AND created_at < ?`,
		from.UTC(), to.UTC()).Scan(&count)
	if err != nil {
		return 0, mapError(err, "count new clients", nil)
	}
	return count, nil
}
