package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salon/internal/domain"
	"salon/internal/models"
)

const productColumns = `id, sku, name, category, quantity, cost, price, low_stock_threshold,
	active, created_at, updated_at`

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.Quantity, &p.Cost, &p.Price,
		&p.LowStockThreshold, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (db *DB) CreateProduct(ctx context.Context, p *models.Product) error {
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, `INSERT INTO products (
				sku, name, category, quantity, cost, price, low_stock_threshold, active, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.SKU, p.Name, p.Category, p.Quantity, p.Cost, p.Price, p.LowStockThreshold, p.Active, now, now)
	if err != nil {
		return mapError(err, "create product", domain.ErrInvalidInput)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// UpsertProductBySKU creates the product or refreshes its catalog fields.
// Stock on hand is only set on insert; later changes go through AdjustStock.
func (db *DB) UpsertProductBySKU(ctx context.Context, p *models.Product) error {
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `INSERT INTO products (
				sku, name, category, quantity, cost, price, low_stock_threshold, active, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(sku) DO UPDATE SET
				name = excluded.name,
				category = excluded.category,
				cost = excluded.cost,
				price = excluded.price,
				low_stock_threshold = excluded.low_stock_threshold,
				active = excluded.active,
				updated_at = excluded.updated_at`,
		p.SKU, p.Name, p.Category, p.Quantity, p.Cost, p.Price, p.LowStockThreshold, p.Active, now, now)
	if err != nil {
		return mapError(err, "upsert product", nil)
	}

	stored, err := scanProduct(db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE sku = ?`, p.SKU))
	if err != nil {
		return mapError(err, "reload product", nil)
	}
	*p = *stored
	return nil
}

func (db *DB) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := scanProduct(db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if err != nil {
		return nil, mapError(err, "get product", nil)
	}
	return p, nil
}

func (db *DB) ListProducts(ctx context.Context, activeOnly bool) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY category, name`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err, "list products", nil)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// AdjustStock applies delta and records the movement atomically. Stock never
// goes below zero: such a request fails with ErrInsufficientStock.
func (db *DB) AdjustStock(ctx context.Context, productID int64, delta int, reason, staff string) (*models.Product, error) {
	if delta == 0 {
		return nil, fmt.Errorf("adjust stock: %w: delta must be non-zero", domain.ErrInvalidInput)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError(err, "begin transaction", nil)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := moveStock(ctx, tx, productID, delta, reason, staff); err != nil {
		return nil, err
	}

	p, err := scanProduct(tx.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, productID))
	if err != nil {
		return nil, mapError(err, "reload product", nil)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapError(err, "commit stock adjustment", nil)
	}
	return p, nil
}

// moveStock is the guarded quantity update shared by adjustments and sales.
func moveStock(ctx context.Context, tx *sql.Tx, productID int64, delta int, reason, staff string) error {
	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE products SET quantity = quantity + ?, updated_at = ? WHERE id = ? AND quantity + ? >= 0`,
		delta, now, productID, delta)
	if err != nil {
		return mapError(err, "update stock", nil)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = ?`, productID).Scan(&exists); err != nil {
			return mapError(err, "update stock", nil)
		}
		return fmt.Errorf("product %d: %w", productID, domain.ErrInsufficientStock)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO stock_movements (product_id, delta, reason, staff, created_at) VALUES (?, ?, ?, ?, ?)`,
		productID, delta, reason, nullString(staff), now)
	if err != nil {
		return mapError(err, "record stock movement", nil)
	}
	return nil
}

func (db *DB) ListStockMovements(ctx context.Context, productID int64) ([]*models.StockMovement, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, product_id, delta, reason, staff, created_at FROM stock_movements
		 WHERE product_id = ? ORDER BY created_at, id`, productID)
	if err != nil {
		return nil, mapError(err, "list stock movements", nil)
	}
	defer rows.Close()

	var movements []*models.StockMovement
	for rows.Next() {
		var (
			m     models.StockMovement
			staff sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Delta, &m.Reason, &staff, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		m.Staff = staff.String
		movements = append(movements, &m)
	}
	return movements, rows.Err()
}
