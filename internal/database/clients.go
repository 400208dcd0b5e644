package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"salon/internal/domain"
	"salon/internal/models"
)

const clientColumns = `id, name, phone, email, rut, token, visits, hair_service_count,
	discount_available, free_cut_available, last_visit, terms_accepted_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*models.Client, error) {
	var (
		c         models.Client
		email     sql.NullString
		rut       sql.NullString
		lastVisit sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &email, &rut, &c.Token, &c.Visits, &c.HairServiceCount,
		&c.DiscountAvailable, &c.FreeCutAvailable, &lastVisit, &c.TermsAcceptedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Email = email.String
	c.RUT = rut.String
	c.LastVisit = timePtr(lastVisit)
	return &c, nil
}

func (db *DB) getClientWhere(ctx context.Context, op, where string, arg any) (*models.Client, error) {
	row := db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE `+where, arg)
	c, err := scanClient(row)
	if err != nil {
		return nil, mapError(err, op, nil)
	}
	return c, nil
}

func (db *DB) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	return db.getClientWhere(ctx, "get client", "id = ?", id)
}

func (db *DB) GetClientByPhone(ctx context.Context, phone string) (*models.Client, error) {
	return db.getClientWhere(ctx, "get client by phone", "phone = ?", phone)
}

func (db *DB) GetClientByToken(ctx context.Context, token string) (*models.Client, error) {
	return db.getClientWhere(ctx, "get client by token", "token = ?", token)
}

// CreateClient inserts a new member. A repeated phone, RUT or token is
// reported as ErrDuplicateClient.
func (db *DB) CreateClient(ctx context.Context, client *models.Client) error {
	now := time.Now().UTC()
	if client.TermsAcceptedAt.IsZero() {
		client.TermsAcceptedAt = now
	}

	query := `INSERT INTO clients (
				name, phone, email, rut, token, visits, hair_service_count,
				discount_available, free_cut_available, last_visit, terms_accepted_at, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var lastVisit sql.NullTime
	if client.LastVisit != nil {
		lastVisit = sql.NullTime{Time: client.LastVisit.UTC(), Valid: true}
	}

	result, err := db.ExecContext(ctx, query,
		client.Name,
		client.Phone,
		nullString(client.Email),
		nullString(client.RUT),
		client.Token,
		client.Visits,
		client.HairServiceCount,
		client.DiscountAvailable,
		client.FreeCutAvailable,
		lastVisit,
		client.TermsAcceptedAt.UTC(),
		now,
		now,
	)
	if err != nil {
		return mapError(err, "create client", domain.ErrDuplicateClient)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	client.ID = id
	client.CreatedAt = now
	client.UpdatedAt = now
	return nil
}

// UpdateClient writes the set fields unconditionally.
func (db *DB) UpdateClient(ctx context.Context, id int64, fields models.ClientPatch) error {
	return db.UpdateClientIf(ctx, id, models.ClientPatch{}, fields)
}

// UpdateClientIf is a compare-and-set on the client row: fields are written
// only when every column named in guard still holds the guarded value.
func (db *DB) UpdateClientIf(ctx context.Context, id int64, guard, fields models.ClientPatch) error {
	if fields.IsEmpty() {
		return fmt.Errorf("update client: %w: nothing to update", domain.ErrInvalidInput)
	}

	setCols, setArgs := patchColumns(fields)
	sets := make([]string, 0, len(setCols)+1)
	for _, col := range setCols {
		sets = append(sets, col+" = ?")
	}
	sets = append(sets, "updated_at = ?")
	args := append(setArgs, time.Now().UTC(), id)

	where := []string{"id = ?"}
	guardCols, guardArgs := patchColumns(guard)
	for _, col := range guardCols {
		where = append(where, col+" = ?")
	}
	args = append(args, guardArgs...)

	query := `UPDATE clients SET ` + strings.Join(sets, ", ") + ` WHERE ` + strings.Join(where, " AND ")
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err, "update client", domain.ErrDuplicateClient)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists int
	if err := db.QueryRowContext(ctx, `SELECT 1 FROM clients WHERE id = ?`, id).Scan(&exists); err != nil {
		return mapError(err, "update client", nil)
	}
	return fmt.Errorf("update client %d: %w", id, domain.ErrPreconditionFailed)
}

// patchColumns lists the columns set in p in a fixed order with their values.
func patchColumns(p models.ClientPatch) ([]string, []any) {
	var (
		cols []string
		args []any
	)
	if p.Name != nil {
		cols, args = append(cols, "name"), append(args, *p.Name)
	}
	if p.Email != nil {
		cols, args = append(cols, "email"), append(args, nullString(*p.Email))
	}
	if p.Visits != nil {
		cols, args = append(cols, "visits"), append(args, *p.Visits)
	}
	if p.HairServiceCount != nil {
		cols, args = append(cols, "hair_service_count"), append(args, *p.HairServiceCount)
	}
	if p.DiscountAvailable != nil {
		cols, args = append(cols, "discount_available"), append(args, *p.DiscountAvailable)
	}
	if p.FreeCutAvailable != nil {
		cols, args = append(cols, "free_cut_available"), append(args, *p.FreeCutAvailable)
	}
	if p.LastVisit != nil {
		cols, args = append(cols, "last_visit"), append(args, p.LastVisit.UTC())
	}
	return cols, args
}

// ListClients returns members ordered by name. An empty search lists everyone.
func (db *DB) ListClients(ctx context.Context, search string, limit int) ([]*models.Client, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + clientColumns + ` FROM clients`
	var args []any
	if s := strings.TrimSpace(search); s != "" {
		like := "%" + s + "%"
		query += ` WHERE name LIKE ? OR phone LIKE ? OR rut LIKE ? OR email LIKE ?`
		args = append(args, like, like, like, like)
	}
	query += ` ORDER BY name COLLATE NOCASE, id LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "list clients", nil)
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// DeleteClient removes a member together with its visit logs and
// transactions. Bookings keep their denormalized name and lose the link.
func (db *DB) DeleteClient(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return mapError(err, "delete client", nil)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete client %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
