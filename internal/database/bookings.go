package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salon/internal/domain"
	"salon/internal/models"
	"salon/internal/scheduling"
)

const bookingColumns = `id, date, time, duration_minutes, service, client_id, client_name,
	client_phone, home_service, source, created_at`

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b        models.Booking
		clientID sql.NullInt64
		phone    sql.NullString
	)
	err := row.Scan(&b.ID, &b.Date, &b.Time, &b.DurationMinutes, &b.ServiceName, &clientID,
		&b.ClientName, &phone, &b.HomeService, &b.Source, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.ClientID = int64Ptr(clientID)
	b.ClientPhone = phone.String
	return &b, nil
}

// ListBookings returns the day's agenda, blocks included, ordered by start.
func (db *DB) ListBookings(ctx context.Context, date string) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE date = ? ORDER BY time, id`, date)
	if err != nil {
		return nil, mapError(err, "list bookings", nil)
	}
	defer rows.Close()

	return collectBookings(rows)
}

func collectBookings(rows *sql.Rows) ([]*models.Booking, error) {
	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err != nil {
		return nil, mapError(err, "get booking", nil)
	}
	return b, nil
}

// CreateBooking inserts the booking after re-checking, inside the same
// transaction, that it does not overlap anything already on the day.
// A lost race surfaces as ErrBookingConflict.
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	start, err := scheduling.ParseClock(booking.Time)
	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	booking.Time = scheduling.FormatClock(start)
	if booking.DurationMinutes <= 0 {
		return fmt.Errorf("create booking: %w: duration must be positive", domain.ErrInvalidInput)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err, "begin transaction", nil)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE date = ?`, booking.Date)
	if err != nil {
		return mapError(err, "load day bookings", nil)
	}
	existing, err := collectBookings(rows)
	rows.Close()
	if err != nil {
		return err
	}

	busy, err := scheduling.Occupied(existing)
	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	for _, iv := range busy {
		if iv.Overlaps(start, booking.DurationMinutes) {
			return fmt.Errorf("create booking at %s %s: %w", booking.Date, booking.Time, domain.ErrBookingConflict)
		}
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `INSERT INTO bookings (
				date, time, duration_minutes, service, client_id, client_name,
				client_phone, home_service, source, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.Date,
		booking.Time,
		booking.DurationMinutes,
		booking.ServiceName,
		nullInt64(booking.ClientID),
		booking.ClientName,
		nullString(booking.ClientPhone),
		booking.HomeService,
		booking.Source,
		now,
	)
	if err != nil {
		return mapError(err, "create booking", domain.ErrBookingConflict)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return mapError(err, "commit booking", nil)
	}

	booking.ID = id
	booking.CreatedAt = now
	return nil
}

func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return mapError(err, "delete booking", nil)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete booking %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// CountBookings counts client bookings between two dates inclusive; blocks
// are not counted.
func (db *DB) CountBookings(ctx context.Context, fromDate, toDate string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE date >= ? AND date <= ? AND client_name != ?`,
		fromDate, toDate, models.BlockedName).Scan(&count)
	if err != nil {
		return 0, mapError(err, "count bookings", nil)
	}
	return count, nil
}
