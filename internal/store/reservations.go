package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/maitredhq/maitred/internal/models"
	"github.com/maitredhq/maitred/internal/schedule"
)

var ErrNotFound = errors.New("reservation not found")

// ConflictError is returned when a write would double-book a table: another
// live reservation occupies it within the meal's turn+buffer block.
type ConflictError struct {
	TableID int64
	Date    string
	Time    string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("table %d is already booked around %s %s", e.TableID, e.Date, e.Time)
}

const reservationColumns = `id, ref, status, date, time, party, meal, table_id, room_id,
	first_name, last_name, email, phone, notes, allergies`

func scanReservation(scanner interface{ Scan(...any) error }) (models.Reservation, error) {
	var r models.Reservation
	var tableID, roomID sql.NullInt64
	err := scanner.Scan(
		&r.ID, &r.Ref, &r.Status, &r.Date, &r.Time, &r.Party, &r.Meal,
		&tableID, &roomID,
		&r.Customer.FirstName, &r.Customer.LastName, &r.Customer.Email, &r.Customer.Phone,
		&r.Notes, &r.Allergies,
	)
	if err != nil {
		return models.Reservation{}, err
	}
	if tableID.Valid {
		r.TableID = &tableID.Int64
	}
	if roomID.Valid {
		r.RoomID = &roomID.Int64
	}
	return r, nil
}

// Reservation loads one reservation by ID.
func (s *Store) Reservation(ctx context.Context, id int64) (models.Reservation, error) {
	row := s.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Reservation{}, ErrNotFound
	}
	if err != nil {
		return models.Reservation{}, fmt.Errorf("load reservation %d: %w", id, err)
	}
	return r, nil
}

// ReservationsByDate lists a day's reservations ordered by time.
func (s *Store) ReservationsByDate(ctx context.Context, date string) ([]models.Reservation, error) {
	return s.listReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE date = ? ORDER BY time, id`, date)
}

// ReservationsBetween lists reservations with from <= date <= to, ordered by
// date then time.
func (s *Store) ReservationsBetween(ctx context.Context, from, to string) ([]models.Reservation, error) {
	return s.listReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE date >= ? AND date <= ? ORDER BY date, time, id`,
		from, to)
}

func (s *Store) listReservations(ctx context.Context, query string, args ...any) ([]models.Reservation, error) {
	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var result []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

type CreateParams struct {
	Date      string
	Time      string
	Party     int
	Meal      string
	Status    string
	TableID   *int64
	RoomID    *int64
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Notes     string
	Allergies string

	// BlockMinutes is the turn+buffer occupancy used for the table conflict
	// check. Zero skips the check (no table-level spacing configured).
	BlockMinutes int
}

type MoveParams struct {
	Date         string
	Time         string
	TableID      *int64
	RoomID       *int64
	BlockMinutes int
}

// CreateReservation inserts a new reservation after verifying the target
// table is free for the meal's occupancy block.
func (s *Store) CreateReservation(ctx context.Context, p CreateParams) (models.Reservation, error) {
	if p.Status == "" {
		p.Status = models.StatusConfirmed
	}

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return models.Reservation{}, fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback()

	if err := checkTableFree(ctx, tx, p.TableID, p.Date, p.Time, p.BlockMinutes, 0); err != nil {
		return models.Reservation{}, err
	}

	ref := uuid.New().String()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO reservations
			(ref, status, date, time, party, meal, table_id, room_id,
			 first_name, last_name, email, phone, notes, allergies)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ref, p.Status, p.Date, p.Time, p.Party, p.Meal,
		nullableID(p.TableID), nullableID(p.RoomID),
		p.FirstName, p.LastName, p.Email, p.Phone, p.Notes, p.Allergies,
	)
	if err != nil {
		return models.Reservation{}, fmt.Errorf("insert reservation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return models.Reservation{}, fmt.Errorf("reservation id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Reservation{}, fmt.Errorf("commit create: %w", err)
	}

	return s.Reservation(ctx, id)
}

// MoveReservation reassigns an existing reservation to a new date, time,
// table and room. The conflict check excludes the reservation itself.
func (s *Store) MoveReservation(ctx context.Context, id int64, p MoveParams) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin move: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM reservations WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load reservation %d: %w", id, err)
	}

	if models.CountsTowardCapacity(status) {
		if err := checkTableFree(ctx, tx, p.TableID, p.Date, p.Time, p.BlockMinutes, id); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE reservations
		 SET date = ?, time = ?, table_id = ?, room_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		p.Date, p.Time, nullableID(p.TableID), nullableID(p.RoomID), id,
	)
	if err != nil {
		return fmt.Errorf("move reservation %d: %w", id, err)
	}
	return tx.Commit()
}

// ArchivePastReservations marks confirmed/seated reservations on dates before
// the cutoff as completed. Used by the nightly maintenance job.
func (s *Store) ArchivePastReservations(ctx context.Context, before string) (int64, error) {
	result, err := s.ExecContext(ctx,
		`UPDATE reservations
		 SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE date < ? AND status IN (?, ?, ?)`,
		models.StatusCompleted, before,
		models.StatusPending, models.StatusConfirmed, models.StatusSeated,
	)
	if err != nil {
		return 0, fmt.Errorf("archive reservations: %w", err)
	}
	return result.RowsAffected()
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// checkTableFree verifies no live reservation occupies the table within
// blockMinutes of the requested time. The store is the sole arbiter here;
// clients always reconcile via reload.
func checkTableFree(ctx context.Context, tx *sql.Tx, tableID *int64, date, timeOfDay string, blockMinutes int, excludeID int64) error {
	if tableID == nil || blockMinutes <= 0 {
		return nil
	}
	target, err := schedule.ParseClock(timeOfDay)
	if err != nil {
		return fmt.Errorf("invalid time %q: %w", timeOfDay, err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, time, status FROM reservations WHERE table_id = ? AND date = ?`,
		*tableID, date)
	if err != nil {
		return fmt.Errorf("conflict check: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var otherID int64
		var otherTime, otherStatus string
		if err := rows.Scan(&otherID, &otherTime, &otherStatus); err != nil {
			return fmt.Errorf("conflict check scan: %w", err)
		}
		if otherID == excludeID || !models.CountsTowardCapacity(otherStatus) {
			continue
		}
		other, err := schedule.ParseClock(otherTime)
		if err != nil {
			continue
		}
		delta := int(target - other)
		if delta < 0 {
			delta = -delta
		}
		if delta < blockMinutes {
			return ConflictError{TableID: *tableID, Date: date, Time: timeOfDay}
		}
	}
	return rows.Err()
}
