package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reservation-service/internal/models"
)

// InsertBooking creates a new booking row and fills in the generated fields
func (s *Store) InsertBooking(ctx context.Context, b *models.Booking) error {
	query := `
		INSERT INTO bookings (car_id, user_id, start_time, end_time, total_amount,
			discount_amount, promo_code, status, hold_expires_at, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err := s.q(ctx).GetContext(ctx, b, query,
		b.CarID, b.UserID, b.StartTime, b.EndTime, b.TotalAmount,
		b.DiscountAmount, b.PromoCode, b.Status, b.HoldExpiresAt, b.IdempotencyKey)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrIdempotencyKeyConflict
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

// GetBookingByID retrieves a booking by ID
func (s *Store) GetBookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	var b models.Booking
	err := s.q(ctx).GetContext(ctx, &b, "SELECT * FROM bookings WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBookingForUpdate retrieves a booking under a row lock
func (s *Store) GetBookingForUpdate(ctx context.Context, id int64) (*models.Booking, error) {
	var b models.Booking
	err := s.q(ctx).GetContext(ctx, &b, "SELECT * FROM bookings WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// FindBookingByIdempotencyKey retrieves a booking by idempotency key; nil when absent
func (s *Store) FindBookingByIdempotencyKey(ctx context.Context, key string) (*models.Booking, error) {
	var b models.Booking
	err := s.q(ctx).GetContext(ctx, &b, "SELECT * FROM bookings WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBookingsByUserID retrieves bookings for a user, newest first
func (s *Store) GetBookingsByUserID(ctx context.Context, userID int64) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.q(ctx).SelectContext(ctx, &bookings,
		"SELECT * FROM bookings WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return bookings, err
}

// HasOverlap reports whether any booking on the car, other than
// excludeBookingID, blocks [start, end) at now. Blocking bookings are
// CONFIRMED ones plus HOLDs whose expiry is still in the future;
// PENDING_PAYMENT, CANCELLED and COMPLETED rows never block.
//
// Must run inside a transaction after LockCar, so the check and the write
// that depends on it are a single linearized step per car.
func (s *Store) HasOverlap(ctx context.Context, carID int64, start, end time.Time, excludeBookingID int64, now time.Time) (bool, error) {
	const query = `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE car_id = $1
			  AND id <> $2
			  AND (status = 'CONFIRMED' OR (status = 'HOLD' AND hold_expires_at > $3))
			  AND start_time < $4
			  AND end_time > $5
		)`

	var overlaps bool
	if err := s.q(ctx).GetContext(ctx, &overlaps, query, carID, excludeBookingID, now, end, start); err != nil {
		return false, fmt.Errorf("failed to check overlap: %w", err)
	}
	return overlaps, nil
}

// SetBookingStatus updates a booking's status and clears any hold expiry
func (s *Store) SetBookingStatus(ctx context.Context, id int64, status string) error {
	_, err := s.q(ctx).ExecContext(ctx,
		"UPDATE bookings SET status = $1, hold_expires_at = NULL, updated_at = NOW() WHERE id = $2",
		status, id)
	return err
}

// PlaceBookingOnHold moves a booking to HOLD with the given expiry
func (s *Store) PlaceBookingOnHold(ctx context.Context, id int64, expiresAt time.Time) error {
	_, err := s.q(ctx).ExecContext(ctx,
		"UPDATE bookings SET status = $1, hold_expires_at = $2, updated_at = NOW() WHERE id = $3",
		models.BookingStatusHold, expiresAt, id)
	return err
}

// SetBookingEnd advances a booking's end time (extension settlement)
func (s *Store) SetBookingEnd(ctx context.Context, id int64, newEnd time.Time) error {
	_, err := s.q(ctx).ExecContext(ctx,
		"UPDATE bookings SET end_time = $1, updated_at = NOW() WHERE id = $2",
		newEnd, id)
	return err
}

// ExpireHolds cancels every booking whose hold window has elapsed at now and
// returns the number of rows affected. The predicate is the whole guard:
// rows concurrently settled to CONFIRMED are simply not matched, so the
// sweep is safe to run concurrently with reconciliations and with itself.
func (s *Store) ExpireHolds(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.q(ctx).ExecContext(ctx,
		"UPDATE bookings SET status = $1, hold_expires_at = NULL, updated_at = NOW() WHERE status = $2 AND hold_expires_at <= $3",
		models.BookingStatusCancelled, models.BookingStatusHold, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire holds: %w", err)
	}
	return res.RowsAffected()
}
