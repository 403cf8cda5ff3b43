package store

import (
	"context"
	"database/sql"
	"fmt"

	"reservation-service/internal/models"
)

// InsertPayment creates a new pending payment row
func (s *Store) InsertPayment(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (booking_id, extension_id, user_id, amount, method, status, gateway_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := s.q(ctx).GetContext(ctx, p, query,
		p.BookingID, p.ExtensionID, p.UserID, p.Amount, p.Method, p.Status, p.GatewayRef)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// GetPaymentByID retrieves a payment by ID
func (s *Store) GetPaymentByID(ctx context.Context, id int64) (*models.Payment, error) {
	var p models.Payment
	err := s.q(ctx).GetContext(ctx, &p, "SELECT * FROM payments WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPaymentForUpdate retrieves a payment under a row lock so that two
// concurrent reconciliations of the same payment serialize.
func (s *Store) GetPaymentForUpdate(ctx context.Context, id int64) (*models.Payment, error) {
	var p models.Payment
	err := s.q(ctx).GetContext(ctx, &p, "SELECT * FROM payments WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPaymentsByBookingID retrieves all payments for a booking
func (s *Store) GetPaymentsByBookingID(ctx context.Context, bookingID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.q(ctx).SelectContext(ctx, &payments,
		"SELECT * FROM payments WHERE booking_id = $1 ORDER BY created_at", bookingID)
	return payments, err
}

// SetPaymentStatus resolves a payment and records the gateway reference
func (s *Store) SetPaymentStatus(ctx context.Context, id int64, status, gatewayRef string) error {
	_, err := s.q(ctx).ExecContext(ctx,
		"UPDATE payments SET status = $1, gateway_ref = $2, updated_at = NOW() WHERE id = $3",
		status, gatewayRef, id)
	return err
}

// InsertExtension creates a new pending booking extension
func (s *Store) InsertExtension(ctx context.Context, e *models.BookingExtension) error {
	query := `
		INSERT INTO booking_extensions (booking_id, user_id, added_hours, new_end_time, price, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := s.q(ctx).GetContext(ctx, e, query,
		e.BookingID, e.UserID, e.AddedHours, e.NewEndTime, e.Price, e.PaymentStatus)
	if err != nil {
		return fmt.Errorf("failed to insert extension: %w", err)
	}
	return nil
}

// GetExtensionByID retrieves an extension by ID
func (s *Store) GetExtensionByID(ctx context.Context, id int64) (*models.BookingExtension, error) {
	var e models.BookingExtension
	err := s.q(ctx).GetContext(ctx, &e, "SELECT * FROM booking_extensions WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("extension not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// SetExtensionPaymentID links the pending payment back onto the extension
func (s *Store) SetExtensionPaymentID(ctx context.Context, id, paymentID int64) error {
	_, err := s.q(ctx).ExecContext(ctx,
		"UPDATE booking_extensions SET payment_id = $1, updated_at = NOW() WHERE id = $2",
		paymentID, id)
	return err
}

// SetExtensionStatus resolves an extension's payment status
func (s *Store) SetExtensionStatus(ctx context.Context, id int64, status string) error {
	_, err := s.q(ctx).ExecContext(ctx,
		"UPDATE booking_extensions SET payment_status = $1, updated_at = NOW() WHERE id = $2",
		status, id)
	return err
}
