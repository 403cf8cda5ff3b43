package service

import (
	"context"
	"time"

	"reservation-service/internal/models"
)

// Repository is the storage surface the reservation engine needs. WithTx runs
// the closure inside one transaction; every repository call made with the
// closure's context joins that transaction. *store.Store satisfies this.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetCarByID(ctx context.Context, id int64) (*models.Car, error)
	GetCars(ctx context.Context) ([]models.Car, error)
	LockCar(ctx context.Context, id int64) error

	InsertBooking(ctx context.Context, b *models.Booking) error
	GetBookingByID(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingForUpdate(ctx context.Context, id int64) (*models.Booking, error)
	FindBookingByIdempotencyKey(ctx context.Context, key string) (*models.Booking, error)
	GetBookingsByUserID(ctx context.Context, userID int64) ([]models.Booking, error)
	HasOverlap(ctx context.Context, carID int64, start, end time.Time, excludeBookingID int64, now time.Time) (bool, error)
	SetBookingStatus(ctx context.Context, id int64, status string) error
	PlaceBookingOnHold(ctx context.Context, id int64, expiresAt time.Time) error
	SetBookingEnd(ctx context.Context, id int64, newEnd time.Time) error

	InsertPayment(ctx context.Context, p *models.Payment) error
	GetPaymentForUpdate(ctx context.Context, id int64) (*models.Payment, error)
	GetPaymentsByBookingID(ctx context.Context, bookingID int64) ([]models.Payment, error)
	SetPaymentStatus(ctx context.Context, id int64, status, gatewayRef string) error

	InsertExtension(ctx context.Context, e *models.BookingExtension) error
	GetExtensionByID(ctx context.Context, id int64) (*models.BookingExtension, error)
	SetExtensionPaymentID(ctx context.Context, id, paymentID int64) error
	SetExtensionStatus(ctx context.Context, id int64, status string) error
}

// IdempotencyCache is the fast-path duplicate-request check backed by Redis.
// Only an optimization: the bookings.idempotency_key unique column is the
// authoritative guard. *redisclient.Client satisfies this.
type IdempotencyCache interface {
	CheckIdempotencyKey(ctx context.Context, key string) (bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// EventPublisher publishes booking lifecycle events. Publish failures are
// logged, never surfaced to callers: the transaction has already committed.
// *broker.EventPublisher satisfies this.
type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, event *models.BookingCreatedEvent) error
	PublishBookingHeld(ctx context.Context, event *models.BookingHeldEvent) error
	PublishBookingConfirmed(ctx context.Context, event *models.BookingConfirmedEvent) error
	PublishBookingCancelled(ctx context.Context, event *models.BookingCancelledEvent) error
	PublishExtensionApplied(ctx context.Context, event *models.ExtensionAppliedEvent) error
	PublishExtensionFailed(ctx context.Context, event *models.ExtensionFailedEvent) error
}
