package service

import (
	"context"
	"fmt"
	"time"

	"reservation-service/internal/clock"
	"reservation-service/internal/models"
	"reservation-service/internal/pricing"
	"reservation-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingService handles booking creation and lookup
type BookingService struct {
	repo      Repository
	cache     IdempotencyCache
	publisher EventPublisher
	clock     clock.Clock
	logger    *zap.Logger
}

// NewBookingService creates a new booking service
func NewBookingService(repo Repository, cache IdempotencyCache, publisher EventPublisher, clk clock.Clock) *BookingService {
	return &BookingService{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		clock:     clk,
		logger:    util.GetLogger(),
	}
}

// CreateBookingRequest represents a request to reserve a car
type CreateBookingRequest struct {
	CarID          int64     `json:"car_id" binding:"required"`
	StartTime      time.Time `json:"start_time" binding:"required"`
	EndTime        time.Time `json:"end_time" binding:"required"`
	TotalAmount    float64   `json:"total_amount" binding:"required,gt=0"`
	PaymentAmount  float64   `json:"payment_amount" binding:"required,gt=0"`
	PaymentMethod  string    `json:"payment_method" binding:"required"`
	DiscountAmount float64   `json:"discount_amount,omitempty"`
	PromoCode      *string   `json:"promo_code,omitempty"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
}

// CreateBookingResponse carries the ids of the new booking and its pending payment
type CreateBookingResponse struct {
	BookingID int64  `json:"booking_id"`
	PaymentID int64  `json:"payment_id"`
	Status    string `json:"status"`
}

// CreateBooking reserves a car for the requested window. Inside one
// transaction it locks the car row, re-checks availability and inserts the
// pending booking together with its pending payment, so no partial booking
// is ever visible and two concurrent requests on the same car serialize.
func (s *BookingService) CreateBooking(ctx context.Context, req *CreateBookingRequest, actor models.Actor) (*CreateBookingResponse, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.CreateBooking")
	defer span.End()

	if !req.EndTime.After(req.StartTime) {
		util.BookingsRejectedTotal.WithLabelValues("invalid_range").Inc()
		return nil, models.ErrInvalidRange
	}
	if req.EndTime.Sub(req.StartTime).Hours() < pricing.BillingUnitHours {
		util.BookingsRejectedTotal.WithLabelValues("below_minimum").Inc()
		return nil, models.ErrBelowMinimumDuration
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	} else if seen, err := s.cache.CheckIdempotencyKey(ctx, req.IdempotencyKey); err == nil && seen {
		// Fast path for retries; the unique column below stays authoritative
		if resp, err := s.replayByIdempotencyKey(ctx, req.IdempotencyKey); err == nil && resp != nil {
			return resp, nil
		}
	}

	if existing, err := s.repo.FindBookingByIdempotencyKey(ctx, req.IdempotencyKey); err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	} else if existing != nil {
		s.logger.Info("Duplicate booking request detected",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Int64("booking_id", existing.ID))
		return s.replayResponse(ctx, existing)
	}

	now := s.clock.Now()

	booking := models.Booking{
		CarID:          req.CarID,
		UserID:         actor.UserID,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		TotalAmount:    req.TotalAmount,
		DiscountAmount: req.DiscountAmount,
		PromoCode:      req.PromoCode,
		Status:         models.BookingStatusPendingPayment,
		IdempotencyKey: &req.IdempotencyKey,
	}
	payment := models.Payment{
		UserID: actor.UserID,
		Amount: req.PaymentAmount,
		Method: req.PaymentMethod,
		Status: models.PaymentStatusPending,
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockCar(txCtx, req.CarID); err != nil {
			return err
		}

		overlaps, err := s.repo.HasOverlap(txCtx, req.CarID, req.StartTime, req.EndTime, 0, now)
		if err != nil {
			return err
		}
		if overlaps {
			return models.ErrCarNotAvailable
		}

		if err := s.repo.InsertBooking(txCtx, &booking); err != nil {
			return err
		}
		payment.BookingID = booking.ID
		return s.repo.InsertPayment(txCtx, &payment)
	})
	if err != nil {
		if err == models.ErrCarNotAvailable {
			util.BookingsRejectedTotal.WithLabelValues("conflict").Inc()
			s.logger.Info("Booking rejected, car not available",
				zap.Int64("car_id", req.CarID),
				zap.Time("start", req.StartTime),
				zap.Time("end", req.EndTime))
		}
		return nil, err
	}

	util.BookingsCreatedTotal.Inc()

	if err := s.cache.SetIdempotencyKey(ctx, req.IdempotencyKey, booking.ID, 24*time.Hour); err != nil {
		s.logger.Warn("Failed to cache idempotency key", zap.Error(err))
	}

	event := &models.BookingCreatedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeBookingCreated, now),
		BookingID:   booking.ID,
		CarID:       booking.CarID,
		UserID:      booking.UserID,
		StartTime:   booking.StartTime,
		EndTime:     booking.EndTime,
		TotalAmount: booking.TotalAmount,
		PaymentID:   payment.ID,
	}
	if err := s.publisher.PublishBookingCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish BookingCreated event", zap.Error(err))
	}

	s.logger.Info("Booking created",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("payment_id", payment.ID),
		zap.Int64("car_id", booking.CarID))

	return &CreateBookingResponse{
		BookingID: booking.ID,
		PaymentID: payment.ID,
		Status:    booking.Status,
	}, nil
}

// GetBooking returns a booking with its payments, scoped to the owner or an admin
func (s *BookingService) GetBooking(ctx context.Context, id int64, actor models.Actor) (*models.Booking, []models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.GetBooking")
	defer span.End()

	booking, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if booking.UserID != actor.UserID && !actor.IsAdmin {
		return nil, nil, models.ErrForbidden
	}

	payments, err := s.repo.GetPaymentsByBookingID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return booking, payments, nil
}

// ListBookings returns the caller's bookings, newest first
func (s *BookingService) ListBookings(ctx context.Context, actor models.Actor) ([]models.Booking, error) {
	return s.repo.GetBookingsByUserID(ctx, actor.UserID)
}

// ListCars returns the rentable fleet
func (s *BookingService) ListCars(ctx context.Context) ([]models.Car, error) {
	return s.repo.GetCars(ctx)
}

func (s *BookingService) replayByIdempotencyKey(ctx context.Context, key string) (*CreateBookingResponse, error) {
	existing, err := s.repo.FindBookingByIdempotencyKey(ctx, key)
	if err != nil || existing == nil {
		return nil, err
	}
	return s.replayResponse(ctx, existing)
}

func (s *BookingService) replayResponse(ctx context.Context, booking *models.Booking) (*CreateBookingResponse, error) {
	payments, err := s.repo.GetPaymentsByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	resp := &CreateBookingResponse{BookingID: booking.ID, Status: booking.Status}
	for _, p := range payments {
		if p.ExtensionID == nil {
			resp.PaymentID = p.ID
			break
		}
	}
	return resp, nil
}

func newBaseEvent(eventType string, now time.Time) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: now,
	}
}
