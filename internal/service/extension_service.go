package service

import (
	"context"
	"time"

	"reservation-service/internal/clock"
	"reservation-service/internal/models"
	"reservation-service/internal/pricing"
	"reservation-service/internal/util"

	"go.uber.org/zap"
)

// ExtensionService atomically adds a priced extension to a confirmed booking
type ExtensionService struct {
	repo   Repository
	clock  clock.Clock
	logger *zap.Logger
}

// NewExtensionService creates a new extension service
func NewExtensionService(repo Repository, clk clock.Clock) *ExtensionService {
	return &ExtensionService{
		repo:   repo,
		clock:  clk,
		logger: util.GetLogger(),
	}
}

// CreateExtensionRequest represents a request to push a booking's end later
type CreateExtensionRequest struct {
	AddedHours int `json:"added_hours" binding:"required"`
}

// CreateExtensionResponse carries the ids of the new extension and its pending payment
type CreateExtensionResponse struct {
	ExtensionID int64     `json:"extension_id"`
	PaymentID   int64     `json:"payment_id"`
	NewEndTime  time.Time `json:"new_end_time"`
	Price       float64   `json:"price"`
}

// CreateExtension extends a confirmed booking by addedHours (a positive
// multiple of 12). The extension window [current end, new end) is re-checked
// against other active bookings of the car under the same car lock that
// guards booking creation; settlement then proceeds through the reconciler.
func (s *ExtensionService) CreateExtension(ctx context.Context, bookingID int64, addedHours int, actor models.Actor) (*CreateExtensionResponse, error) {
	ctx, span := util.StartSpan(ctx, "ExtensionService.CreateExtension")
	defer span.End()

	if addedHours <= 0 || addedHours%pricing.BillingUnitHours != 0 {
		return nil, models.ErrInvalidExtensionHours
	}

	now := s.clock.Now()
	var resp CreateExtensionResponse

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		booking, err := s.repo.GetBookingForUpdate(txCtx, bookingID)
		if err != nil {
			return err
		}
		if booking.UserID != actor.UserID && !actor.IsAdmin {
			return models.ErrForbidden
		}
		if booking.Status != models.BookingStatusConfirmed {
			return models.ErrNotExtendable
		}
		if !booking.EndTime.After(now) {
			return models.ErrBookingEnded
		}

		newEnd := booking.EndTime.Add(time.Duration(addedHours) * time.Hour)

		if err := s.repo.LockCar(txCtx, booking.CarID); err != nil {
			return err
		}
		overlaps, err := s.repo.HasOverlap(txCtx, booking.CarID, booking.EndTime, newEnd, booking.ID, now)
		if err != nil {
			return err
		}
		if overlaps {
			return models.ErrCarNotAvailable
		}

		car, err := s.repo.GetCarByID(txCtx, booking.CarID)
		if err != nil {
			return err
		}
		price := pricing.ExtensionPrice(car.DailyRate, addedHours)

		ext := models.BookingExtension{
			BookingID:     booking.ID,
			UserID:        booking.UserID,
			AddedHours:    addedHours,
			NewEndTime:    newEnd,
			Price:         price,
			PaymentStatus: models.PaymentStatusPending,
		}
		if err := s.repo.InsertExtension(txCtx, &ext); err != nil {
			return err
		}

		payment := models.Payment{
			BookingID:   booking.ID,
			ExtensionID: &ext.ID,
			UserID:      booking.UserID,
			Amount:      price,
			Status:      models.PaymentStatusPending,
		}
		if err := s.repo.InsertPayment(txCtx, &payment); err != nil {
			return err
		}
		if err := s.repo.SetExtensionPaymentID(txCtx, ext.ID, payment.ID); err != nil {
			return err
		}

		resp = CreateExtensionResponse{
			ExtensionID: ext.ID,
			PaymentID:   payment.ID,
			NewEndTime:  newEnd,
			Price:       price,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.ExtensionsCreatedTotal.Inc()
	s.logger.Info("Extension created",
		zap.Int64("booking_id", bookingID),
		zap.Int64("extension_id", resp.ExtensionID),
		zap.Int("added_hours", addedHours))

	return &resp, nil
}
