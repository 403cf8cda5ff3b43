package service

import (
	"context"
	"math"
	"time"

	"reservation-service/internal/clock"
	"reservation-service/internal/models"
	"reservation-service/internal/pricing"
	"reservation-service/internal/util"

	"go.uber.org/zap"
)

// amountEpsilon absorbs rounding drift when matching a payment against the
// advance amount: one currency cent.
const amountEpsilon = 0.01

// SettlementService applies the outcome of an external payment attempt to
// exactly one booking or extension
type SettlementService struct {
	repo      Repository
	publisher EventPublisher
	clock     clock.Clock
	holdTTL   time.Duration
	logger    *zap.Logger
}

// NewSettlementService creates a new settlement service. holdTTL is how long
// an advance payment reserves the car before the sweeper reclaims it.
func NewSettlementService(repo Repository, publisher EventPublisher, clk clock.Clock, holdTTL time.Duration) *SettlementService {
	return &SettlementService{
		repo:      repo,
		publisher: publisher,
		clock:     clk,
		holdTTL:   holdTTL,
		logger:    util.GetLogger(),
	}
}

// ReconcileResult reports what a reconciliation call did
type ReconcileResult struct {
	PaymentID     int64  `json:"payment_id"`
	PaymentStatus string `json:"payment_status"`
	BookingID     int64  `json:"booking_id"`
	BookingStatus string `json:"booking_status"`
	Replayed      bool   `json:"replayed"`
}

// Reconcile applies a gateway outcome ("success" or "failure") to a payment.
// Idempotent: a payment that already left PENDING is reported back unchanged,
// so webhook replays and duplicate gateway events are harmless. The whole
// decision executes in one transaction under a payment row lock.
func (s *SettlementService) Reconcile(ctx context.Context, paymentID int64, actor models.Actor, gatewayRef, outcome string) (*ReconcileResult, error) {
	ctx, span := util.StartSpan(ctx, "SettlementService.Reconcile")
	defer span.End()

	if outcome != models.OutcomeSuccess && outcome != models.OutcomeFailure {
		return nil, models.ErrInvalidPaymentOutcome
	}

	now := s.clock.Now()
	var result ReconcileResult
	var events []func(context.Context)

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		payment, err := s.repo.GetPaymentForUpdate(txCtx, paymentID)
		if err != nil {
			return err
		}
		if payment.UserID != actor.UserID && !actor.IsAdmin {
			return models.ErrForbidden
		}

		booking, err := s.repo.GetBookingForUpdate(txCtx, payment.BookingID)
		if err != nil {
			return err
		}

		result = ReconcileResult{
			PaymentID:     payment.ID,
			BookingID:     booking.ID,
			BookingStatus: booking.Status,
		}

		if payment.Status != models.PaymentStatusPending {
			// Already resolved: replayed webhooks succeed without effect
			result.PaymentStatus = payment.Status
			result.Replayed = true
			util.PaymentsReplayedTotal.Inc()
			return nil
		}

		if outcome == models.OutcomeSuccess {
			return s.applySuccess(txCtx, payment, booking, gatewayRef, now, &result, &events)
		}
		return s.applyFailure(txCtx, payment, booking, gatewayRef, now, &result, &events)
	})
	if err != nil {
		return nil, err
	}

	util.PaymentsReconciledTotal.WithLabelValues(outcome).Inc()
	for _, publish := range events {
		publish(ctx)
	}
	return &result, nil
}

func (s *SettlementService) applySuccess(ctx context.Context, payment *models.Payment, booking *models.Booking, gatewayRef string, now time.Time, result *ReconcileResult, events *[]func(context.Context)) error {
	if err := s.repo.SetPaymentStatus(ctx, payment.ID, models.PaymentStatusSuccess, gatewayRef); err != nil {
		return err
	}
	result.PaymentStatus = models.PaymentStatusSuccess

	if payment.ExtensionID != nil {
		// Extension settlement: advance the parent booking's end time.
		// The booking's own status is untouched.
		ext, err := s.repo.GetExtensionByID(ctx, *payment.ExtensionID)
		if err != nil {
			return err
		}
		if err := s.repo.SetExtensionStatus(ctx, ext.ID, models.PaymentStatusSuccess); err != nil {
			return err
		}
		if err := s.repo.SetBookingEnd(ctx, booking.ID, ext.NewEndTime); err != nil {
			return err
		}
		util.ExtensionsAppliedTotal.Inc()
		*events = append(*events, func(c context.Context) {
			event := &models.ExtensionAppliedEvent{
				BaseEvent:   newBaseEvent(models.EventTypeExtensionApplied, now),
				BookingID:   booking.ID,
				ExtensionID: ext.ID,
				NewEndTime:  ext.NewEndTime,
			}
			if err := s.publisher.PublishExtensionApplied(c, event); err != nil {
				s.logger.Error("Failed to publish ExtensionApplied event", zap.Error(err))
			}
		})
		s.logger.Info("Extension settled",
			zap.Int64("booking_id", booking.ID),
			zap.Int64("extension_id", ext.ID),
			zap.Time("new_end", ext.NewEndTime))
		return nil
	}

	// Original booking payment: the advance-vs-full branch is inferred from
	// the amount alone. Matching 10% of the total places the booking on a
	// time-boxed hold; anything else settles it outright.
	advance := pricing.Round2(booking.TotalAmount * pricing.AdvancePct)
	if math.Abs(payment.Amount-advance) <= amountEpsilon {
		if !models.CanTransition(booking.Status, models.BookingStatusHold) {
			return models.ErrInvalidTransition
		}
		expiresAt := now.Add(s.holdTTL)
		if err := s.repo.PlaceBookingOnHold(ctx, booking.ID, expiresAt); err != nil {
			return err
		}
		result.BookingStatus = models.BookingStatusHold
		util.BookingsHeldTotal.Inc()
		*events = append(*events, func(c context.Context) {
			event := &models.BookingHeldEvent{
				BaseEvent:     newBaseEvent(models.EventTypeBookingHeld, now),
				BookingID:     booking.ID,
				PaymentID:     payment.ID,
				HoldExpiresAt: expiresAt,
			}
			if err := s.publisher.PublishBookingHeld(c, event); err != nil {
				s.logger.Error("Failed to publish BookingHeld event", zap.Error(err))
			}
		})
		s.logger.Info("Booking placed on hold",
			zap.Int64("booking_id", booking.ID),
			zap.Time("hold_expires_at", expiresAt))
		return nil
	}

	if !models.CanTransition(booking.Status, models.BookingStatusConfirmed) {
		return models.ErrInvalidTransition
	}
	if err := s.repo.SetBookingStatus(ctx, booking.ID, models.BookingStatusConfirmed); err != nil {
		return err
	}
	result.BookingStatus = models.BookingStatusConfirmed
	util.BookingsConfirmedTotal.Inc()
	*events = append(*events, func(c context.Context) {
		event := &models.BookingConfirmedEvent{
			BaseEvent: newBaseEvent(models.EventTypeBookingConfirmed, now),
			BookingID: booking.ID,
			PaymentID: payment.ID,
			UserID:    booking.UserID,
		}
		if err := s.publisher.PublishBookingConfirmed(c, event); err != nil {
			s.logger.Error("Failed to publish BookingConfirmed event", zap.Error(err))
		}
	})
	s.logger.Info("Booking confirmed", zap.Int64("booking_id", booking.ID))
	return nil
}

func (s *SettlementService) applyFailure(ctx context.Context, payment *models.Payment, booking *models.Booking, gatewayRef string, now time.Time, result *ReconcileResult, events *[]func(context.Context)) error {
	if err := s.repo.SetPaymentStatus(ctx, payment.ID, models.PaymentStatusFailed, gatewayRef); err != nil {
		return err
	}
	result.PaymentStatus = models.PaymentStatusFailed

	if payment.ExtensionID != nil {
		// Failed extension payment leaves the parent booking untouched
		if err := s.repo.SetExtensionStatus(ctx, *payment.ExtensionID, models.PaymentStatusFailed); err != nil {
			return err
		}
		extensionID := *payment.ExtensionID
		*events = append(*events, func(c context.Context) {
			event := &models.ExtensionFailedEvent{
				BaseEvent:   newBaseEvent(models.EventTypeExtensionFailed, now),
				BookingID:   booking.ID,
				ExtensionID: extensionID,
			}
			if err := s.publisher.PublishExtensionFailed(c, event); err != nil {
				s.logger.Error("Failed to publish ExtensionFailed event", zap.Error(err))
			}
		})
		s.logger.Warn("Extension payment failed",
			zap.Int64("booking_id", booking.ID),
			zap.Int64("extension_id", extensionID))
		return nil
	}

	if !models.CanTransition(booking.Status, models.BookingStatusCancelled) {
		return models.ErrInvalidTransition
	}
	if err := s.repo.SetBookingStatus(ctx, booking.ID, models.BookingStatusCancelled); err != nil {
		return err
	}
	result.BookingStatus = models.BookingStatusCancelled
	util.BookingsCancelledTotal.WithLabelValues("payment_failed").Inc()
	*events = append(*events, func(c context.Context) {
		event := &models.BookingCancelledEvent{
			BaseEvent: newBaseEvent(models.EventTypeBookingCancelled, now),
			BookingID: booking.ID,
			Reason:    "payment_failed",
		}
		if err := s.publisher.PublishBookingCancelled(c, event); err != nil {
			s.logger.Error("Failed to publish BookingCancelled event", zap.Error(err))
		}
	})
	s.logger.Warn("Booking cancelled, payment failed", zap.Int64("booking_id", booking.ID))
	return nil
}
