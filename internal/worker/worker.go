package worker

import (
	"context"
	"time"

	"reservation-service/internal/broker"
	"reservation-service/internal/clock"
	"reservation-service/internal/models"
	"reservation-service/internal/service"
	"reservation-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HoldRepository is the storage surface the sweeper needs
type HoldRepository interface {
	ExpireHolds(ctx context.Context, now time.Time) (int64, error)
}

// SweepLocker elects one sweeper per tick across replicas
type SweepLocker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// ExpiredPublisher announces completed sweeps
type ExpiredPublisher interface {
	PublishHoldsExpired(ctx context.Context, event *models.HoldsExpiredEvent) error
}

const sweepLockKey = "hold-sweep"

// HoldSweeper periodically cancels bookings whose hold window elapsed
// unsettled. Each run is a single guarded UPDATE, so concurrent runs and
// in-flight reconciliations are safe: a hold settled to CONFIRMED in the
// meantime no longer matches the predicate.
type HoldSweeper struct {
	repo      HoldRepository
	locker    SweepLocker
	publisher ExpiredPublisher
	clock     clock.Clock
	interval  time.Duration
	logger    *zap.Logger
}

// NewHoldSweeper creates a new hold-expiry sweeper
func NewHoldSweeper(repo HoldRepository, locker SweepLocker, publisher ExpiredPublisher, clk clock.Clock, interval time.Duration) *HoldSweeper {
	return &HoldSweeper{
		repo:      repo,
		locker:    locker,
		publisher: publisher,
		clock:     clk,
		interval:  interval,
		logger:    util.GetLogger(),
	}
}

// Start runs the sweep loop until ctx is cancelled. One sweep runs
// immediately so a restart doesn't postpone overdue cancellations by a full
// interval.
func (s *HoldSweeper) Start(ctx context.Context) {
	s.logger.Info("Starting hold sweeper", zap.Duration("interval", s.interval))

	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Hold sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one sweep: cancel every hold whose window has elapsed
func (s *HoldSweeper) Sweep(ctx context.Context) {
	acquired, err := s.locker.AcquireLock(ctx, sweepLockKey, s.interval)
	if err != nil {
		s.logger.Warn("Failed to acquire sweep lock, sweeping anyway", zap.Error(err))
	} else if !acquired {
		return
	} else {
		defer func() {
			if err := s.locker.ReleaseLock(ctx, sweepLockKey); err != nil {
				s.logger.Warn("Failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	now := s.clock.Now()

	count, err := s.repo.ExpireHolds(ctx, now)
	util.SweepDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Error("Hold sweep failed", zap.Error(err))
		return
	}
	if count == 0 {
		return
	}

	util.HoldsExpiredTotal.Add(float64(count))
	util.BookingsCancelledTotal.WithLabelValues("hold_expired").Add(float64(count))
	s.logger.Info("Expired holds cancelled", zap.Int64("count", count))

	event := &models.HoldsExpiredEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeHoldsExpired,
			Timestamp: now,
		},
		Count: count,
	}
	if err := s.publisher.PublishHoldsExpired(ctx, event); err != nil {
		s.logger.Error("Failed to publish HoldsExpired event", zap.Error(err))
	}
}

// PaymentWorker consumes gateway payment outcomes and feeds them to the
// reconciler. The gateway actor is treated as admin; DB-side idempotency
// makes event replays no-ops.
type PaymentWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewPaymentWorker creates a worker applying gateway outcomes via settlement
func NewPaymentWorker(consumer *broker.Consumer, settlement *service.SettlementService) *PaymentWorker {
	eventHandler := broker.NewEventHandler()
	logger := util.GetLogger()

	eventHandler.OnPaymentResolved(func(ctx context.Context, event *models.PaymentResolvedEvent) error {
		result, err := settlement.Reconcile(ctx, event.PaymentID, models.Actor{IsAdmin: true}, event.GatewayRef, event.Outcome)
		if err != nil {
			logger.Error("Failed to reconcile gateway event",
				zap.Int64("payment_id", event.PaymentID),
				zap.Error(err))
			return err
		}
		if result.Replayed {
			logger.Info("Gateway event replay ignored", zap.Int64("payment_id", event.PaymentID))
		}
		return nil
	})

	return &PaymentWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       logger,
	}
}

// Start starts consuming gateway events
func (w *PaymentWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting payment worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *PaymentWorker) Stop() error {
	w.logger.Info("Stopping payment worker")
	return w.consumer.Close()
}
