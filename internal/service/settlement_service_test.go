package service

import (
	"context"
	"testing"
	"time"

	"reservation-service/internal/clock"
	"reservation-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHoldTTL = 24 * time.Hour

func newSettlementFixture() (*SettlementService, *fakeRepo, *fakePublisher) {
	repo := newFakeRepo()
	pub := &fakePublisher{}
	svc := NewSettlementService(repo, pub, clock.NewFixed(testNow), testHoldTTL)
	return svc, repo, pub
}

// seedPendingBooking creates a pending booking with total 1575 and one
// pending payment of the given amount, returning both ids.
func seedPendingBooking(repo *fakeRepo, amount float64) (int64, int64) {
	booking := repo.addBooking(models.Booking{
		CarID:       1,
		UserID:      7,
		StartTime:   testNow.Add(24 * time.Hour),
		EndTime:     testNow.Add(48 * time.Hour),
		TotalAmount: 1575,
		Status:      models.BookingStatusPendingPayment,
	})
	payment := repo.addPayment(models.Payment{
		BookingID: booking.ID,
		UserID:    7,
		Amount:    amount,
		Status:    models.PaymentStatusPending,
	})
	return booking.ID, payment.ID
}

func TestReconcileAdvanceSuccessPlacesHold(t *testing.T) {
	svc, repo, pub := newSettlementFixture()
	bookingID, paymentID := seedPendingBooking(repo, 157.50)

	res, err := svc.Reconcile(context.Background(), paymentID, models.Actor{UserID: 7}, "gw-1", models.OutcomeSuccess)
	require.NoError(t, err)

	assert.False(t, res.Replayed)
	assert.Equal(t, models.PaymentStatusSuccess, res.PaymentStatus)
	assert.Equal(t, models.BookingStatusHold, res.BookingStatus)

	booking, err := repo.GetBookingByID(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusHold, booking.Status)
	require.NotNil(t, booking.HoldExpiresAt)
	assert.Equal(t, testNow.Add(testHoldTTL), *booking.HoldExpiresAt)

	payment, err := repo.GetPaymentForUpdate(context.Background(), paymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSuccess, payment.Status)
	assert.Equal(t, "gw-1", payment.GatewayRef)

	require.Len(t, pub.held, 1)
	assert.Equal(t, bookingID, pub.held[0].BookingID)
	assert.Empty(t, pub.confirmed)
}

func TestReconcileAdvanceWithinEpsilonPlacesHold(t *testing.T) {
	svc, repo, _ := newSettlementFixture()
	_, paymentID := seedPendingBooking(repo, 157.51)

	res, err := svc.Reconcile(context.Background(), paymentID, models.Actor{UserID: 7}, "gw-1", models.OutcomeSuccess)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusHold, res.BookingStatus)
}

func TestReconcileFullAmountConfirms(t *testing.T) {
	svc, repo, pub := newSettlementFixture()
	bookingID, paymentID := seedPendingBooking(repo, 1575)

	res, err := svc.Reconcile(context.Background(), paymentID, models.Actor{UserID: 7}, "gw-2", models.OutcomeSuccess)
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusConfirmed, res.BookingStatus)

	booking, err := repo.GetBookingByID(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
	assert.Nil(t, booking.HoldExpiresAt)

	require.Len(t, pub.confirmed, 1)
	assert.Empty(t, pub.held)
}

func TestReconcileFailureCancelsBooking(t *testing.T) {
	svc, repo, pub := newSettlementFixture()
	bookingID, paymentID := seedPendingBooking(repo, 157.50)

	res, err := svc.Reconcile(context.Background(), paymentID, models.Actor{UserID: 7}, "gw-3", models.OutcomeFailure)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusFailed, res.PaymentStatus)
	assert.Equal(t, models.BookingStatusCancelled, res.BookingStatus)

	booking, err := repo.GetBookingByID(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, booking.Status)

	require.Len(t, pub.cancelled, 1)
	assert.Equal(t, "payment_failed", pub.cancelled[0].Reason)
}

func TestReconcileIdempotentReplay(t *testing.T) {
	svc, repo, pub := newSettlementFixture()
	bookingID, paymentID := seedPendingBooking(repo, 157.50)

	first, err := svc.Reconcile(context.Background(), paymentID, models.Actor{UserID: 7}, "gw-1", models.OutcomeSuccess)
	require.NoError(t, err)
	require.False(t, first.Replayed)

	booking, err := repo.GetBookingByID(context.Background(), bookingID)
	require.NoError(t, err)
	firstExpiry := *booking.HoldExpiresAt

	// Replaying the webhook, even with a contradictory outcome, changes nothing
	second, err := svc.Reconcile(context.Background(), paymentID, models.Actor{UserID: 7}, "gw-1", models.OutcomeFailure)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, models.PaymentStatusSuccess, second.PaymentStatus)

	booking, err = repo.GetBookingByID(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusHold, booking.Status)
	assert.Equal(t, firstExpiry, *booking.HoldExpiresAt)

	assert.Len(t, pub.held, 1)
	assert.Empty(t, pub.cancelled)
}

func TestReconcileInvalidOutcome(t *testing.T) {
	svc, repo, _ := newSettlementFixture()
	_, paymentID := seedPendingBooking(repo, 157.50)

	_, err := svc.Reconcile(context.Background(), paymentID, models.Actor{UserID: 7}, "gw-1", "declined")
	assert.ErrorIs(t, err, models.ErrInvalidPaymentOutcome)
}

func TestReconcileForbidden(t *testing.T) {
	svc, repo, _ := newSettlementFixture()
	_, paymentID := seedPendingBooking(repo, 157.50)

	_, err := svc.Reconcile(context.Background(), paymentID, models.Actor{UserID: 8}, "gw-1", models.OutcomeSuccess)
	assert.ErrorIs(t, err, models.ErrForbidden)

	// Admins may reconcile on behalf of anyone
	_, err = svc.Reconcile(context.Background(), paymentID, models.Actor{UserID: 8, IsAdmin: true}, "gw-1", models.OutcomeSuccess)
	assert.NoError(t, err)
}

func TestReconcilePaymentNotFound(t *testing.T) {
	svc, _, _ := newSettlementFixture()

	_, err := svc.Reconcile(context.Background(), 42, models.Actor{UserID: 7}, "gw-1", models.OutcomeSuccess)
	assert.ErrorIs(t, err, models.ErrPaymentNotFound)
}

func seedExtension(repo *fakeRepo, bookingStatus string) (bookingID, extensionID, paymentID int64) {
	booking := repo.addBooking(models.Booking{
		CarID:       1,
		UserID:      7,
		StartTime:   testNow.Add(-24 * time.Hour),
		EndTime:     testNow.Add(24 * time.Hour),
		TotalAmount: 2100,
		Status:      bookingStatus,
	})

	ext := models.BookingExtension{
		BookingID:     booking.ID,
		UserID:        7,
		AddedHours:    12,
		NewEndTime:    booking.EndTime.Add(12 * time.Hour),
		Price:         500,
		PaymentStatus: models.PaymentStatusPending,
	}
	repo.InsertExtension(context.Background(), &ext)

	payment := repo.addPayment(models.Payment{
		BookingID:   booking.ID,
		ExtensionID: &ext.ID,
		UserID:      7,
		Amount:      500,
		Status:      models.PaymentStatusPending,
	})
	repo.SetExtensionPaymentID(context.Background(), ext.ID, payment.ID)
	return booking.ID, ext.ID, payment.ID
}

func TestReconcileExtensionSuccessAdvancesEnd(t *testing.T) {
	svc, repo, pub := newSettlementFixture()
	bookingID, extensionID, paymentID := seedExtension(repo, models.BookingStatusConfirmed)

	res, err := svc.Reconcile(context.Background(), paymentID, models.Actor{UserID: 7}, "gw-e1", models.OutcomeSuccess)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSuccess, res.PaymentStatus)

	// End time moved, status untouched
	booking, err := repo.GetBookingByID(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(36*time.Hour), booking.EndTime)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)

	ext, err := repo.GetExtensionByID(context.Background(), extensionID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSuccess, ext.PaymentStatus)

	require.Len(t, pub.applied, 1)
	assert.Equal(t, booking.EndTime, pub.applied[0].NewEndTime)
	assert.Empty(t, pub.held)
	assert.Empty(t, pub.confirmed)
}

func TestReconcileExtensionFailureLeavesBooking(t *testing.T) {
	svc, repo, pub := newSettlementFixture()
	bookingID, extensionID, paymentID := seedExtension(repo, models.BookingStatusConfirmed)

	res, err := svc.Reconcile(context.Background(), paymentID, models.Actor{UserID: 7}, "gw-e2", models.OutcomeFailure)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, res.PaymentStatus)

	booking, err := repo.GetBookingByID(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, testNow.Add(24*time.Hour), booking.EndTime)

	ext, err := repo.GetExtensionByID(context.Background(), extensionID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, ext.PaymentStatus)

	require.Len(t, pub.failed, 1)
	assert.Empty(t, pub.cancelled)
}
