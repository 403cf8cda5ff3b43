package models

import "time"

// Event types
const (
	EventTypeBookingCreated   = "BOOKING_CREATED"
	EventTypeBookingHeld      = "BOOKING_HELD"
	EventTypeBookingConfirmed = "BOOKING_CONFIRMED"
	EventTypeBookingCancelled = "BOOKING_CANCELLED"
	EventTypeExtensionApplied = "EXTENSION_APPLIED"
	EventTypeExtensionFailed  = "EXTENSION_FAILED"
	EventTypeHoldsExpired     = "HOLDS_EXPIRED"
	EventTypePaymentResolved  = "PAYMENT_RESOLVED"
)

// Payment outcomes reported by the gateway
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingCreatedEvent published when a pending booking is inserted
type BookingCreatedEvent struct {
	BaseEvent
	BookingID   int64     `json:"booking_id"`
	CarID       int64     `json:"car_id"`
	UserID      int64     `json:"user_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	TotalAmount float64   `json:"total_amount"`
	PaymentID   int64     `json:"payment_id"`
}

// BookingHeldEvent published when an advance payment places a booking on hold
type BookingHeldEvent struct {
	BaseEvent
	BookingID     int64     `json:"booking_id"`
	PaymentID     int64     `json:"payment_id"`
	HoldExpiresAt time.Time `json:"hold_expires_at"`
}

// BookingConfirmedEvent published when a booking reaches CONFIRMED
type BookingConfirmedEvent struct {
	BaseEvent
	BookingID int64 `json:"booking_id"`
	PaymentID int64 `json:"payment_id"`
	UserID    int64 `json:"user_id"`
}

// BookingCancelledEvent published when a booking is cancelled
type BookingCancelledEvent struct {
	BaseEvent
	BookingID int64  `json:"booking_id"`
	Reason    string `json:"reason"`
}

// ExtensionAppliedEvent published when an extension settles and the parent
// booking's end time is advanced
type ExtensionAppliedEvent struct {
	BaseEvent
	BookingID   int64     `json:"booking_id"`
	ExtensionID int64     `json:"extension_id"`
	NewEndTime  time.Time `json:"new_end_time"`
}

// ExtensionFailedEvent published when an extension payment fails
type ExtensionFailedEvent struct {
	BaseEvent
	BookingID   int64 `json:"booking_id"`
	ExtensionID int64 `json:"extension_id"`
}

// HoldsExpiredEvent published after a sweep that cancelled at least one hold
type HoldsExpiredEvent struct {
	BaseEvent
	Count int64 `json:"count"`
}

// PaymentResolvedEvent is consumed from the payment gateway topic. Outcome is
// "success" or "failure". Replays are harmless: reconciliation is idempotent.
type PaymentResolvedEvent struct {
	BaseEvent
	PaymentID  int64  `json:"payment_id"`
	GatewayRef string `json:"gateway_ref"`
	Outcome    string `json:"outcome"`
}
