package models

import "time"

// Car represents a rentable vehicle
type Car struct {
	ID        int64     `db:"id" json:"id"`
	Plate     string    `db:"plate" json:"plate"`
	Model     string    `db:"model" json:"model"`
	DailyRate float64   `db:"daily_rate" json:"daily_rate"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Booking represents a reservation of a car for a time interval.
// The interval is half-open: [StartTime, EndTime).
type Booking struct {
	ID             int64      `db:"id" json:"id"`
	CarID          int64      `db:"car_id" json:"car_id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	StartTime      time.Time  `db:"start_time" json:"start_time"`
	EndTime        time.Time  `db:"end_time" json:"end_time"`
	TotalAmount    float64    `db:"total_amount" json:"total_amount"`
	DiscountAmount float64    `db:"discount_amount" json:"discount_amount"`
	PromoCode      *string    `db:"promo_code" json:"promo_code,omitempty"`
	Status         string     `db:"status" json:"status"`
	HoldExpiresAt  *time.Time `db:"hold_expires_at" json:"hold_expires_at,omitempty"`
	IdempotencyKey *string    `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Payment represents one attempt to pay for a booking or an extension
type Payment struct {
	ID          int64     `db:"id" json:"id"`
	BookingID   int64     `db:"booking_id" json:"booking_id"`
	ExtensionID *int64    `db:"extension_id" json:"extension_id,omitempty"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Amount      float64   `db:"amount" json:"amount"`
	Method      string    `db:"method" json:"method"`
	Status      string    `db:"status" json:"status"`
	GatewayRef  string    `db:"gateway_ref" json:"gateway_ref,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// BookingExtension represents a request to push a confirmed booking's end later
type BookingExtension struct {
	ID            int64     `db:"id" json:"id"`
	BookingID     int64     `db:"booking_id" json:"booking_id"`
	UserID        int64     `db:"user_id" json:"user_id"`
	AddedHours    int       `db:"added_hours" json:"added_hours"`
	NewEndTime    time.Time `db:"new_end_time" json:"new_end_time"`
	Price         float64   `db:"price" json:"price"`
	PaymentStatus string    `db:"payment_status" json:"payment_status"`
	PaymentID     *int64    `db:"payment_id" json:"payment_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// PromoSnapshot is a validated promo supplied by the promo collaborator.
// At most one of Percent/Flat is meaningful; Flat wins when both are set.
type PromoSnapshot struct {
	Code    string  `json:"code"`
	Percent float64 `json:"percent,omitempty"`
	Flat    float64 `json:"flat,omitempty"`
}

// Actor identifies the caller of an operation
type Actor struct {
	UserID  int64
	IsAdmin bool
}

// Booking statuses
const (
	BookingStatusPendingPayment = "PENDING_PAYMENT"
	BookingStatusHold           = "HOLD"
	BookingStatusConfirmed      = "CONFIRMED"
	BookingStatusCancelled      = "CANCELLED"
	BookingStatusCompleted      = "COMPLETED"
)

// Payment and extension statuses
const (
	PaymentStatusPending = "PENDING"
	PaymentStatusSuccess = "SUCCESS"
	PaymentStatusFailed  = "FAILED"
)

// bookingTransitions is the closed set of legal status transitions.
// Terminal statuses (CANCELLED, COMPLETED) have no outgoing edges.
var bookingTransitions = map[string][]string{
	BookingStatusPendingPayment: {BookingStatusHold, BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusHold:           {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed:      {BookingStatusCompleted},
	BookingStatusCancelled:      {},
	BookingStatusCompleted:      {},
}

// CanTransition reports whether a booking may move from one status to another.
// Every status write in the engine is gated by this table.
func CanTransition(from, to string) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// HoldLive reports whether a hold booking still blocks its time range at now.
// Evaluated fresh on every read, never cached.
func (b *Booking) HoldLive(now time.Time) bool {
	return b.Status == BookingStatusHold && b.HoldExpiresAt != nil && b.HoldExpiresAt.After(now)
}

// BlocksRange reports whether the booking participates in the disjointness
// invariant at now: confirmed, or a hold whose expiry has not passed.
func (b *Booking) BlocksRange(now time.Time) bool {
	return b.Status == BookingStatusConfirmed || b.HoldLive(now)
}

// Overlaps applies the half-open interval intersection test against [start, end)
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && b.EndTime.After(start)
}
