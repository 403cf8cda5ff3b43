package service

import (
	"context"
	"sync"
	"time"

	"reservation-service/internal/models"
)

// fakeRepo is an in-memory Repository. WithTx just runs the closure; the
// tests exercise decision logic, not transaction plumbing.
type fakeRepo struct {
	mu         sync.Mutex
	cars       map[int64]models.Car
	bookings   map[int64]models.Booking
	payments   map[int64]models.Payment
	extensions map[int64]models.BookingExtension
	nextID     int64

	lockedCars []int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		cars:       make(map[int64]models.Car),
		bookings:   make(map[int64]models.Booking),
		payments:   make(map[int64]models.Payment),
		extensions: make(map[int64]models.BookingExtension),
		nextID:     1,
	}
}

func (r *fakeRepo) id() int64 {
	id := r.nextID
	r.nextID++
	return id
}

func (r *fakeRepo) addCar(car models.Car) models.Car {
	r.mu.Lock()
	defer r.mu.Unlock()
	if car.ID == 0 {
		car.ID = r.id()
	}
	r.cars[car.ID] = car
	return car
}

func (r *fakeRepo) addBooking(b models.Booking) models.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == 0 {
		b.ID = r.id()
	}
	r.bookings[b.ID] = b
	return b
}

func (r *fakeRepo) addPayment(p models.Payment) models.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		p.ID = r.id()
	}
	r.payments[p.ID] = p
	return p
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *fakeRepo) GetCarByID(ctx context.Context, id int64) (*models.Car, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	car, ok := r.cars[id]
	if !ok {
		return nil, models.ErrCarNotFound
	}
	return &car, nil
}

func (r *fakeRepo) GetCars(ctx context.Context) ([]models.Car, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Car
	for _, car := range r.cars {
		out = append(out, car)
	}
	return out, nil
}

func (r *fakeRepo) LockCar(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cars[id]; !ok {
		return models.ErrCarNotFound
	}
	r.lockedCars = append(r.lockedCars, id)
	return nil
}

func (r *fakeRepo) InsertBooking(ctx context.Context, b *models.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.IdempotencyKey != nil {
		for _, existing := range r.bookings {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *b.IdempotencyKey {
				return models.ErrIdempotencyKeyConflict
			}
		}
	}
	b.ID = r.id()
	r.bookings[b.ID] = *b
	return nil
}

func (r *fakeRepo) GetBookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, models.ErrBookingNotFound
	}
	return &b, nil
}

func (r *fakeRepo) GetBookingForUpdate(ctx context.Context, id int64) (*models.Booking, error) {
	return r.GetBookingByID(ctx, id)
}

func (r *fakeRepo) FindBookingByIdempotencyKey(ctx context.Context, key string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			found := b
			return &found, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) GetBookingsByUserID(ctx context.Context, userID int64) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Booking
	for _, b := range r.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *fakeRepo) HasOverlap(ctx context.Context, carID int64, start, end time.Time, excludeBookingID int64, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.CarID != carID || b.ID == excludeBookingID {
			continue
		}
		if b.BlocksRange(now) && b.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) SetBookingStatus(ctx context.Context, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return models.ErrBookingNotFound
	}
	b.Status = status
	b.HoldExpiresAt = nil
	r.bookings[id] = b
	return nil
}

func (r *fakeRepo) PlaceBookingOnHold(ctx context.Context, id int64, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return models.ErrBookingNotFound
	}
	b.Status = models.BookingStatusHold
	b.HoldExpiresAt = &expiresAt
	r.bookings[id] = b
	return nil
}

func (r *fakeRepo) SetBookingEnd(ctx context.Context, id int64, newEnd time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return models.ErrBookingNotFound
	}
	b.EndTime = newEnd
	r.bookings[id] = b
	return nil
}

func (r *fakeRepo) InsertPayment(ctx context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.id()
	r.payments[p.ID] = *p
	return nil
}

func (r *fakeRepo) GetPaymentForUpdate(ctx context.Context, id int64) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, models.ErrPaymentNotFound
	}
	return &p, nil
}

func (r *fakeRepo) GetPaymentsByBookingID(ctx context.Context, bookingID int64) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Payment
	for _, p := range r.payments {
		if p.BookingID == bookingID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeRepo) SetPaymentStatus(ctx context.Context, id int64, status, gatewayRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return models.ErrPaymentNotFound
	}
	p.Status = status
	p.GatewayRef = gatewayRef
	r.payments[id] = p
	return nil
}

func (r *fakeRepo) InsertExtension(ctx context.Context, e *models.BookingExtension) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = r.id()
	r.extensions[e.ID] = *e
	return nil
}

func (r *fakeRepo) GetExtensionByID(ctx context.Context, id int64) (*models.BookingExtension, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.extensions[id]
	if !ok {
		return nil, models.ErrBookingNotFound
	}
	return &e, nil
}

func (r *fakeRepo) SetExtensionPaymentID(ctx context.Context, id, paymentID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.extensions[id]
	if !ok {
		return models.ErrBookingNotFound
	}
	e.PaymentID = &paymentID
	r.extensions[id] = e
	return nil
}

func (r *fakeRepo) SetExtensionStatus(ctx context.Context, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.extensions[id]
	if !ok {
		return models.ErrBookingNotFound
	}
	e.PaymentStatus = status
	r.extensions[id] = e
	return nil
}

type fakeCache struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{keys: make(map[string]bool)}
}

func (c *fakeCache) CheckIdempotencyKey(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys[key], nil
}

func (c *fakeCache) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[key] = true
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	created   []*models.BookingCreatedEvent
	held      []*models.BookingHeldEvent
	confirmed []*models.BookingConfirmedEvent
	cancelled []*models.BookingCancelledEvent
	applied   []*models.ExtensionAppliedEvent
	failed    []*models.ExtensionFailedEvent
}

func (p *fakePublisher) PublishBookingCreated(ctx context.Context, e *models.BookingCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
	return nil
}

func (p *fakePublisher) PublishBookingHeld(ctx context.Context, e *models.BookingHeldEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.held = append(p.held, e)
	return nil
}

func (p *fakePublisher) PublishBookingConfirmed(ctx context.Context, e *models.BookingConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, e)
	return nil
}

func (p *fakePublisher) PublishBookingCancelled(ctx context.Context, e *models.BookingCancelledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, e)
	return nil
}

func (p *fakePublisher) PublishExtensionApplied(ctx context.Context, e *models.ExtensionAppliedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applied = append(p.applied, e)
	return nil
}

func (p *fakePublisher) PublishExtensionFailed(ctx context.Context, e *models.ExtensionFailedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, e)
	return nil
}
