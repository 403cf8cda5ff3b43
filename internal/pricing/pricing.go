package pricing

import (
	"math"
	"time"

	"reservation-service/internal/models"
)

// Billing granularity: a 12-hour block is one unit, two units make a day.
const (
	BillingUnitHours = 12
	ServiceChargePct = 0.05
	AdvancePct       = 0.10
)

// Extra is an optional add-on billed per day alongside the car
type Extra struct {
	Name        string  `json:"name"`
	PricePerDay float64 `json:"price_per_day"`
}

// Breakdown contains the full price decomposition for a rental window
type Breakdown struct {
	Hours         float64 `json:"hours"`
	BillingUnits  int     `json:"billing_units"`
	BillingDays   float64 `json:"billing_days"`
	BaseAmount    float64 `json:"base_amount"`
	ExtrasAmount  float64 `json:"extras_amount"`
	Subtotal      float64 `json:"subtotal"`
	Discount      float64 `json:"discount"`
	ServiceCharge float64 `json:"service_charge"`
	GrandTotal    float64 `json:"grand_total"`
	AdvanceAmount float64 `json:"advance_amount"`
}

// Quote computes the price breakdown for renting a car at dailyRate over
// [start, end). Pure: identical inputs produce identical outputs.
//
// Any partial 12-hour block rounds up to the next half-day charge. Durations
// under 12 hours are rejected.
func Quote(start, end time.Time, dailyRate float64, extras []Extra, promo *models.PromoSnapshot) (Breakdown, error) {
	if !end.After(start) {
		return Breakdown{}, models.ErrInvalidRange
	}

	hours := end.Sub(start).Hours()
	if hours < BillingUnitHours {
		return Breakdown{}, models.ErrBelowMinimumDuration
	}

	units := int(math.Ceil(hours / BillingUnitHours))
	days := float64(units) / 2

	base := dailyRate * days

	var extrasTotal float64
	for _, e := range extras {
		extrasTotal += e.PricePerDay * days
	}

	subtotal := base + extrasTotal

	var discount float64
	if promo != nil {
		if promo.Flat > 0 {
			discount = promo.Flat
		} else if promo.Percent > 0 {
			discount = subtotal * promo.Percent / 100
		}
		// A discount never exceeds what is being discounted
		if discount > subtotal {
			discount = subtotal
		}
	}

	postDiscount := subtotal - discount
	serviceCharge := postDiscount * ServiceChargePct
	grandTotal := postDiscount + serviceCharge

	b := Breakdown{
		Hours:         hours,
		BillingUnits:  units,
		BillingDays:   days,
		BaseAmount:    Round2(base),
		ExtrasAmount:  Round2(extrasTotal),
		Subtotal:      Round2(subtotal),
		Discount:      Round2(discount),
		ServiceCharge: Round2(serviceCharge),
		GrandTotal:    Round2(grandTotal),
		AdvanceAmount: Round2(grandTotal * AdvancePct),
	}
	return b, nil
}

// ExtensionPrice computes the standalone linear charge for extending a booking
// by addedHours at the car's daily rate. No discount, no service charge.
func ExtensionPrice(dailyRate float64, addedHours int) float64 {
	return Round2(dailyRate * float64(addedHours) / 24)
}

// Round2 rounds to 2 decimals, half up
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
