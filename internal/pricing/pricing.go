// Package pricing computes seat base prices and booking quotes.
package pricing

import (
	"fmt"
	"time"
)

const (
	// DistanceBlockKm is the trip length covered by one price unit. Every
	// started block raises the price by one unit.
	DistanceBlockKm = 80

	// DiscountWindow is how close to departure a booking gets the discount.
	DiscountWindow = 60 * time.Minute

	// DiscountMultiplier applies inside DiscountWindow.
	DiscountMultiplier = 0.9

	discountPercent = 90
)

const (
	lastRowEdge   = 105
	lastRowInner  = 100
	otherRowEdge  = 150
	otherRowInner = 120
)

// DistanceMultiplier returns ceil(distanceKm / DistanceBlockKm). Non-positive
// distances yield zero.
func DistanceMultiplier(distanceKm int) int {
	if distanceKm <= 0 {
		return 0
	}
	return (distanceKm + DistanceBlockKm - 1) / DistanceBlockKm
}

// BasePrice returns the price of the seat at zero-based (row, col) on a bus of
// totalRows x totalCols for a trip of distanceKm.
func BasePrice(row, col, totalRows, totalCols, distanceKm int) int {
	lastRow := row == totalRows-1
	edge := col == 0 || col == totalCols-1

	var unit int
	switch {
	case lastRow && edge:
		unit = lastRowEdge
	case lastRow:
		unit = lastRowInner
	case edge:
		unit = otherRowEdge
	default:
		unit = otherRowInner
	}

	return unit * DistanceMultiplier(distanceKm)
}

// DiscountApplies reports whether departure is in the future but no more than
// DiscountWindow away from now. The upper bound is inclusive.
func DiscountApplies(departure, now time.Time) bool {
	left := departure.Sub(now)
	return left > 0 && left <= DiscountWindow
}

// Quote is a price locked in for one booking.
type Quote struct {
	BasePrice  int
	Multiplier float64
	FinalCents int64
}

// NewQuote prices basePrice for a trip departing at departure, as seen at now.
func NewQuote(basePrice int, departure, now time.Time) Quote {
	q := Quote{
		BasePrice:  basePrice,
		Multiplier: 1.0,
		FinalCents: int64(basePrice) * 100,
	}

	if DiscountApplies(departure, now) {
		q.Multiplier = DiscountMultiplier
		q.FinalCents = int64(basePrice) * discountPercent
	}

	return q
}

func (q Quote) Discounted() bool {
	return q.Multiplier < 1.0
}

func (q Quote) String() string {
	return FormatCents(q.FinalCents)
}

// FormatCents renders an amount in cents as "Rs 189.00".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("Rs %s%d.%02d", sign, cents/100, cents%100)
}
