package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/kirinyoku/bus-go/internal/domain"
	"github.com/kirinyoku/bus-go/internal/pricing"
)

const displayLayout = "2006-01-02 15:04"

func renderTrips(listings []domain.TripListing, loc *time.Location) string {
	if len(listings) == 0 {
		return "No upcoming trips are available."
	}

	var b strings.Builder
	b.WriteString("Upcoming trips:\n")
	for i, l := range listings {
		t := l.Trip
		fmt.Fprintf(&b, "%d. %s  %s -> %s  bus %s  %d km  departs %s",
			i+1, t.ID, t.Source, t.Destination, t.BusID, t.DistanceKm,
			t.Departure.In(loc).Format(displayLayout))
		if l.Discounted {
			b.WriteString("  [10% off]")
		}
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// renderChart draws seats in rows of cols. Booked seats show as XX.
func renderChart(tripID string, seats []domain.Seat, cols int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Seats for trip %s (XX = booked):", tripID)

	for i, seat := range seats {
		if i%cols == 0 {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
		if seat.Free() {
			fmt.Fprintf(&b, "%3d", seat.Number)
		} else {
			b.WriteString(" XX")
		}
	}
	return b.String()
}

func renderQuote(trip domain.Trip, seat domain.Seat, p domain.Passenger, q pricing.Quote) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Trip %s, seat %d, passenger %s (%s)\n", trip.ID, seat.Number, p.Name, p.ID)
	fmt.Fprintf(&b, "Base price: %s\n", pricing.FormatCents(int64(q.BasePrice)*100))
	if q.Discounted() {
		b.WriteString("Departure within the hour: 10% discount applied\n")
	}
	fmt.Fprintf(&b, "You have to pay: %s", q)
	return b.String()
}
