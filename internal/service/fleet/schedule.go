package fleet

import (
	"strconv"
	"strings"
	"time"

	"github.com/kirinyoku/bus-go/internal/domain"
	"github.com/kirinyoku/bus-go/internal/pricing"
)

// DepartureLayout is the accepted departure format, read in the service's
// time zone.
const DepartureLayout = "2006-01-02 15:04"

// MinTurnaround is the smallest gap allowed between two trips of one bus on
// the same calendar date.
const MinTurnaround = 60 * time.Minute

// ScheduleConflict reports whether departure clashes with an existing trip of
// busID: same calendar date in loc and less than MinTurnaround apart.
func ScheduleConflict(existing []domain.Trip, busID string, departure time.Time, loc *time.Location) bool {
	dy, dm, dd := departure.In(loc).Date()

	for _, t := range existing {
		if t.BusID != busID {
			continue
		}

		ty, tm, td := t.Departure.In(loc).Date()
		if ty != dy || tm != dm || td != dd {
			continue
		}

		gap := t.Departure.Sub(departure)
		if gap < 0 {
			gap = -gap
		}
		if gap < MinTurnaround {
			return true
		}
	}

	return false
}

// BuildSeats lays out a bus row-major, numbering seats from 1 and pricing each
// one for a trip of distanceKm.
func BuildSeats(bus domain.Bus, distanceKm int) []domain.Seat {
	seats := make([]domain.Seat, 0, bus.Capacity())
	for r := 0; r < bus.Rows; r++ {
		for c := 0; c < bus.Cols; c++ {
			seats = append(seats, domain.Seat{
				Number:    r*bus.Cols + c + 1,
				Status:    domain.SeatFree,
				BasePrice: pricing.BasePrice(r, c, bus.Rows, bus.Cols, distanceKm),
			})
		}
	}
	return seats
}

func ParseDeparture(s string, loc *time.Location, now time.Time) (time.Time, error) {
	t, err := time.ParseInLocation(DepartureLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, domain.NewValidationError("departure", "use YYYY-MM-DD HH:MM")
	}
	if !t.After(now) {
		return time.Time{}, domain.NewValidationError("departure", "must be in the future")
	}
	return t, nil
}

func ParseDistance(s string) (int, error) {
	km, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, domain.NewValidationError("distance", "must be a number")
	}
	if km <= 0 {
		return 0, domain.NewValidationError("distance", "must be positive")
	}
	return km, nil
}

func parseDimension(field, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, domain.NewValidationError(field, "must be a number")
	}
	if n <= 0 {
		return 0, domain.NewValidationError(field, "must be positive")
	}
	return n, nil
}

func ParseRows(s string) (int, error) { return parseDimension("rows", s) }
func ParseCols(s string) (int, error) { return parseDimension("cols", s) }

func requireText(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", domain.NewValidationError(field, "must not be blank")
	}
	return s, nil
}
