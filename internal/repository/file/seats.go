package filerepo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/kirinyoku/bus-go/internal/domain"
	"github.com/kirinyoku/bus-go/internal/recordstore"
	"github.com/kirinyoku/bus-go/internal/repository"
)

// SeatInventory guards every seat table with a single mutex. Reads and
// read-modify-write cycles on any trip are serialized, which is what makes
// AttemptBook atomic.
type SeatInventory struct {
	records *recordstore.Store
	mu      sync.Mutex
}

// Chart returns the trip's seats ordered by number.
func (s *SeatInventory) Chart(ctx context.Context, tripID string) ([]domain.Seat, error) {
	const op = "filerepo.SeatInventory.Chart"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	rows, err := s.records.ReadAll(seatTable(tripID))
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: seats for trip %s: %w", op, tripID, repository.ErrNotFound)
	}

	seats := make([]domain.Seat, 0, len(rows))
	for _, row := range rows {
		if seat, ok := parseSeat(tripID, row); ok {
			seats = append(seats, seat)
		}
	}
	slices.SortFunc(seats, func(a, b domain.Seat) int { return a.Number - b.Number })

	return seats, nil
}

// AttemptBook flips the first free row for number to booked and rewrites the
// table. Any other outcome, including an unknown trip, is ErrSeatUnavailable.
func (s *SeatInventory) AttemptBook(ctx context.Context, tripID string, number int) (domain.Seat, error) {
	const op = "filerepo.SeatInventory.AttemptBook"

	if err := ctx.Err(); err != nil {
		return domain.Seat{}, fmt.Errorf("%s: %w", op, err)
	}

	seat, ok, err := s.flip(tripID, number, seatFreeFlag, seatBookedFlag)
	if err != nil {
		return domain.Seat{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return domain.Seat{}, fmt.Errorf("%s: trip %s seat %d: %w", op, tripID, number, repository.ErrSeatUnavailable)
	}

	seat.Status = domain.SeatBooked
	return seat, nil
}

// release returns a booked seat to free. It undoes an AttemptBook whose unit
// of work failed later.
func (s *SeatInventory) release(tripID string, number int) error {
	const op = "filerepo.SeatInventory.release"

	if _, ok, err := s.flip(tripID, number, seatBookedFlag, seatFreeFlag); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	} else if !ok {
		return fmt.Errorf("%s: trip %s seat %d is not booked: %w", op, tripID, number, repository.ErrNotFound)
	}
	return nil
}

// flip moves the first row for number from status from to status to under
// the guard. ok is false when no such row exists.
func (s *SeatInventory) flip(tripID string, number int, from, to string) (domain.Seat, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := seatTable(tripID)
	rows, err := s.records.ReadAll(table)
	if err != nil {
		return domain.Seat{}, false, err
	}

	want := strconv.Itoa(number)
	for i, row := range rows {
		seat, ok := parseSeat(tripID, row)
		if !ok || row[0] != want || row[1] != from {
			continue
		}

		rows[i][1] = to
		if err := s.records.Rewrite(table, rows); err != nil {
			return domain.Seat{}, false, err
		}
		return seat, true, nil
	}

	return domain.Seat{}, false, nil
}

// txSeats remembers the seats booked inside one unit of work so they can be
// released if the unit fails.
type txSeats struct {
	*SeatInventory
	booked []domain.Seat
}

func (t *txSeats) AttemptBook(ctx context.Context, tripID string, number int) (domain.Seat, error) {
	seat, err := t.SeatInventory.AttemptBook(ctx, tripID, number)
	if err == nil {
		t.booked = append(t.booked, domain.Seat{TripID: tripID, Number: number})
	}
	return seat, err
}

func (t *txSeats) undo() error {
	var errs []error
	for i := len(t.booked) - 1; i >= 0; i-- {
		if err := t.release(t.booked[i].TripID, t.booked[i].Number); err != nil {
			errs = append(errs, err)
		}
	}
	t.booked = nil
	return errors.Join(errs...)
}

func (s *SeatInventory) install(tripID string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.records.Rewrite(seatTable(tripID), rows)
}
