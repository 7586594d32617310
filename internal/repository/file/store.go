// Package filerepo implements the repository contracts on top of the record
// store: one table per entity plus one seat table per trip.
package filerepo

import (
	"context"
	"errors"
	"sync"

	"github.com/kirinyoku/bus-go/internal/recordstore"
	"github.com/kirinyoku/bus-go/internal/repository"
)

const (
	tableUsers    = "users"
	tableDrivers  = "drivers"
	tableBuses    = "buses"
	tableTrips    = "trips"
	tableBookings = "bookings"
)

func seatTable(tripID string) string {
	return "seats/" + tripID
}

type Store struct {
	records *recordstore.Store

	// registryMu serializes check-then-append writes (registrations, bus and
	// trip creation) so uniqueness checks and trip sequence numbers hold.
	registryMu sync.Mutex

	seats *SeatInventory
}

func NewStore(records *recordstore.Store) *Store {
	return &Store{
		records: records,
		seats:   &SeatInventory{records: records},
	}
}

func (s *Store) Users() *UserRepo { return &UserRepo{store: s} }
func (s *Store) Drivers() *DriverRepo { return &DriverRepo{store: s} }
func (s *Store) Buses() *BusRepo { return &BusRepo{store: s} }
func (s *Store) Trips() *TripRepo { return &TripRepo{store: s} }
func (s *Store) Seats() *SeatInventory { return s.seats }
func (s *Store) Bookings() *BookingRepo { return &BookingRepo{store: s} }

// Repositories exposes the store through the backend-neutral contracts.
func (s *Store) Repositories() *repository.Store {
	return &repository.Store{
		Users:    s.Users(),
		Drivers:  s.Drivers(),
		Buses:    s.Buses(),
		Trips:    s.Trips(),
		Seats:    s.Seats(),
		Bookings: s.Bookings(),

		Transactor: s,
	}
}

// WithinTx runs fn once against the live tables. If fn fails, seats it
// booked are released again; other writes are not undone, so fn should book
// seats before appending rows that depend on them.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx *repository.Store) error) error {
	seats := &txSeats{SeatInventory: s.seats}

	tx := s.Repositories()
	tx.Seats = seats

	if err := fn(ctx, tx); err != nil {
		if uerr := seats.undo(); uerr != nil {
			return errors.Join(err, uerr)
		}
		return err
	}
	return nil
}
