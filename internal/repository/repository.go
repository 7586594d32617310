// Package repository defines the storage contracts shared by the file and
// Postgres backends.
package repository

import (
	"context"

	"github.com/kirinyoku/bus-go/internal/domain"
)

type UserRepository interface {
	// Create stores a new passenger. ErrConflict if the id is taken.
	Create(ctx context.Context, p domain.Passenger) error
	// Get returns ErrNotFound for an unknown id.
	Get(ctx context.Context, id string) (*domain.Passenger, error)
}

type DriverRepository interface {
	// Create stores a new driver. ErrConflict if the id or license is taken.
	Create(ctx context.Context, d domain.Driver) error
	Get(ctx context.Context, id string) (*domain.Driver, error)
	LicenseTaken(ctx context.Context, license string) (bool, error)
}

type BusRepository interface {
	// Create stores a new bus. ErrConflict if the id is taken.
	Create(ctx context.Context, b domain.Bus) error
	Get(ctx context.Context, id string) (*domain.Bus, error)
}

type TripRepository interface {
	List(ctx context.Context) ([]domain.Trip, error)
	Get(ctx context.Context, id string) (*domain.Trip, error)
	// Create assigns the next trip id, stores the trip and its seat table, and
	// returns the stored trip. Seat TripIDs are filled in by Create.
	Create(ctx context.Context, t domain.Trip, seats []domain.Seat) (domain.Trip, error)
}

// SeatRepository is the seat inventory. AttemptBook is the only operation in
// the system that must be race-free: for a fixed (tripID, number) at most one
// call ever succeeds.
type SeatRepository interface {
	// Chart returns a snapshot of the trip's seats ordered by number. It may
	// be stale by the time the caller acts on it.
	Chart(ctx context.Context, tripID string) ([]domain.Seat, error)
	// AttemptBook flips a free seat to booked and returns it. A missing or
	// already booked seat yields ErrSeatUnavailable.
	AttemptBook(ctx context.Context, tripID string, number int) (domain.Seat, error)
}

type BookingRepository interface {
	Append(ctx context.Context, b domain.Booking) error
	ListByPassenger(ctx context.Context, passengerID string) ([]domain.Booking, error)
}

// Transactor runs fn against repositories bound to one unit of work. The
// Postgres backend runs fn inside a transaction and may call it again after a
// serialization failure; the file backend runs it once against its live
// tables, relying on the seat inventory's own guard for atomicity.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx *Store) error) error
}

// Store groups the repositories of one storage backend.
type Store struct {
	Users    UserRepository
	Drivers  DriverRepository
	Buses    BusRepository
	Trips    TripRepository
	Seats    SeatRepository
	Bookings BookingRepository

	Transactor Transactor
}
