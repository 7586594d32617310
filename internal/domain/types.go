package domain

import (
	"time"
)

type SeatStatus string

const (
	SeatFree   SeatStatus = "free"
	SeatBooked SeatStatus = "booked"
)

type Bus struct {
	ID         string
	OperatorID string
	Rows       int
	Cols       int
}

// Capacity returns the number of seats the bus layout provides.
func (b Bus) Capacity() int {
	return b.Rows * b.Cols
}

type Trip struct {
	ID          string
	BusID       string
	Source      string
	Destination string
	DistanceKm  int
	OperatorID  string
	Departure   time.Time
}

// Reservable reports whether the trip still departs strictly after now.
func (t Trip) Reservable(now time.Time) bool {
	return t.Departure.After(now)
}

type Seat struct {
	TripID    string
	Number    int
	Status    SeatStatus
	BasePrice int
}

func (s Seat) Free() bool {
	return s.Status == SeatFree
}

// TripListing is a reservable trip as presented to a passenger. Discounted is
// a display hint only; the price is decided again when a booking is confirmed.
type TripListing struct {
	Trip       Trip
	Discounted bool
}

type Booking struct {
	TripID        string
	BusID         string
	SeatNumber    int
	PassengerID   string
	PassengerName string
	FinalCents    int64
	CreatedAt     time.Time
}

type Passenger struct {
	ID           string
	Name         string
	Age          int
	PasswordHash string
}

type Driver struct {
	ID           string
	License      string
	Name         string
	Age          int
	PasswordHash string
}
