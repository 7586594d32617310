package booking

import (
	"errors"
)

var (
	ErrTripNotFound = errors.New("trip not found")
	ErrTripDeparted = errors.New("trip has already departed")
	ErrSeatTaken    = errors.New("seat is no longer available")
	ErrRateLimited  = errors.New("too many bookings")
)
