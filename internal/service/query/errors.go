package query

import (
	"errors"
)

var (
	ErrTripNotFound = errors.New("trip not found")
	ErrBusNotFound  = errors.New("bus not found")
)
