package repository

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrSeatUnavailable = errors.New("seat not found or already booked")
)
