package filerepo

import (
	"context"
	"fmt"

	"github.com/kirinyoku/bus-go/internal/domain"
)

type BookingRepo struct {
	store *Store
}

func (r *BookingRepo) Append(ctx context.Context, b domain.Booking) error {
	const op = "filerepo.BookingRepo.Append"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := r.store.records.Append(tableBookings, bookingRow(b)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListByPassenger returns the passenger's bookings in the order they were made.
func (r *BookingRepo) ListByPassenger(ctx context.Context, passengerID string) ([]domain.Booking, error) {
	const op = "filerepo.BookingRepo.ListByPassenger"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := r.store.records.ReadAll(tableBookings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var out []domain.Booking
	for _, row := range rows {
		b, ok := parseBooking(row)
		if ok && b.PassengerID == passengerID {
			out = append(out, b)
		}
	}
	return out, nil
}
