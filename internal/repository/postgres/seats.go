package postgresrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/bus-go/internal/domain"
	"github.com/kirinyoku/bus-go/internal/repository"
)

type SeatRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *SeatRepo) With(db DB) *SeatRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *SeatRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Chart lists the trip's seats ordered by number.
//
// Returns:
//   - error: repository.ErrNotFound if the trip has no seats.
func (r *SeatRepo) Chart(ctx context.Context, tripID string) ([]domain.Seat, error) {
	const op = "postgresrepo.SeatRepo.Chart"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT seat_number, status, base_price
		 FROM trip_seats
		 WHERE trip_id = $1
		 ORDER BY seat_number`,
		tripID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Seat
	for rows.Next() {
		s := domain.Seat{TripID: tripID}
		var status string

		if err := rows.Scan(&s.Number, &status, &s.BasePrice); err != nil {
			return nil, wrapDBErr(op, err)
		}

		s.Status = domain.SeatStatus(status)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%s: seats for trip %s: %w", op, tripID, repository.ErrNotFound)
	}

	return out, nil
}

// AttemptBook books a single seat with a conditional update. Only the caller
// whose update matches the 'free' row wins.
//
// Returns:
//   - domain.Seat: the seat, now booked, with its base price.
//   - error: repository.ErrSeatUnavailable if the seat is missing or taken.
func (r *SeatRepo) AttemptBook(ctx context.Context, tripID string, number int) (domain.Seat, error) {
	const op = "postgresrepo.SeatRepo.AttemptBook"

	db := r.handle()

	seat := domain.Seat{TripID: tripID, Number: number, Status: domain.SeatBooked}
	err := db.QueryRow(ctx,
		`UPDATE trip_seats
		    SET status = 'booked'
		 WHERE trip_id = $1
		    AND seat_number = $2
		    AND status = 'free'
		 RETURNING base_price`,
		tripID, number,
	).Scan(&seat.BasePrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Seat{}, fmt.Errorf("%s: trip %s seat %d: %w", op, tripID, number, repository.ErrSeatUnavailable)
	}
	if err != nil {
		return domain.Seat{}, wrapDBErr(op, err)
	}

	return seat, nil
}
