package postgresrepo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/bus-go/internal/domain"
)

type BookingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BookingRepo) With(db DB) *BookingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BookingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *BookingRepo) Append(ctx context.Context, b domain.Booking) error {
	const op = "postgresrepo.BookingRepo.Append"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO bookings(trip_id, bus_id, seat_number, passenger_id, passenger_name, final_cents, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.TripID, b.BusID, b.SeatNumber, b.PassengerID, b.PassengerName, b.FinalCents, b.CreatedAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *BookingRepo) ListByPassenger(ctx context.Context, passengerID string) ([]domain.Booking, error) {
	const op = "postgresrepo.BookingRepo.ListByPassenger"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT trip_id, bus_id, seat_number, passenger_id, passenger_name, final_cents, created_at
		 FROM bookings
		 WHERE passenger_id = $1
		 ORDER BY id`,
		passengerID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(
			&b.TripID,
			&b.BusID,
			&b.SeatNumber,
			&b.PassengerID,
			&b.PassengerName,
			&b.FinalCents,
			&b.CreatedAt,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
