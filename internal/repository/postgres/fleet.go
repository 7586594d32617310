package postgresrepo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/bus-go/internal/domain"
)

type BusRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BusRepo) With(db DB) *BusRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BusRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *BusRepo) Create(ctx context.Context, b domain.Bus) error {
	const op = "postgresrepo.BusRepo.Create"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO buses(id, operator_id, seat_rows, seat_cols)
		 VALUES ($1, $2, $3, $4)`,
		b.ID, b.OperatorID, b.Rows, b.Cols,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *BusRepo) Get(ctx context.Context, id string) (*domain.Bus, error) {
	const op = "postgresrepo.BusRepo.Get"

	db := r.handle()

	var b domain.Bus
	if err := db.QueryRow(ctx,
		`SELECT id, operator_id, seat_rows, seat_cols
		 FROM buses WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.OperatorID, &b.Rows, &b.Cols); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &b, nil
}

type TripRepo struct {
	store *Store
	pool  *pgxpool.Pool
	db    DB
}

func (r *TripRepo) With(db DB) *TripRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TripRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const tripColumns = `id, bus_id, source, destination, distance_km, operator_id, departs_at`

func scanTrip(row pgx.Row, t *domain.Trip) error {
	return row.Scan(&t.ID, &t.BusID, &t.Source, &t.Destination, &t.DistanceKm, &t.OperatorID, &t.Departure)
}

func (r *TripRepo) List(ctx context.Context) ([]domain.Trip, error) {
	const op = "postgresrepo.TripRepo.List"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+tripColumns+`
		 FROM trips
		 ORDER BY id`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Trip
	for rows.Next() {
		var t domain.Trip
		if err := scanTrip(rows, &t); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *TripRepo) Get(ctx context.Context, id string) (*domain.Trip, error) {
	const op = "postgresrepo.TripRepo.Get"

	db := r.handle()

	var t domain.Trip
	if err := scanTrip(db.QueryRow(ctx,
		`SELECT `+tripColumns+`
		 FROM trips WHERE id = $1`,
		id,
	), &t); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &t, nil
}

// Create takes the next value of trip_seq as the trip number and inserts the
// trip together with its seats. Outside an explicit transaction it opens one.
func (r *TripRepo) Create(ctx context.Context, t domain.Trip, seats []domain.Seat) (domain.Trip, error) {
	const op = "postgresrepo.TripRepo.Create"

	if r.db != nil {
		created, err := r.createCore(ctx, r.db, t, seats)
		if err != nil {
			return domain.Trip{}, fmt.Errorf("%s: %w", op, err)
		}
		return created, nil
	}

	var created domain.Trip
	err := r.store.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		var err error
		created, err = r.createCore(ctx, tx, t, seats)
		return err
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("%s: %w", op, err)
	}

	return created, nil
}

func (r *TripRepo) createCore(ctx context.Context, db DB, t domain.Trip, seats []domain.Seat) (domain.Trip, error) {
	const op = "postgresrepo.TripRepo.createCore"

	var seq int64
	if err := db.QueryRow(ctx, `SELECT nextval('trip_seq')`).Scan(&seq); err != nil {
		return domain.Trip{}, wrapDBErr(op, err)
	}
	t.ID = fmt.Sprintf("T%03d", seq)

	if _, err := db.Exec(ctx,
		`INSERT INTO trips(`+tripColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.BusID, t.Source, t.Destination, t.DistanceKm, t.OperatorID, t.Departure,
	); err != nil {
		return domain.Trip{}, wrapDBErr(op, err)
	}

	batch := &pgx.Batch{}
	for _, s := range seats {
		batch.Queue(
			`INSERT INTO trip_seats(trip_id, seat_number, status, base_price)
			 VALUES ($1, $2, $3, $4)`,
			t.ID, s.Number, string(domain.SeatFree), s.BasePrice,
		)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return domain.Trip{}, wrapDBErr(op, err)
	}

	return t, nil
}
