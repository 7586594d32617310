package postgresrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/bus-go/internal/domain"
)

type UserRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *UserRepo) With(db DB) *UserRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *UserRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *UserRepo) Create(ctx context.Context, p domain.Passenger) error {
	const op = "postgresrepo.UserRepo.Create"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO users(id, name, age, password_hash)
		 VALUES ($1, $2, $3, $4)`,
		p.ID, p.Name, p.Age, p.PasswordHash,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *UserRepo) Get(ctx context.Context, id string) (*domain.Passenger, error) {
	const op = "postgresrepo.UserRepo.Get"

	db := r.handle()

	var p domain.Passenger
	if err := db.QueryRow(ctx,
		`SELECT id, name, age, password_hash
		 FROM users WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Age, &p.PasswordHash); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &p, nil
}

type DriverRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *DriverRepo) With(db DB) *DriverRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *DriverRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create inserts the driver. Both the id and the license are unique, so either
// collision surfaces as repository.ErrConflict.
func (r *DriverRepo) Create(ctx context.Context, d domain.Driver) error {
	const op = "postgresrepo.DriverRepo.Create"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO drivers(id, license, name, age, password_hash)
		 VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.License, d.Name, d.Age, d.PasswordHash,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *DriverRepo) Get(ctx context.Context, id string) (*domain.Driver, error) {
	const op = "postgresrepo.DriverRepo.Get"

	db := r.handle()

	var d domain.Driver
	if err := db.QueryRow(ctx,
		`SELECT id, license, name, age, password_hash
		 FROM drivers WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.License, &d.Name, &d.Age, &d.PasswordHash); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &d, nil
}

func (r *DriverRepo) LicenseTaken(ctx context.Context, license string) (bool, error) {
	const op = "postgresrepo.DriverRepo.LicenseTaken"

	db := r.handle()

	var one int
	err := db.QueryRow(ctx, `SELECT 1 FROM drivers WHERE license = $1`, license).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	return true, nil
}
