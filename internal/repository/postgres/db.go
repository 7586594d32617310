// Package postgresrepo implements the repository contracts on PostgreSQL.
package postgresrepo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/bus-go/internal/repository"
)

// maxTxAttempts bounds RunTx retries on serialization failures.
const maxTxAttempts = 3

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
	}
}

// RunTx runs fn in a transaction, serializable unless opts says otherwise.
// Serialization failures and deadlocks are retried.
func (s *Store) RunTx(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx DB) error,
) error {
	txOpts := pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	}

	if opts != nil {
		txOpts.IsoLevel = opts.IsoLevel
		txOpts.AccessMode = opts.AccessMode
		txOpts.DeferrableMode = opts.DeferrableMode
	}

	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = s.runTxOnce(ctx, txOpts, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
	}

	return err
}

func (s *Store) runTxOnce(ctx context.Context, txOpts pgx.TxOptions, fn func(ctx context.Context, tx DB) error) error {
	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Store) Users() *UserRepo       { return &UserRepo{pool: s.pool} }
func (s *Store) Drivers() *DriverRepo   { return &DriverRepo{pool: s.pool} }
func (s *Store) Buses() *BusRepo        { return &BusRepo{pool: s.pool} }
func (s *Store) Trips() *TripRepo       { return &TripRepo{store: s, pool: s.pool} }
func (s *Store) Seats() *SeatRepo       { return &SeatRepo{pool: s.pool} }
func (s *Store) Bookings() *BookingRepo { return &BookingRepo{pool: s.pool} }

// Repositories exposes the store through the backend-neutral contracts.
func (s *Store) Repositories() *repository.Store {
	return &repository.Store{
		Users:    s.Users(),
		Drivers:  s.Drivers(),
		Buses:    s.Buses(),
		Trips:    s.Trips(),
		Seats:    s.Seats(),
		Bookings: s.Bookings(),

		Transactor: s,
	}
}

// WithinTx runs fn in a serializable transaction with every repository bound
// to it. fn may run more than once.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx *repository.Store) error) error {
	return s.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		return fn(ctx, &repository.Store{
			Users:    s.Users().With(tx),
			Drivers:  s.Drivers().With(tx),
			Buses:    s.Buses().With(tx),
			Trips:    s.Trips().With(tx),
			Seats:    s.Seats().With(tx),
			Bookings: s.Bookings().With(tx),

			Transactor: s,
		})
	})
}
