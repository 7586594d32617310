package filerepo

import (
	"context"
	"fmt"
	"slices"

	"github.com/kirinyoku/bus-go/internal/domain"
	"github.com/kirinyoku/bus-go/internal/repository"
)

type BusRepo struct {
	store *Store
}

func (r *BusRepo) Create(ctx context.Context, b domain.Bus) error {
	const op = "filerepo.BusRepo.Create"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r.store.registryMu.Lock()
	defer r.store.registryMu.Unlock()

	existing, err := r.find(b.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if existing != nil {
		return fmt.Errorf("%s: bus %s: %w", op, b.ID, repository.ErrConflict)
	}

	if err := r.store.records.Append(tableBuses, busRow(b)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *BusRepo) Get(ctx context.Context, id string) (*domain.Bus, error) {
	const op = "filerepo.BusRepo.Get"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	b, err := r.find(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if b == nil {
		return nil, fmt.Errorf("%s: bus %s: %w", op, id, repository.ErrNotFound)
	}
	return b, nil
}

func (r *BusRepo) find(id string) (*domain.Bus, error) {
	rows, err := r.store.records.ReadAll(tableBuses)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		b, ok := parseBus(row)
		if ok && b.ID == id {
			return &b, nil
		}
	}
	return nil, nil
}

type TripRepo struct {
	store *Store
}

// List returns every stored trip in insertion order.
func (r *TripRepo) List(ctx context.Context) ([]domain.Trip, error) {
	const op = "filerepo.TripRepo.List"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	trips, err := r.all()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return trips, nil
}

func (r *TripRepo) Get(ctx context.Context, id string) (*domain.Trip, error) {
	const op = "filerepo.TripRepo.Get"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	trips, err := r.all()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, t := range trips {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s: trip %s: %w", op, id, repository.ErrNotFound)
}

// Create writes the seat table before the trip row, so a listed trip always
// has its seats on disk.
func (r *TripRepo) Create(ctx context.Context, t domain.Trip, seats []domain.Seat) (domain.Trip, error) {
	const op = "filerepo.TripRepo.Create"

	if err := ctx.Err(); err != nil {
		return domain.Trip{}, fmt.Errorf("%s: %w", op, err)
	}

	r.store.registryMu.Lock()
	defer r.store.registryMu.Unlock()

	trips, err := r.all()
	if err != nil {
		return domain.Trip{}, fmt.Errorf("%s: %w", op, err)
	}

	last := 0
	for _, existing := range trips {
		if n, ok := tripSeq(existing.ID); ok && n > last {
			last = n
		}
	}
	t.ID = formatTripID(last + 1)

	sorted := slices.Clone(seats)
	slices.SortFunc(sorted, func(a, b domain.Seat) int { return a.Number - b.Number })

	rows := make([][]string, 0, len(sorted))
	for _, s := range sorted {
		rows = append(rows, seatRow(s))
	}

	if err := r.store.seats.install(t.ID, rows); err != nil {
		return domain.Trip{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := r.store.records.Append(tableTrips, tripRow(t)); err != nil {
		_ = r.store.records.Remove(seatTable(t.ID))
		return domain.Trip{}, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

func (r *TripRepo) all() ([]domain.Trip, error) {
	rows, err := r.store.records.ReadAll(tableTrips)
	if err != nil {
		return nil, err
	}
	trips := make([]domain.Trip, 0, len(rows))
	for _, row := range rows {
		if t, ok := parseTrip(row); ok {
			trips = append(trips, t)
		}
	}
	return trips, nil
}
