package filerepo

import (
	"context"
	"fmt"

	"github.com/kirinyoku/bus-go/internal/domain"
	"github.com/kirinyoku/bus-go/internal/repository"
)

type UserRepo struct {
	store *Store
}

func (r *UserRepo) Create(ctx context.Context, p domain.Passenger) error {
	const op = "filerepo.UserRepo.Create"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r.store.registryMu.Lock()
	defer r.store.registryMu.Unlock()

	existing, err := r.find(p.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if existing != nil {
		return fmt.Errorf("%s: user %s: %w", op, p.ID, repository.ErrConflict)
	}

	if err := r.store.records.Append(tableUsers, userRow(p)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, id string) (*domain.Passenger, error) {
	const op = "filerepo.UserRepo.Get"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p, err := r.find(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%s: user %s: %w", op, id, repository.ErrNotFound)
	}
	return p, nil
}

func (r *UserRepo) find(id string) (*domain.Passenger, error) {
	rows, err := r.store.records.ReadAll(tableUsers)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		p, ok := parseUser(row)
		if ok && p.ID == id {
			return &p, nil
		}
	}
	return nil, nil
}

type DriverRepo struct {
	store *Store
}

func (r *DriverRepo) Create(ctx context.Context, d domain.Driver) error {
	const op = "filerepo.DriverRepo.Create"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r.store.registryMu.Lock()
	defer r.store.registryMu.Unlock()

	drivers, err := r.all()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, existing := range drivers {
		if existing.ID == d.ID {
			return fmt.Errorf("%s: driver %s: %w", op, d.ID, repository.ErrConflict)
		}
		if existing.License == d.License {
			return fmt.Errorf("%s: license %s: %w", op, d.License, repository.ErrConflict)
		}
	}

	if err := r.store.records.Append(tableDrivers, driverRow(d)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *DriverRepo) Get(ctx context.Context, id string) (*domain.Driver, error) {
	const op = "filerepo.DriverRepo.Get"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	drivers, err := r.all()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, d := range drivers {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, fmt.Errorf("%s: driver %s: %w", op, id, repository.ErrNotFound)
}

func (r *DriverRepo) LicenseTaken(ctx context.Context, license string) (bool, error) {
	const op = "filerepo.DriverRepo.LicenseTaken"

	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	drivers, err := r.all()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	for _, d := range drivers {
		if d.License == license {
			return true, nil
		}
	}
	return false, nil
}

func (r *DriverRepo) all() ([]domain.Driver, error) {
	rows, err := r.store.records.ReadAll(tableDrivers)
	if err != nil {
		return nil, err
	}
	drivers := make([]domain.Driver, 0, len(rows))
	for _, row := range rows {
		if d, ok := parseDriver(row); ok {
			drivers = append(drivers, d)
		}
	}
	return drivers, nil
}
