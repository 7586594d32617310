package account

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/kirinyoku/bus-go/internal/domain"
	"github.com/kirinyoku/bus-go/internal/repository"
)

type Service struct {
	store *repository.Store
}

func New(store *repository.Store) *Service {
	return &Service{store: store}
}

type PassengerRegistration struct {
	Name     string
	Age      string
	ID       string
	Password string
}

type DriverRegistration struct {
	Name     string
	Age      string
	ID       string
	License  string
	Password string
}

// RegisterPassenger validates every field before touching storage.
//
// Returns:
//   - *domain.ValidationError for the first malformed field.
//   - account.ErrAlreadyRegistered if the id is taken.
func (s *Service) RegisterPassenger(ctx context.Context, in PassengerRegistration) (domain.Passenger, error) {
	const op = "service.account.RegisterPassenger"

	name, err := ValidateName(in.Name)
	if err != nil {
		return domain.Passenger{}, fmt.Errorf("%s: %w", op, err)
	}
	age, err := ParsePassengerAge(in.Age)
	if err != nil {
		return domain.Passenger{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := ValidateID(in.ID); err != nil {
		return domain.Passenger{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := ValidatePassword(in.Password); err != nil {
		return domain.Passenger{}, fmt.Errorf("%s: %w", op, err)
	}

	p := domain.Passenger{
		ID:           in.ID,
		Name:         name,
		Age:          age,
		PasswordHash: HashPassword(in.Password),
	}

	if err := s.store.Users.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.Passenger{}, fmt.Errorf("%s: %w", op, ErrAlreadyRegistered)
		}
		return domain.Passenger{}, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

// RegisterDriver validates every field before touching storage.
//
// Returns:
//   - *domain.ValidationError for the first malformed field.
//   - account.ErrAlreadyRegistered if the id is taken.
//   - account.ErrLicenseRegistered if the license is taken.
func (s *Service) RegisterDriver(ctx context.Context, in DriverRegistration) (domain.Driver, error) {
	const op = "service.account.RegisterDriver"

	name, err := ValidateName(in.Name)
	if err != nil {
		return domain.Driver{}, fmt.Errorf("%s: %w", op, err)
	}
	age, err := ParseDriverAge(in.Age)
	if err != nil {
		return domain.Driver{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := ValidateID(in.ID); err != nil {
		return domain.Driver{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := ValidateLicense(in.License); err != nil {
		return domain.Driver{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := ValidatePassword(in.Password); err != nil {
		return domain.Driver{}, fmt.Errorf("%s: %w", op, err)
	}

	d := domain.Driver{
		ID:           in.ID,
		License:      in.License,
		Name:         name,
		Age:          age,
		PasswordHash: HashPassword(in.Password),
	}

	if err := s.store.Drivers.Create(ctx, d); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return domain.Driver{}, fmt.Errorf("%s: %w", op, err)
		}
		if taken, _ := s.DriverIDTaken(ctx, d.ID); taken {
			return domain.Driver{}, fmt.Errorf("%s: %w", op, ErrAlreadyRegistered)
		}
		return domain.Driver{}, fmt.Errorf("%s: %w", op, ErrLicenseRegistered)
	}

	return d, nil
}

func (s *Service) PassengerIDTaken(ctx context.Context, id string) (bool, error) {
	const op = "service.account.PassengerIDTaken"

	_, err := s.store.Users.Get(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("%s: %w", op, err)
	}
}

func (s *Service) DriverIDTaken(ctx context.Context, id string) (bool, error) {
	const op = "service.account.DriverIDTaken"

	_, err := s.store.Drivers.Get(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("%s: %w", op, err)
	}
}

func (s *Service) LicenseTaken(ctx context.Context, license string) (bool, error) {
	const op = "service.account.LicenseTaken"

	taken, err := s.store.Drivers.LicenseTaken(ctx, license)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return taken, nil
}

func (s *Service) LoginPassenger(ctx context.Context, id, password string) (*domain.Passenger, error) {
	const op = "service.account.LoginPassenger"

	p, err := s.store.Users.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !digestMatches(p.PasswordHash, password) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return p, nil
}

func (s *Service) LoginDriver(ctx context.Context, id, password string) (*domain.Driver, error) {
	const op = "service.account.LoginDriver"

	d, err := s.store.Drivers.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !digestMatches(d.PasswordHash, password) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return d, nil
}

// LookupPassenger reports whether id belongs to a registered passenger whose
// name matches, ignoring case and surrounding space.
func (s *Service) LookupPassenger(ctx context.Context, id, name string) (domain.Passenger, bool, error) {
	const op = "service.account.LookupPassenger"

	p, err := s.store.Users.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Passenger{}, false, nil
		}
		return domain.Passenger{}, false, fmt.Errorf("%s: %w", op, err)
	}
	if !strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(name)) {
		return domain.Passenger{}, false, nil
	}

	return *p, true, nil
}

func digestMatches(stored, password string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(HashPassword(password))) == 1
}
