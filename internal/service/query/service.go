package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/bus-go/internal/domain"
	"github.com/kirinyoku/bus-go/internal/pricing"
	"github.com/kirinyoku/bus-go/internal/repository"
	redisrepo "github.com/kirinyoku/bus-go/internal/repository/redis"
)

type Config struct {
	TripListTTL  time.Duration
	SeatChartTTL time.Duration
	BookingsTTL  time.Duration
}

type Service struct {
	store *repository.Store
	cache *redisrepo.Cache
	cfg   Config
	now   func() time.Time
}

// New returns a query service. cache may be nil; now defaults to time.Now.
func New(store *repository.Store, cache *redisrepo.Cache, cfg Config, now func() time.Time) *Service {
	if cfg.TripListTTL <= 0 {
		cfg.TripListTTL = 30 * time.Second
	}

	if cfg.SeatChartTTL <= 0 {
		cfg.SeatChartTTL = 10 * time.Second
	}

	if cfg.BookingsTTL <= 0 {
		cfg.BookingsTTL = 60 * time.Second
	}

	if now == nil {
		now = time.Now
	}

	return &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
		now:   now,
	}
}

// Trips returns every stored trip, including departed ones.
func (s *Service) Trips(ctx context.Context) ([]domain.Trip, error) {
	const op = "service.query.Trips"

	trips, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyTripList(),
		s.cfg.TripListTTL,
		func(ctx context.Context) ([]domain.Trip, error) {
			return s.store.Trips.List(ctx)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return trips, nil
}

// ReservableTrips lists trips departing strictly after now, flagging those
// inside the discount window.
func (s *Service) ReservableTrips(ctx context.Context) ([]domain.TripListing, error) {
	const op = "service.query.ReservableTrips"

	trips, err := s.Trips(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()

	out := make([]domain.TripListing, 0, len(trips))
	for _, t := range trips {
		if !t.Reservable(now) {
			continue
		}
		out = append(out, domain.TripListing{
			Trip:       t,
			Discounted: pricing.DiscountApplies(t.Departure, now),
		})
	}

	return out, nil
}

// Trip reads a trip straight from the store so departure checks never see a
// cached copy.
//
// Returns:
//   - error: query.ErrTripNotFound if the trip does not exist.
func (s *Service) Trip(ctx context.Context, id string) (*domain.Trip, error) {
	const op = "service.query.Trip"

	t, err := s.store.Trips.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrTripNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

func (s *Service) Bus(ctx context.Context, id string) (*domain.Bus, error) {
	const op = "service.query.Bus"

	b, err := s.store.Buses.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrBusNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

// SeatChart returns the trip's seats ordered by number. The result may be
// stale; only a booking attempt decides whether a seat is really free.
//
// Returns:
//   - error: query.ErrTripNotFound if the trip has no seat table.
func (s *Service) SeatChart(ctx context.Context, tripID string) ([]domain.Seat, error) {
	const op = "service.query.SeatChart"

	seats, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeySeatChart(tripID),
		s.cfg.SeatChartTTL,
		func(ctx context.Context) ([]domain.Seat, error) {
			seats, err := s.store.Seats.Chart(ctx, tripID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, ErrTripNotFound
				}

				return nil, err
			}

			return seats, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return seats, nil
}

func (s *Service) PassengerBookings(ctx context.Context, passengerID string) ([]domain.Booking, error) {
	const op = "service.query.PassengerBookings"

	bookings, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyPassengerBookings(passengerID),
		s.cfg.BookingsTTL,
		func(ctx context.Context) ([]domain.Booking, error) {
			return s.store.Bookings.ListByPassenger(ctx, passengerID)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}
