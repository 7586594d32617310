// Package booking sells seats: it runs the reservation dialog with a client
// and commits bookings against the seat inventory.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/bus-go/internal/domain"
	"github.com/kirinyoku/bus-go/internal/pricing"
	"github.com/kirinyoku/bus-go/internal/repository"
	redisrepo "github.com/kirinyoku/bus-go/internal/repository/redis"
	"github.com/kirinyoku/bus-go/internal/service/query"
	"github.com/kirinyoku/bus-go/internal/uow"
)

// Passengers resolves the passenger a seat is booked for.
type Passengers interface {
	LookupPassenger(ctx context.Context, id, name string) (domain.Passenger, bool, error)
}

type Config struct {
	// Location is the time zone departures are shown in. Defaults to
	// time.Local.
	Location *time.Location
}

type Service struct {
	query      *query.Service
	passengers Passengers
	uow        *uow.UoW
	cache      *redisrepo.Cache
	events     *redisrepo.TripEvents
	limiter    *redisrepo.SlidingWindowLimiter
	loc        *time.Location
	now        func() time.Time
	log        *slog.Logger
}

// New wires a booking service. cache, events and limiter may be nil.
func New(
	store *repository.Store,
	q *query.Service,
	passengers Passengers,
	cache *redisrepo.Cache,
	events *redisrepo.TripEvents,
	limiter *redisrepo.SlidingWindowLimiter,
	cfg Config,
	now func() time.Time,
	log *slog.Logger,
) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	if now == nil {
		now = time.Now
	}

	return &Service{
		query:      q,
		passengers: passengers,
		uow:        uow.New(store.Transactor),
		cache:      cache,
		events:     events,
		limiter:    limiter,
		loc:        cfg.Location,
		now:        now,
		log:        log,
	}
}

type CommitRequest struct {
	Trip       domain.Trip
	SeatNumber int
	Passenger  domain.Passenger
	Quote      pricing.Quote
	// ClientKey identifies the caller for rate limiting, e.g. the remote IP.
	// Empty disables the limit for this call.
	ClientKey string
}

// Commit books one seat at the quoted price.
//
// Returns:
//   - domain.Booking: the stored booking.
//   - error: booking.ErrTripNotFound if the trip is no longer on record.
//   - error: booking.ErrTripDeparted if the trip left since it was listed.
//   - error: booking.ErrRateLimited if ClientKey booked too often.
//   - error: booking.ErrSeatTaken if another client won the seat.
func (s *Service) Commit(ctx context.Context, req CommitRequest) (domain.Booking, error) {
	const op = "service.booking.Commit"

	trip, err := s.query.Trip(ctx, req.Trip.ID)
	if err != nil {
		if errors.Is(err, query.ErrTripNotFound) {
			return domain.Booking{}, fmt.Errorf("%s: trip %s: %w", op, req.Trip.ID, ErrTripNotFound)
		}
		return domain.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	if !trip.Reservable(now) {
		return domain.Booking{}, fmt.Errorf("%s: %w", op, ErrTripDeparted)
	}

	if req.ClientKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, req.ClientKey)
		if err != nil {
			s.log.Warn("booking rate limiter unavailable", "client", req.ClientKey, "error", err)
		} else if !ok {
			return domain.Booking{}, fmt.Errorf("%s: retry in %s: %w", op, retry.Round(time.Second), ErrRateLimited)
		}
	}

	b := domain.Booking{
		TripID:        trip.ID,
		BusID:         trip.BusID,
		SeatNumber:    req.SeatNumber,
		PassengerID:   req.Passenger.ID,
		PassengerName: req.Passenger.Name,
		FinalCents:    req.Quote.FinalCents,
		CreatedAt:     now,
	}

	err = s.uow.Do(ctx, func(ctx context.Context, tx *repository.Store, after func(uow.AfterCommit)) error {
		if _, err := tx.Seats.AttemptBook(ctx, b.TripID, b.SeatNumber); err != nil {
			if errors.Is(err, repository.ErrSeatUnavailable) {
				return ErrSeatTaken
			}
			return err
		}

		if err := tx.Bookings.Append(ctx, b); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrSeatTaken
			}
			return err
		}

		after(func(ctx context.Context) {
			s.afterBooking(ctx, b)
		})

		return nil
	})
	if err != nil {
		return domain.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("seat booked",
		"trip_id", b.TripID,
		"seat", b.SeatNumber,
		"passenger_id", b.PassengerID,
		"final_cents", b.FinalCents,
	)

	return b, nil
}

func (s *Service) afterBooking(ctx context.Context, b domain.Booking) {
	if err := s.cache.InvalidateTrip(ctx, b.TripID); err != nil {
		s.log.Warn("cache invalidation failed", "trip_id", b.TripID, "error", err)
	}
	if err := s.cache.InvalidatePassenger(ctx, b.PassengerID); err != nil {
		s.log.Warn("cache invalidation failed", "passenger_id", b.PassengerID, "error", err)
	}
	if err := s.events.Publish(ctx, redisrepo.TripChange{
		Type:       redisrepo.ChangeSeatBooked,
		TripID:     b.TripID,
		SeatNumber: b.SeatNumber,
	}); err != nil {
		s.log.Warn("seat event publish failed", "trip_id", b.TripID, "error", err)
	}
}

// Quote prices seat for trip as of now.
func (s *Service) Quote(trip domain.Trip, seat domain.Seat) pricing.Quote {
	return pricing.NewQuote(seat.BasePrice, trip.Departure, s.now())
}
