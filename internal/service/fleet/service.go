package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirinyoku/bus-go/internal/domain"
	"github.com/kirinyoku/bus-go/internal/repository"
	redisrepo "github.com/kirinyoku/bus-go/internal/repository/redis"
	"github.com/kirinyoku/bus-go/internal/uow"
)

type Config struct {
	// Location is the time zone departures are entered in. Defaults to
	// time.Local.
	Location *time.Location
}

type Service struct {
	store  *repository.Store
	cache  *redisrepo.Cache
	events *redisrepo.TripEvents
	uow    *uow.UoW
	loc    *time.Location
	now    func() time.Time
	log    *slog.Logger

	// scheduleMu makes the conflict check and the insert one step for trips
	// created through this process.
	scheduleMu sync.Mutex
}

func New(
	store *repository.Store,
	cache *redisrepo.Cache,
	events *redisrepo.TripEvents,
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
		store:  store,
		cache:  cache,
		events: events,
		uow:    uow.New(store.Transactor),
		loc:    cfg.Location,
		now:    now,
		log:    log,
	}
}

func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) Now() time.Time {
	return s.now()
}

type BusRegistration struct {
	ID   string
	Rows string
	Cols string
}

// RegisterBus stores a new bus owned by operatorID.
//
// Returns:
//   - *domain.ValidationError for a blank id or a bad dimension.
//   - fleet.ErrBusExists if the id is taken.
func (s *Service) RegisterBus(ctx context.Context, operatorID string, in BusRegistration) (domain.Bus, error) {
	const op = "service.fleet.RegisterBus"

	id, err := requireText("bus id", in.ID)
	if err != nil {
		return domain.Bus{}, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := ParseRows(in.Rows)
	if err != nil {
		return domain.Bus{}, fmt.Errorf("%s: %w", op, err)
	}
	cols, err := ParseCols(in.Cols)
	if err != nil {
		return domain.Bus{}, fmt.Errorf("%s: %w", op, err)
	}

	bus := domain.Bus{ID: id, OperatorID: operatorID, Rows: rows, Cols: cols}
	if err := s.store.Buses.Create(ctx, bus); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.Bus{}, fmt.Errorf("%s: %w", op, ErrBusExists)
		}
		return domain.Bus{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("bus registered", "bus_id", bus.ID, "operator_id", operatorID, "rows", rows, "cols", cols)

	return bus, nil
}

func (s *Service) BusExists(ctx context.Context, id string) (bool, error) {
	const op = "service.fleet.BusExists"

	_, err := s.store.Buses.Get(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("%s: %w", op, err)
	}
}

type TripInsertion struct {
	BusID       string
	Source      string
	Destination string
	DistanceKm  string
	Departure   string
}

// InsertTrip schedules a trip on one of operatorID's buses and creates its
// seats.
//
// Returns:
//   - *domain.ValidationError for malformed input or a departure in the past.
//   - fleet.ErrBusNotFound, fleet.ErrNotBusOperator for a bad bus.
//   - fleet.ErrScheduleConflict if the bus has a trip on the same date less
//     than 60 minutes away.
func (s *Service) InsertTrip(ctx context.Context, operatorID string, in TripInsertion) (domain.Trip, error) {
	const op = "service.fleet.InsertTrip"

	source, err := requireText("source", in.Source)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("%s: %w", op, err)
	}
	destination, err := requireText("destination", in.Destination)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("%s: %w", op, err)
	}
	km, err := ParseDistance(in.DistanceKm)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("%s: %w", op, err)
	}
	departure, err := ParseDeparture(in.Departure, s.loc, s.now())
	if err != nil {
		return domain.Trip{}, fmt.Errorf("%s: %w", op, err)
	}

	bus, err := s.store.Buses.Get(ctx, in.BusID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Trip{}, fmt.Errorf("%s: %w", op, ErrBusNotFound)
		}
		return domain.Trip{}, fmt.Errorf("%s: %w", op, err)
	}
	if bus.OperatorID != operatorID {
		return domain.Trip{}, fmt.Errorf("%s: %w", op, ErrNotBusOperator)
	}

	s.scheduleMu.Lock()
	defer s.scheduleMu.Unlock()

	var created domain.Trip
	err = s.uow.Do(ctx, func(ctx context.Context, tx *repository.Store, after func(uow.AfterCommit)) error {
		existing, err := tx.Trips.List(ctx)
		if err != nil {
			return err
		}
		if ScheduleConflict(existing, bus.ID, departure, s.loc) {
			return ErrScheduleConflict
		}

		created, err = tx.Trips.Create(ctx, domain.Trip{
			BusID:       bus.ID,
			Source:      source,
			Destination: destination,
			DistanceKm:  km,
			OperatorID:  operatorID,
			Departure:   departure,
		}, BuildSeats(*bus, km))
		if err != nil {
			return err
		}

		after(func(ctx context.Context) {
			if err := s.cache.InvalidateTrip(ctx, created.ID); err != nil {
				s.log.Warn("cache invalidation failed", "trip_id", created.ID, "error", err)
			}
			if err := s.events.Publish(ctx, redisrepo.TripChange{
				Type:   redisrepo.ChangeTripCreated,
				TripID: created.ID,
			}); err != nil {
				s.log.Warn("trip event publish failed", "trip_id", created.ID, "error", err)
			}
		})

		return nil
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("trip inserted",
		"trip_id", created.ID,
		"bus_id", created.BusID,
		"departure", created.Departure.In(s.loc).Format(DepartureLayout),
	)

	return created, nil
}
