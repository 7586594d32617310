package service

import (
	"log/slog"
	"time"

	"github.com/kirinyoku/bus-go/internal/repository"
	redisrepo "github.com/kirinyoku/bus-go/internal/repository/redis"
	"github.com/kirinyoku/bus-go/internal/service/account"
	"github.com/kirinyoku/bus-go/internal/service/booking"
	"github.com/kirinyoku/bus-go/internal/service/fleet"
	"github.com/kirinyoku/bus-go/internal/service/query"
)

type Services struct {
	Accounts *account.Service
	Fleet    *fleet.Service
	Query    *query.Service
	Booking  *booking.Service
}

type Config struct {
	Query query.Config
	// Location is the time zone departures are entered and shown in.
	Location *time.Location
}

// NewServices wires every service over one store. cache, events and limiter
// may be nil when Redis is disabled; now defaults to time.Now.
func NewServices(
	store *repository.Store,
	cache *redisrepo.Cache,
	events *redisrepo.TripEvents,
	limiter *redisrepo.SlidingWindowLimiter,
	cfg Config,
	now func() time.Time,
	log *slog.Logger,
) *Services {
	accounts := account.New(store)
	q := query.New(store, cache, cfg.Query, now)

	return &Services{
		Accounts: accounts,
		Fleet:    fleet.New(store, cache, events, fleet.Config{Location: cfg.Location}, now, log),
		Query:    q,
		Booking:  booking.New(store, q, accounts, cache, events, limiter, booking.Config{Location: cfg.Location}, now, log),
	}
}
