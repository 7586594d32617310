package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/bus-go/internal/config"
	"github.com/kirinyoku/bus-go/internal/postgres"
	"github.com/kirinyoku/bus-go/internal/presence"
	"github.com/kirinyoku/bus-go/internal/protocol"
	"github.com/kirinyoku/bus-go/internal/recordstore"
	"github.com/kirinyoku/bus-go/internal/redis"
	"github.com/kirinyoku/bus-go/internal/repository"
	filerepo "github.com/kirinyoku/bus-go/internal/repository/file"
	postgresrepo "github.com/kirinyoku/bus-go/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/bus-go/internal/repository/redis"
	"github.com/kirinyoku/bus-go/internal/service"
	httpgin "github.com/kirinyoku/bus-go/internal/transport/http/gin"
	"github.com/kirinyoku/bus-go/internal/transport/tcp"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	tcpServer  *tcp.Server
	httpServer *http.Server
	cache      *redisrepo.Cache
	events     *redisrepo.TripEvents

	pool *pgxpool.Pool
	rdb  *goredis.Client
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.New"

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	format, err := protocol.ParseFormat(cfg.Session.WireFormat)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := &App{cfg: cfg, logger: logger}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.rdb, err = redis.New(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%s: failed to initialize redis: %w", op, err)
	}
	if a.rdb == nil {
		logger.Info("redis disabled, serving reads straight from the store")
	}

	a.cache = redisrepo.New(a.rdb)
	a.events = redisrepo.NewTripEvents(a.rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(a.rdb, "booking", cfg.Booking.RateLimit, cfg.Booking.RateWindow)

	services := service.NewServices(store, a.cache, a.events, limiter, service.Config{Location: loc}, nil, logger)

	a.tcpServer = tcp.NewServer(tcp.Config{
		Addr:        cfg.ServerAddr(),
		Format:      format,
		IdleTimeout: cfg.Session.IdleTimeout,
		AcceptRate:  cfg.Session.AcceptRate,
		AcceptBurst: cfg.Session.AcceptBurst,
	}, services, logger)

	if cfg.HTTP.Port > 0 {
		a.httpServer = &http.Server{
			Addr:              cfg.Server.Host + ":" + strconv.Itoa(cfg.HTTP.Port),
			Handler:           httpgin.NewRouter(services, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context) (*repository.Store, error) {
	switch a.cfg.Store.Driver {
	case config.StorePostgres:
		pool, err := postgres.New(ctx, postgres.Config{DSN: a.cfg.Postgres.DSN(), MaxConns: a.cfg.Postgres.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		a.pool = pool

		store := postgresrepo.NewStore(pool)
		if err := store.Migrate(ctx, a.logger); err != nil {
			return nil, err
		}
		a.logger.Info("using postgres store", "host", a.cfg.Postgres.Host, "db", a.cfg.Postgres.Name)
		return store.Repositories(), nil

	default:
		records, err := recordstore.Open(a.cfg.Store.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open data dir: %w", err)
		}
		a.logger.Info("using file store", "dir", records.Root())
		return filerepo.NewStore(records).Repositories(), nil
	}
}

// Run serves until SIGINT/SIGTERM or until any component fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer a.Close()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.tcpServer.ListenAndServe(gCtx)
	})

	if a.cfg.Presence.Enabled {
		g.Go(func() error {
			err := presence.Broadcast(gCtx, presence.Config{
				Addr:     a.cfg.Presence.Addr,
				Interval: a.cfg.Presence.Interval,
				Port:     a.cfg.Server.Port,
			}, a.logger)
			if err != nil {
				// Presence is best-effort; clients can still dial directly.
				a.logger.Warn("presence broadcast stopped", "error", err)
			}
			return nil
		})
	}

	if a.events != nil {
		g.Go(func() error {
			err := a.events.Subscribe(gCtx, a.dropStale)
			if err != nil && gCtx.Err() == nil {
				return fmt.Errorf("trip events subscription: %w", err)
			}
			return nil
		})
	}

	if a.httpServer != nil {
		g.Go(func() error {
			a.logger.Info("HTTP server listening", "addr", a.httpServer.Addr)
			if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to start HTTP server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gCtx.Done()
			a.logger.Info("shutting down HTTP server")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.httpServer.Shutdown(ctx)
		})
	}

	return g.Wait()
}

// dropStale evicts cache entries another instance reported as changed.
func (a *App) dropStale(ctx context.Context, change redisrepo.TripChange) {
	if err := a.cache.InvalidateTrip(ctx, change.TripID); err != nil {
		a.logger.Warn("cache invalidation failed", "trip_id", change.TripID, "change", change.Type, "error", err)
	}
}

func (a *App) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
		a.rdb = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
