// Package tcp accepts booking clients and runs one session per connection.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirinyoku/bus-go/internal/protocol"
	"github.com/kirinyoku/bus-go/internal/service"
	"github.com/kirinyoku/bus-go/internal/session"
)

// ErrAlreadyServing is returned when Serve is called on a server that has
// already been started.
var ErrAlreadyServing = errors.New("tcp server already serving")

type Config struct {
	Addr        string
	Format      protocol.Format
	IdleTimeout time.Duration
	// AcceptRate and AcceptBurst bound new connections per remote IP.
	// AcceptRate <= 0 disables the limit.
	AcceptRate  float64
	AcceptBurst int
}

type Server struct {
	cfg      Config
	svc      *service.Services
	log      *slog.Logger
	limiters *ipLimiters

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	ready    chan struct{}
	wg       sync.WaitGroup
}

func NewServer(cfg Config, svc *service.Services, log *slog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		svc:      svc,
		log:      log,
		limiters: newIPLimiters(rate.Limit(cfg.AcceptRate), cfg.AcceptBurst),
		conns:    make(map[net.Conn]struct{}),
		ready:    make(chan struct{}),
	}
}

// ListenAndServe accepts connections until ctx is cancelled. Cancellation
// closes the listener and every open connection, then waits for sessions to
// finish.
func (s *Server) ListenAndServe(ctx context.Context) error {
	const op = "tcp.Server.ListenAndServe"

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled. A server serves once; later
// calls close their listener and return ErrAlreadyServing.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	const op = "tcp.Server.Serve"

	s.mu.Lock()
	if s.listener != nil {
		s.mu.Unlock()
		ln.Close()
		return fmt.Errorf("%s: %w", op, ErrAlreadyServing)
	}
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	s.log.Info("booking server listening", "addr", ln.Addr().String(), "wire_format", s.cfg.Format)

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		s.closeConns()
	})
	defer stop()

	defer s.wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warn("accept failed", "error", err)
				continue
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		ip := remoteIP(conn.RemoteAddr())
		if !s.limiters.allow(ip) {
			s.log.Warn("connection rejected by rate limit", "remote_ip", ip)
			conn.Close()
			continue
		}

		if !s.track(conn) {
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handle(ctx, conn, ip)
		}()
	}
}

// Addr blocks until the server is listening and returns its address.
func (s *Server) Addr() net.Addr {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener.Addr()
}

func (s *Server) handle(ctx context.Context, conn net.Conn, ip string) {
	framer := protocol.NewFramer(conn, s.cfg.Format, s.cfg.IdleTimeout)
	sess := session.New(framer, s.svc, ip, s.log.With("remote_addr", conn.RemoteAddr().String()))
	log := s.log.With("session_id", sess.ID(), "remote_addr", conn.RemoteAddr().String())

	log.Info("client connected")
	start := time.Now()

	err := sess.Run(ctx)
	switch {
	case err == nil:
		log.Info("client exited", "duration", time.Since(start))
	case errors.Is(err, protocol.ErrDisconnected), errors.Is(err, context.Canceled):
		log.Info("client disconnected", "duration", time.Since(start))
	case errors.Is(err, protocol.ErrIdleTimeout):
		log.Info("client idle, closing", "duration", time.Since(start))
	default:
		log.Error("session failed", "error", err)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	conn.Close()
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func remoteIP(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
