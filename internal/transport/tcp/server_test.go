package tcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirinyoku/bus-go/internal/protocol"
	"github.com/kirinyoku/bus-go/internal/recordstore"
	"github.com/kirinyoku/bus-go/internal/repository"
	filerepo "github.com/kirinyoku/bus-go/internal/repository/file"
	"github.com/kirinyoku/bus-go/internal/service"
)

const (
	passengerID = "123456789012"
	driverID    = "210987654321"
	license     = "MH12AB1234567890"
)

// startServer serves on a loopback port. stop cancels the server and returns
// the result of Serve; it is safe to call more than once.
func startServer(t *testing.T, cfg Config) (srv *Server, store *repository.Store, stop func() error) {
	t.Helper()

	records, err := recordstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open records: %v", err)
	}
	store = filerepo.NewStore(records).Repositories()

	log := slog.New(slog.DiscardHandler)
	svc := service.NewServices(store, nil, nil, nil, service.Config{Location: time.UTC}, nil, log)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv = NewServer(cfg, svc, log)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	stop = sync.OnceValue(func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			return errors.New("serve did not return after cancel")
		}
	})
	t.Cleanup(func() { _ = stop() })

	return srv, store, stop
}

type client struct {
	t    *testing.T
	conn net.Conn
	r    *protocol.Reader
	seen strings.Builder
}

func dial(t *testing.T, addr net.Addr) *client {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	return &client{t: t, conn: conn, r: protocol.NewReader(conn, protocol.FormatFramed)}
}

// untilPrompt reads messages up to and including the next prompt.
func (c *client) untilPrompt() {
	c.t.Helper()
	for {
		msg, err := c.r.Next()
		if err != nil {
			c.t.Fatalf("read: %v\nseen so far:\n%s", err, c.seen.String())
		}
		c.seen.WriteString(msg.Text)
		c.seen.WriteByte('\n')
		if msg.Kind == protocol.KindPrompt {
			return
		}
	}
}

// script answers one prompt per reply, then reads until the server hangs up.
func (c *client) script(replies ...string) string {
	c.t.Helper()

	for _, reply := range replies {
		c.untilPrompt()
		if err := protocol.WriteReply(c.conn, reply); err != nil {
			c.t.Fatalf("write %q: %v", reply, err)
		}
	}

	for {
		msg, err := c.r.Next()
		if err != nil {
			break
		}
		c.seen.WriteString(msg.Text)
		c.seen.WriteByte('\n')
	}
	return c.seen.String()
}

func TestEndToEndBooking(t *testing.T) {
	srv, store, _ := startServer(t, Config{Format: protocol.FormatFramed, IdleTimeout: 5 * time.Second})
	ctx := context.Background()

	dial(t, srv.Addr()).script(
		"1",
		"1", "Alice", "30", passengerID, "secret",
		"bad", "bad",
		"3",
	)

	out := dial(t, srv.Addr()).script(
		"2",
		"1", "Ravi", "35", driverID, license, "pw",
		driverID, "pw",
		"1", "MH12", "2", "2",
		"2", "MH12", "Pune", "Mumbai", "10", "2099-01-01 10:00",
		"3", "3",
	)
	if !strings.Contains(out, "trip id T001.") {
		t.Fatalf("trip not inserted:\n%s", out)
	}

	out = dial(t, srv.Addr()).script(
		"1",
		"2", passengerID, "secret",
		"2", "T001", "1", "Alice", passengerID, "y", "n", "e",
		"3", "3",
	)
	for _, want := range []string{"T001  Pune -> Mumbai", "Seat 1 on trip T001 booked for Alice."} {
		if !strings.Contains(out, want) {
			t.Fatalf("output is missing %q:\n%s", want, out)
		}
	}

	bookings, err := store.Bookings.ListByPassenger(ctx, passengerID)
	if err != nil || len(bookings) != 1 || bookings[0].SeatNumber != 1 {
		t.Fatalf("bookings = %+v, %v", bookings, err)
	}
	seats, _ := store.Seats.Chart(ctx, "T001")
	if seats[0].Free() {
		t.Fatal("seat 1 still free")
	}

	out = dial(t, srv.Addr()).script(
		"1",
		"2", passengerID, "secret",
		"2", "T001", "1", "e",
		"3", "3",
	)
	if !strings.Contains(out, "Seat 1 is not available.") {
		t.Fatalf("second attempt on seat 1 was not refused:\n%s", out)
	}
}

func TestDisconnectTokenEndsSession(t *testing.T) {
	srv, _, _ := startServer(t, Config{})

	c := dial(t, srv.Addr())
	c.untilPrompt()
	if err := protocol.WriteDisconnect(c.conn); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := c.r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("read after disconnect err = %v, want EOF", err)
	}
}

func TestIdleClientIsDropped(t *testing.T) {
	srv, _, _ := startServer(t, Config{IdleTimeout: 50 * time.Millisecond})

	c := dial(t, srv.Addr())
	c.untilPrompt()

	if _, err := c.r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("read from idle session err = %v, want EOF", err)
	}
}

func TestShutdownClosesSessions(t *testing.T) {
	srv, _, stop := startServer(t, Config{})

	c := dial(t, srv.Addr())
	c.untilPrompt()

	if err := stop(); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	if _, err := c.r.Next(); err == nil {
		t.Fatal("connection still open after shutdown")
	}
}

func TestServeTwiceIsRejected(t *testing.T) {
	srv, _, _ := startServer(t, Config{})
	_ = srv.Addr()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	if err := srv.Serve(context.Background(), ln); !errors.Is(err, ErrAlreadyServing) {
		t.Fatalf("second Serve err = %v, want ErrAlreadyServing", err)
	}
	if _, err := ln.Accept(); !errors.Is(err, net.ErrClosed) {
		t.Fatalf("second listener still open: %v", err)
	}

	// The first listener keeps serving.
	dial(t, srv.Addr()).untilPrompt()
}

func TestIPLimiters(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newIPLimiters(rate.Limit(1), 2)
	l.now = func() time.Time { return now }

	for i, want := range []bool{true, true, false} {
		if got := l.allow("10.0.0.1"); got != want {
			t.Fatalf("attempt %d allow = %v, want %v", i+1, got, want)
		}
	}
	if !l.allow("10.0.0.2") {
		t.Fatal("second ip throttled by the first")
	}

	now = now.Add(time.Second)
	if !l.allow("10.0.0.1") {
		t.Fatal("bucket did not refill")
	}

	if !newIPLimiters(0, 0).allow("10.0.0.1") {
		t.Fatal("disabled limiter denied")
	}
}
