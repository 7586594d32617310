package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

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

var (
	testNow       = time.Date(2030, 5, 1, 8, 0, 0, 0, time.UTC)
	errScriptDone = errors.New("script exhausted")
)

type scriptConv struct {
	replies    []string
	transcript []string
}

func (c *scriptConv) Ask(_ context.Context, prompt string) (string, error) {
	c.transcript = append(c.transcript, prompt)
	if len(c.replies) == 0 {
		return "", errScriptDone
	}
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return reply, nil
}

func (c *scriptConv) Tell(_ context.Context, text string) error {
	c.transcript = append(c.transcript, text)
	return nil
}

func (c *scriptConv) count(text string) int {
	n := 0
	for _, line := range c.transcript {
		if strings.Contains(line, text) {
			n++
		}
	}
	return n
}

func newServices(t *testing.T) (*service.Services, *repository.Store) {
	t.Helper()

	records, err := recordstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open records: %v", err)
	}
	store := filerepo.NewStore(records).Repositories()

	svc := service.NewServices(store, nil, nil, nil,
		service.Config{Location: time.UTC},
		func() time.Time { return testNow },
		slog.New(slog.DiscardHandler),
	)
	return svc, store
}

func run(t *testing.T, svc *service.Services, replies ...string) *scriptConv {
	t.Helper()

	conv := &scriptConv{replies: replies}
	if err := New(conv, svc, "127.0.0.1", slog.New(slog.DiscardHandler)).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v\n%s", err, strings.Join(conv.transcript, "\n"))
	}
	return conv
}

func registerPassenger(t *testing.T, svc *service.Services) {
	t.Helper()
	run(t, svc,
		"1",                                       // passenger
		"1", "Alice", "30", passengerID, "secret", // register
		"bad", "bad", // login fails
		"3",
	)
}

func TestPassengerRegistrationRejectsBadAge(t *testing.T) {
	svc, store := newServices(t)

	conv := run(t, svc,
		"",
		"1", "Alice", "abc", "0", "30", passengerID, "secret",
		passengerID, "secret",
		"1", "3",
		"3",
	)

	if got := conv.count("Invalid input:"); got != 2 {
		t.Errorf("reported %d invalid ages, want 2", got)
	}
	for _, want := range []string{"Registration successful!", "Login successful!", "No bookings found"} {
		if conv.count(want) == 0 {
			t.Errorf("transcript is missing %q", want)
		}
	}

	p, err := store.Users.Get(context.Background(), passengerID)
	if err != nil {
		t.Fatalf("get passenger: %v", err)
	}
	if p.Age != 30 || p.Name != "Alice" || p.PasswordHash == "secret" {
		t.Fatalf("stored passenger = %+v", p)
	}
}

func TestPassengerRegistrationTypoFlow(t *testing.T) {
	svc, _ := newServices(t)
	registerPassenger(t, svc)

	conv := run(t, svc,
		"1",
		"1", "Bob", "40", passengerID, "y", passengerID, "n",
		"bad", "bad",
		"3",
	)

	for _, want := range []string{"Is it a typo?", "No worries", "already registered. Please log in"} {
		if conv.count(want) == 0 {
			t.Errorf("transcript is missing %q", want)
		}
	}
	if conv.count("Registration successful!") != 0 {
		t.Fatal("duplicate id was registered")
	}
}

func TestDriverCreatesBusAndTrip(t *testing.T) {
	svc, store := newServices(t)
	ctx := context.Background()

	conv := run(t, svc,
		"2",
		"1", "Ravi", "24", "35", driverID, license, "pw",
		driverID, "pw",
		"1", "MH12", "2", "2",
		"2", "MH12", "Pune", "Mumbai", "10", "2030-05-01 10:00",
		"2", "MH12", "Pune", "Nashik", "20", "2030-05-01 10:30",
		"2", "MH12", "Pune", "Nashik", "20", "2030-05-01 11:00",
		"3",
		"3",
	)

	for _, want := range []string{
		"Bus MH12 registered with 4 seats.",
		"trip id T001.",
		"already has a trip within 60 minutes",
		"trip id T002.",
	} {
		if conv.count(want) == 0 {
			t.Errorf("transcript is missing %q", want)
		}
	}

	trips, err := store.Trips.List(ctx)
	if err != nil {
		t.Fatalf("list trips: %v", err)
	}
	if len(trips) != 2 {
		t.Fatalf("got %d trips, want 2", len(trips))
	}

	seats, err := store.Seats.Chart(ctx, "T001")
	if err != nil || len(seats) != 4 {
		t.Fatalf("chart = %v, %v", seats, err)
	}
}

func TestPassengerBooksSeat(t *testing.T) {
	svc, store := newServices(t)
	ctx := context.Background()

	run(t, svc,
		"2",
		"1", "Ravi", "35", driverID, license, "pw",
		driverID, "pw",
		"1", "MH12", "2", "2",
		"2", "MH12", "Pune", "Mumbai", "10", "2030-05-01 10:00",
		"3", "3",
	)
	registerPassenger(t, svc)

	conv := run(t, svc,
		"1",
		"2", passengerID, "secret",
		"2", "T001", "1", "Alice", passengerID, "y", "n", "e",
		"1",
		"3", "3",
	)

	if conv.count("Seat 1 on trip T001 booked for Alice.") != 1 {
		t.Fatalf("booking not confirmed:\n%s", strings.Join(conv.transcript, "\n"))
	}
	if conv.count("1. Trip T001, bus MH12, seat 1, paid Rs 150.00") != 1 {
		t.Fatalf("booking missing from history:\n%s", strings.Join(conv.transcript, "\n"))
	}

	seats, _ := store.Seats.Chart(ctx, "T001")
	if seats[0].Free() {
		t.Fatal("seat 1 still free")
	}
}

func TestRunReturnsConversationError(t *testing.T) {
	svc, _ := newServices(t)

	conv := &scriptConv{replies: []string{"1"}}
	err := New(conv, svc, "", slog.New(slog.DiscardHandler)).Run(context.Background())
	if !errors.Is(err, errScriptDone) {
		t.Fatalf("err = %v, want %v", err, errScriptDone)
	}
}
