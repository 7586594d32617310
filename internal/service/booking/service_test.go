package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirinyoku/bus-go/internal/domain"
	"github.com/kirinyoku/bus-go/internal/pricing"
	"github.com/kirinyoku/bus-go/internal/recordstore"
	"github.com/kirinyoku/bus-go/internal/repository"
	filerepo "github.com/kirinyoku/bus-go/internal/repository/file"
	"github.com/kirinyoku/bus-go/internal/service/account"
	"github.com/kirinyoku/bus-go/internal/service/query"
)

const passengerID = "123456789012"

var (
	testNow       = time.Date(2030, 5, 1, 8, 0, 0, 0, time.UTC)
	errScriptDone = errors.New("script exhausted")
)

type fixture struct {
	svc   *Service
	store *repository.Store
	trip  domain.Trip
	clock *time.Time
}

func newFixture(t *testing.T, departure time.Time) *fixture {
	t.Helper()
	ctx := context.Background()

	records, err := recordstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open records: %v", err)
	}
	store := filerepo.NewStore(records).Repositories()

	if err := store.Buses.Create(ctx, domain.Bus{ID: "MH12", OperatorID: "210987654321", Rows: 2, Cols: 2}); err != nil {
		t.Fatalf("create bus: %v", err)
	}

	trip, err := store.Trips.Create(ctx, domain.Trip{
		BusID:       "MH12",
		Source:      "Pune",
		Destination: "Mumbai",
		DistanceKm:  10,
		OperatorID:  "210987654321",
		Departure:   departure,
	}, []domain.Seat{
		{Number: 1, Status: domain.SeatFree, BasePrice: 150},
		{Number: 2, Status: domain.SeatFree, BasePrice: 150},
		{Number: 3, Status: domain.SeatFree, BasePrice: 105},
		{Number: 4, Status: domain.SeatFree, BasePrice: 105},
	})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}

	accounts := account.New(store)
	if _, err := accounts.RegisterPassenger(ctx, account.PassengerRegistration{
		Name: "Asha", Age: "30", ID: passengerID, Password: "secret",
	}); err != nil {
		t.Fatalf("register passenger: %v", err)
	}

	clock := testNow
	now := func() time.Time { return clock }

	q := query.New(store, nil, query.Config{}, now)
	svc := New(store, q, accounts, nil, nil, nil, Config{Location: time.UTC}, now, slog.New(slog.DiscardHandler))

	return &fixture{svc: svc, store: store, trip: trip, clock: &clock}
}

// scriptConv answers prompts from a fixed script and records everything it
// is told. before runs ahead of each answer.
type scriptConv struct {
	replies    []string
	transcript []string
	before     func(prompt string)
}

func (c *scriptConv) Ask(_ context.Context, prompt string) (string, error) {
	c.transcript = append(c.transcript, prompt)
	if c.before != nil {
		c.before(prompt)
	}
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

func (c *scriptConv) said(text string) bool {
	for _, line := range c.transcript {
		if strings.Contains(line, text) {
			return true
		}
	}
	return false
}

func TestRunBooksSeat(t *testing.T) {
	f := newFixture(t, testNow.Add(3*time.Hour))
	ctx := context.Background()

	conv := &scriptConv{replies: []string{"t001", "1", "asha", passengerID, "y", "n", "e"}}
	if err := f.svc.Run(ctx, conv, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, want := range []string{
		"Seats for trip T001",
		"You have to pay: Rs 150.00",
		"Seat 1 on trip T001 booked for Asha. Amount paid: Rs 150.00.",
		msgExit,
	} {
		if !conv.said(want) {
			t.Errorf("transcript is missing %q:\n%s", want, strings.Join(conv.transcript, "\n"))
		}
	}

	seats, err := f.store.Seats.Chart(ctx, f.trip.ID)
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	if seats[0].Free() {
		t.Fatal("seat 1 still free after booking")
	}

	bookings, err := f.store.Bookings.ListByPassenger(ctx, passengerID)
	if err != nil {
		t.Fatalf("bookings: %v", err)
	}
	if len(bookings) != 1 || bookings[0].SeatNumber != 1 || bookings[0].FinalCents != 15000 {
		t.Fatalf("bookings = %+v", bookings)
	}
}

func TestRunReportsLostRace(t *testing.T) {
	f := newFixture(t, testNow.Add(3*time.Hour))
	ctx := context.Background()

	conv := &scriptConv{replies: []string{"T001", "1", "Asha", passengerID, "y", "e"}}
	conv.before = func(prompt string) {
		if prompt == promptConfirm {
			if _, err := f.store.Seats.AttemptBook(ctx, f.trip.ID, 1); err != nil {
				t.Fatalf("rival booking: %v", err)
			}
		}
	}

	if err := f.svc.Run(ctx, conv, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !conv.said("Sorry, seat 1 was just booked by someone else.") {
		t.Fatalf("lost race not reported:\n%s", strings.Join(conv.transcript, "\n"))
	}

	bookings, _ := f.store.Bookings.ListByPassenger(ctx, passengerID)
	if len(bookings) != 0 {
		t.Fatalf("loser got a booking: %+v", bookings)
	}
}

func TestRunTripDepartsBeforeConfirm(t *testing.T) {
	departure := testNow.Add(3 * time.Hour)
	f := newFixture(t, departure)
	ctx := context.Background()

	conv := &scriptConv{replies: []string{"T001", "2", "Asha", passengerID, "y", "e"}}
	conv.before = func(prompt string) {
		if prompt == promptConfirm {
			*f.clock = departure.Add(time.Minute)
		}
	}

	if err := f.svc.Run(ctx, conv, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, want := range []string{"Trip T001 has already departed.", "No upcoming trips are available."} {
		if !conv.said(want) {
			t.Errorf("transcript is missing %q", want)
		}
	}

	seats, _ := f.store.Seats.Chart(ctx, f.trip.ID)
	if !seats[1].Free() {
		t.Fatal("seat booked on a departed trip")
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	f := newFixture(t, testNow.Add(3*time.Hour))

	conv := &scriptConv{replies: []string{
		"T999", "T001",
		"99", "abc", "v",
		"1", "Nobody", passengerID,
		"c", "e",
	}}
	if err := f.svc.Run(context.Background(), conv, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, want := range []string{
		"Invalid trip id.",
		"Seat 99 is not available.",
		"Invalid seat number.",
		"Passenger not registered.",
		msgExit,
	} {
		if !conv.said(want) {
			t.Errorf("transcript is missing %q", want)
		}
	}
}

func TestRunReturnsConversationError(t *testing.T) {
	f := newFixture(t, testNow.Add(3*time.Hour))

	conv := &scriptConv{replies: []string{"T001"}}
	if err := f.svc.Run(context.Background(), conv, ""); !errors.Is(err, errScriptDone) {
		t.Fatalf("err = %v, want %v", err, errScriptDone)
	}
}

func TestCommitSingleWinner(t *testing.T) {
	f := newFixture(t, testNow.Add(3*time.Hour))
	ctx := context.Background()

	const clients = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		won     int
		lost    int
		unknown []error
	)

	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Commit(ctx, CommitRequest{
				Trip:       f.trip,
				SeatNumber: 3,
				Passenger:  domain.Passenger{ID: passengerID, Name: "Asha"},
				Quote:      pricing.NewQuote(105, f.trip.Departure, testNow),
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, ErrSeatTaken):
				lost++
			default:
				unknown = append(unknown, err)
			}
		}()
	}
	wg.Wait()

	if won != 1 || lost != clients-1 || len(unknown) != 0 {
		t.Fatalf("won=%d lost=%d unexpected=%v", won, lost, unknown)
	}

	bookings, _ := f.store.Bookings.ListByPassenger(ctx, passengerID)
	if len(bookings) != 1 {
		t.Fatalf("got %d bookings, want 1", len(bookings))
	}
}

func TestCommitDepartedTrip(t *testing.T) {
	f := newFixture(t, testNow.Add(3*time.Hour))
	*f.clock = testNow.Add(3 * time.Hour)

	_, err := f.svc.Commit(context.Background(), CommitRequest{Trip: f.trip, SeatNumber: 1})
	if !errors.Is(err, ErrTripDeparted) {
		t.Fatalf("err = %v, want ErrTripDeparted", err)
	}
}

func TestCommitChecksStoredTrip(t *testing.T) {
	f := newFixture(t, testNow.Add(3*time.Hour))
	ctx := context.Background()

	missing := f.trip
	missing.ID = "T404"
	if _, err := f.svc.Commit(ctx, CommitRequest{Trip: missing, SeatNumber: 1}); !errors.Is(err, ErrTripNotFound) {
		t.Fatalf("unknown trip err = %v, want ErrTripNotFound", err)
	}

	// A caller's stale departure does not override the stored one.
	stale := f.trip
	stale.Departure = testNow.Add(-time.Hour)
	b, err := f.svc.Commit(ctx, CommitRequest{Trip: stale, SeatNumber: 1})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if b.TripID != f.trip.ID || b.BusID != "MH12" {
		t.Fatalf("booking = %+v", b)
	}
}

func TestQuoteInsideDiscountWindow(t *testing.T) {
	f := newFixture(t, testNow.Add(30*time.Minute))

	q := f.svc.Quote(f.trip, domain.Seat{Number: 1, BasePrice: 150})
	if !q.Discounted() || q.FinalCents != 13500 {
		t.Fatalf("quote = %+v, want discounted 13500", q)
	}
}

func TestRenderChart(t *testing.T) {
	seats := []domain.Seat{
		{Number: 1, Status: domain.SeatFree},
		{Number: 2, Status: domain.SeatBooked},
		{Number: 3, Status: domain.SeatFree},
	}

	got := renderChart("T001", seats, 2)
	want := "Seats for trip T001 (XX = booked):\n  1  XX\n  3"
	if got != want {
		t.Fatalf("renderChart = %q, want %q", got, want)
	}
}
