package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirinyoku/bus-go/internal/domain"
	"github.com/kirinyoku/bus-go/internal/recordstore"
	"github.com/kirinyoku/bus-go/internal/repository"
	filerepo "github.com/kirinyoku/bus-go/internal/repository/file"
)

var testNow = time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()

	records, err := recordstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open records: %v", err)
	}
	return filerepo.NewStore(records).Repositories()
}

func addTrip(t *testing.T, store *repository.Store, departure time.Time) domain.Trip {
	t.Helper()

	trip, err := store.Trips.Create(context.Background(), domain.Trip{
		BusID:       "B1",
		Source:      "Pune",
		Destination: "Nashik",
		DistanceKm:  10,
		OperatorID:  "210987654321",
		Departure:   departure,
	}, []domain.Seat{
		{Number: 1, Status: domain.SeatFree, BasePrice: 150},
		{Number: 2, Status: domain.SeatFree, BasePrice: 150},
	})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	return trip
}

func TestReservableTrips(t *testing.T) {
	store := newTestStore(t)
	departed := addTrip(t, store, testNow.Add(-time.Minute))
	now := addTrip(t, store, testNow)
	soon := addTrip(t, store, testNow.Add(45*time.Minute))
	later := addTrip(t, store, testNow.Add(3*time.Hour))

	svc := New(store, nil, Config{}, func() time.Time { return testNow })

	listings, err := svc.ReservableTrips(context.Background())
	if err != nil {
		t.Fatalf("ReservableTrips: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("got %d listings, want 2", len(listings))
	}

	for _, l := range listings {
		switch l.Trip.ID {
		case departed.ID, now.ID:
			t.Errorf("trip %s should not be reservable", l.Trip.ID)
		case soon.ID:
			if !l.Discounted {
				t.Errorf("trip %s departing in 45m should be discounted", l.Trip.ID)
			}
		case later.ID:
			if l.Discounted {
				t.Errorf("trip %s departing in 3h should not be discounted", l.Trip.ID)
			}
		}
	}

	all, err := svc.Trips(context.Background())
	if err != nil || len(all) != 4 {
		t.Fatalf("Trips = %d, %v", len(all), err)
	}
}

func TestNotFound(t *testing.T) {
	svc := New(newTestStore(t), nil, Config{}, nil)
	ctx := context.Background()

	if _, err := svc.Trip(ctx, "T404"); !errors.Is(err, ErrTripNotFound) {
		t.Errorf("Trip err = %v, want ErrTripNotFound", err)
	}
	if _, err := svc.SeatChart(ctx, "T404"); !errors.Is(err, ErrTripNotFound) {
		t.Errorf("SeatChart err = %v, want ErrTripNotFound", err)
	}
	if _, err := svc.Bus(ctx, "NOPE"); !errors.Is(err, ErrBusNotFound) {
		t.Errorf("Bus err = %v, want ErrBusNotFound", err)
	}

	bookings, err := svc.PassengerBookings(ctx, "123456789012")
	if err != nil || len(bookings) != 0 {
		t.Errorf("PassengerBookings = %v, %v", bookings, err)
	}
}

func TestSeatChart(t *testing.T) {
	store := newTestStore(t)
	trip := addTrip(t, store, testNow.Add(time.Hour))
	svc := New(store, nil, Config{}, nil)

	if _, err := store.Seats.AttemptBook(context.Background(), trip.ID, 2); err != nil {
		t.Fatalf("book: %v", err)
	}

	seats, err := svc.SeatChart(context.Background(), trip.ID)
	if err != nil {
		t.Fatalf("SeatChart: %v", err)
	}
	if len(seats) != 2 || !seats[0].Free() || seats[1].Free() {
		t.Fatalf("unexpected chart: %+v", seats)
	}
}
