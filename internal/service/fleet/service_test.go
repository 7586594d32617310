package fleet

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/kirinyoku/bus-go/internal/domain"
	"github.com/kirinyoku/bus-go/internal/recordstore"
	"github.com/kirinyoku/bus-go/internal/repository"
	filerepo "github.com/kirinyoku/bus-go/internal/repository/file"
)

const operator = "210987654321"

var testNow = time.Date(2030, 5, 1, 8, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *repository.Store) {
	t.Helper()

	records, err := recordstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open records: %v", err)
	}
	store := filerepo.NewStore(records).Repositories()

	svc := New(store, nil, nil, Config{Location: time.UTC}, func() time.Time { return testNow }, slog.New(slog.DiscardHandler))
	if _, err := svc.RegisterBus(context.Background(), operator, BusRegistration{ID: "MH12", Rows: "2", Cols: "2"}); err != nil {
		t.Fatalf("register bus: %v", err)
	}
	return svc, store
}

func insertion(departure string) TripInsertion {
	return TripInsertion{BusID: "MH12", Source: "Pune", Destination: "Mumbai", DistanceKm: "10", Departure: departure}
}

func TestInsertTripScheduleConflict(t *testing.T) {
	tests := []struct {
		name    string
		second  string
		wantErr error
	}{
		{name: "30 minutes later", second: "2030-05-01 10:30", wantErr: ErrScheduleConflict},
		{name: "59 minutes earlier", second: "2030-05-01 09:01", wantErr: ErrScheduleConflict},
		{name: "same time", second: "2030-05-01 10:00", wantErr: ErrScheduleConflict},
		{name: "exactly 60 minutes later", second: "2030-05-01 11:00"},
		{name: "two hours later", second: "2030-05-01 12:00"},
		{name: "next day same time", second: "2030-05-02 10:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			ctx := context.Background()

			if _, err := svc.InsertTrip(ctx, operator, insertion("2030-05-01 10:00")); err != nil {
				t.Fatalf("first trip: %v", err)
			}

			_, err := svc.InsertTrip(ctx, operator, insertion(tt.second))
			if tt.wantErr == nil && err != nil {
				t.Fatalf("second trip: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInsertTripCreatesPricedSeats(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	trip, err := svc.InsertTrip(ctx, operator, insertion("2030-05-01 10:00"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if trip.ID != "T001" {
		t.Fatalf("trip id = %s, want T001", trip.ID)
	}

	seats, err := store.Seats.Chart(ctx, trip.ID)
	if err != nil {
		t.Fatalf("chart: %v", err)
	}

	// 2x2 bus, 10 km: front row is all edge seats (150), last row all edge (105).
	want := []int{150, 150, 105, 105}
	if len(seats) != len(want) {
		t.Fatalf("got %d seats, want %d", len(seats), len(want))
	}
	for i, s := range seats {
		if s.Number != i+1 || s.BasePrice != want[i] || !s.Free() {
			t.Errorf("seat %d = %+v, want number %d price %d free", i, s, i+1, want[i])
		}
	}
}

func TestInsertTripRejects(t *testing.T) {
	tests := []struct {
		name     string
		operator string
		in       TripInsertion
		wantErr  error
		field    string
	}{
		{name: "unknown bus", operator: operator, in: TripInsertion{BusID: "XX", Source: "A", Destination: "B", DistanceKm: "10", Departure: "2030-05-01 10:00"}, wantErr: ErrBusNotFound},
		{name: "foreign bus", operator: "111111111111", in: insertion("2030-05-01 10:00"), wantErr: ErrNotBusOperator},
		{name: "past departure", operator: operator, in: insertion("2030-05-01 07:59"), field: "departure"},
		{name: "departure now", operator: operator, in: insertion("2030-05-01 08:00"), field: "departure"},
		{name: "bad departure format", operator: operator, in: insertion("tomorrow"), field: "departure"},
		{name: "zero distance", operator: operator, in: TripInsertion{BusID: "MH12", Source: "A", Destination: "B", DistanceKm: "0", Departure: "2030-05-01 10:00"}, field: "distance"},
		{name: "blank source", operator: operator, in: TripInsertion{BusID: "MH12", Source: " ", Destination: "B", DistanceKm: "5", Departure: "2030-05-01 10:00"}, field: "source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t)

			_, err := svc.InsertTrip(context.Background(), tt.operator, tt.in)
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.field != "" {
				var verr *domain.ValidationError
				if !errors.As(err, &verr) || verr.Field != tt.field {
					t.Fatalf("err = %v, want ValidationError on %s", err, tt.field)
				}
			}

			trips, _ := store.Trips.List(context.Background())
			if len(trips) != 0 {
				t.Fatalf("rejected trip was stored: %+v", trips)
			}
		})
	}
}

func TestRegisterBus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.RegisterBus(ctx, operator, BusRegistration{ID: "MH12", Rows: "3", Cols: "3"}); !errors.Is(err, ErrBusExists) {
		t.Fatalf("duplicate err = %v, want ErrBusExists", err)
	}

	var verr *domain.ValidationError
	if _, err := svc.RegisterBus(ctx, operator, BusRegistration{ID: "KA01", Rows: "x", Cols: "3"}); !errors.As(err, &verr) || verr.Field != "rows" {
		t.Fatalf("bad rows err = %v", err)
	}
	if _, err := svc.RegisterBus(ctx, operator, BusRegistration{ID: "KA01", Rows: "3", Cols: "0"}); !errors.As(err, &verr) || verr.Field != "cols" {
		t.Fatalf("zero cols err = %v", err)
	}

	exists, err := svc.BusExists(ctx, "KA01")
	if err != nil || exists {
		t.Fatalf("BusExists(KA01) = %v, %v", exists, err)
	}
}

func TestScheduleConflictIgnoresOtherBuses(t *testing.T) {
	dep := time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)
	existing := []domain.Trip{{ID: "T001", BusID: "OTHER", Departure: dep}}

	if ScheduleConflict(existing, "MH12", dep, time.UTC) {
		t.Fatal("trip of another bus reported as conflict")
	}
}
