package httpgin

import (
	"time"

	"github.com/kirinyoku/bus-go/internal/domain"
	"github.com/kirinyoku/bus-go/internal/pricing"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type TripResponse struct {
	ID          string    `json:"id"`
	BusID       string    `json:"bus_id"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	DistanceKm  int       `json:"distance_km"`
	OperatorID  string    `json:"operator_id"`
	Departure   time.Time `json:"departure"`
	Discounted  bool      `json:"discounted,omitempty"`
}

type SeatResponse struct {
	Number    int    `json:"number"`
	Status    string `json:"status"`
	BasePrice int    `json:"base_price"`
}

type BookingResponse struct {
	TripID        string    `json:"trip_id"`
	BusID         string    `json:"bus_id"`
	SeatNumber    int       `json:"seat_number"`
	PassengerID   string    `json:"passenger_id"`
	PassengerName string    `json:"passenger_name"`
	FinalCents    int64     `json:"final_cents"`
	FinalPrice    string    `json:"final_price"`
	CreatedAt     time.Time `json:"created_at"`
}

func toTripResponse(t domain.Trip, discounted bool) TripResponse {
	return TripResponse{
		ID:          t.ID,
		BusID:       t.BusID,
		Source:      t.Source,
		Destination: t.Destination,
		DistanceKm:  t.DistanceKm,
		OperatorID:  t.OperatorID,
		Departure:   t.Departure.UTC(),
		Discounted:  discounted,
	}
}

func toSeatResponse(s domain.Seat) SeatResponse {
	return SeatResponse{
		Number:    s.Number,
		Status:    string(s.Status),
		BasePrice: s.BasePrice,
	}
}

func toBookingResponse(b domain.Booking) BookingResponse {
	return BookingResponse{
		TripID:        b.TripID,
		BusID:         b.BusID,
		SeatNumber:    b.SeatNumber,
		PassengerID:   b.PassengerID,
		PassengerName: b.PassengerName,
		FinalCents:    b.FinalCents,
		FinalPrice:    pricing.FormatCents(b.FinalCents),
		CreatedAt:     b.CreatedAt.UTC(),
	}
}
