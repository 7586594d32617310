package filerepo

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kirinyoku/bus-go/internal/domain"
)

// Field counts per table. Rows with any other count are skipped on read.
const (
	userFields    = 4
	driverFields  = 5
	busFields     = 4
	tripFields    = 7
	seatFields    = 3
	bookingFields = 7
)

const (
	seatFreeFlag   = "0"
	seatBookedFlag = "1"
)

func userRow(p domain.Passenger) []string {
	return []string{p.ID, p.Name, strconv.Itoa(p.Age), p.PasswordHash}
}

func parseUser(row []string) (domain.Passenger, bool) {
	if len(row) != userFields {
		return domain.Passenger{}, false
	}
	age, err := strconv.Atoi(row[2])
	if err != nil {
		return domain.Passenger{}, false
	}
	return domain.Passenger{ID: row[0], Name: row[1], Age: age, PasswordHash: row[3]}, true
}

func driverRow(d domain.Driver) []string {
	return []string{d.ID, d.License, d.Name, strconv.Itoa(d.Age), d.PasswordHash}
}

func parseDriver(row []string) (domain.Driver, bool) {
	if len(row) != driverFields {
		return domain.Driver{}, false
	}
	age, err := strconv.Atoi(row[3])
	if err != nil {
		return domain.Driver{}, false
	}
	return domain.Driver{ID: row[0], License: row[1], Name: row[2], Age: age, PasswordHash: row[4]}, true
}

func busRow(b domain.Bus) []string {
	return []string{b.ID, b.OperatorID, strconv.Itoa(b.Rows), strconv.Itoa(b.Cols)}
}

func parseBus(row []string) (domain.Bus, bool) {
	if len(row) != busFields {
		return domain.Bus{}, false
	}
	rows, err := strconv.Atoi(row[2])
	if err != nil {
		return domain.Bus{}, false
	}
	cols, err := strconv.Atoi(row[3])
	if err != nil {
		return domain.Bus{}, false
	}
	return domain.Bus{ID: row[0], OperatorID: row[1], Rows: rows, Cols: cols}, true
}

func tripRow(t domain.Trip) []string {
	return []string{
		t.ID,
		t.BusID,
		t.Source,
		t.Destination,
		strconv.Itoa(t.DistanceKm),
		t.OperatorID,
		strconv.FormatInt(t.Departure.Unix(), 10),
	}
}

func parseTrip(row []string) (domain.Trip, bool) {
	if len(row) != tripFields {
		return domain.Trip{}, false
	}
	km, err := strconv.Atoi(row[4])
	if err != nil {
		return domain.Trip{}, false
	}
	departs, err := strconv.ParseInt(row[6], 10, 64)
	if err != nil {
		return domain.Trip{}, false
	}
	return domain.Trip{
		ID:          row[0],
		BusID:       row[1],
		Source:      row[2],
		Destination: row[3],
		DistanceKm:  km,
		OperatorID:  row[5],
		Departure:   time.Unix(departs, 0),
	}, true
}

func seatRow(s domain.Seat) []string {
	flag := seatFreeFlag
	if s.Status == domain.SeatBooked {
		flag = seatBookedFlag
	}
	return []string{strconv.Itoa(s.Number), flag, strconv.Itoa(s.BasePrice)}
}

func parseSeat(tripID string, row []string) (domain.Seat, bool) {
	if len(row) != seatFields {
		return domain.Seat{}, false
	}
	number, err := strconv.Atoi(row[0])
	if err != nil {
		return domain.Seat{}, false
	}
	price, err := strconv.Atoi(row[2])
	if err != nil {
		return domain.Seat{}, false
	}

	var status domain.SeatStatus
	switch row[1] {
	case seatFreeFlag:
		status = domain.SeatFree
	case seatBookedFlag:
		status = domain.SeatBooked
	default:
		return domain.Seat{}, false
	}

	return domain.Seat{TripID: tripID, Number: number, Status: status, BasePrice: price}, true
}

func bookingRow(b domain.Booking) []string {
	return []string{
		b.TripID,
		b.BusID,
		strconv.Itoa(b.SeatNumber),
		b.PassengerID,
		b.PassengerName,
		formatAmount(b.FinalCents),
		strconv.FormatInt(b.CreatedAt.Unix(), 10),
	}
}

func parseBooking(row []string) (domain.Booking, bool) {
	if len(row) != bookingFields {
		return domain.Booking{}, false
	}
	seat, err := strconv.Atoi(row[2])
	if err != nil {
		return domain.Booking{}, false
	}
	cents, err := parseAmount(row[5])
	if err != nil {
		return domain.Booking{}, false
	}
	ts, err := strconv.ParseInt(row[6], 10, 64)
	if err != nil {
		return domain.Booking{}, false
	}
	return domain.Booking{
		TripID:        row[0],
		BusID:         row[1],
		SeatNumber:    seat,
		PassengerID:   row[3],
		PassengerName: row[4],
		FinalCents:    cents,
		CreatedAt:     time.Unix(ts, 0),
	}, true
}

// formatAmount writes cents as a plain two-decimal amount, e.g. "189.00".
func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func parseAmount(s string) (int64, error) {
	whole, frac, found := strings.Cut(s, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, err
	}
	if !found {
		return units * 100, nil
	}
	if len(frac) == 1 {
		frac += "0"
	}
	if len(frac) != 2 {
		return 0, fmt.Errorf("amount %q: want two decimals", s)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, err
	}
	return units*100 + cents, nil
}

const tripIDPrefix = "T"

func formatTripID(seq int) string {
	return fmt.Sprintf("%s%03d", tripIDPrefix, seq)
}

func tripSeq(id string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(id, tripIDPrefix))
	if err != nil || !strings.HasPrefix(id, tripIDPrefix) {
		return 0, false
	}
	return n, true
}
